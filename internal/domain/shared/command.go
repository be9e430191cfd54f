package shared

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Routing keys for the commands consumed from the broker.
const (
	RoutingLoanCreate = "loan.create_request"
	RoutingLoanReturn = "loan.return_request"
	RoutingLoanRenew  = "loan.renew_request"
	RoutingLoanSweep  = "loan.overdue_sweep"
	RoutingBookCreate = "book.create_request"
	RoutingBookUpdate = "book.update_request"
	RoutingBookDelete = "book.delete_request"
	RoutingUserCreate = "user.create_request"
)

// Command is the unit of work consumed from the broker: one write intent,
// identified by its routing key, carrying a raw JSON payload.
type Command struct {
	// RoutingKey identifies the requested operation.
	RoutingKey string
	// DedupKey detects redeliveries. It is the producer-supplied
	// idempotency token when present, otherwise a content hash.
	DedupKey string
	// Payload is the raw JSON body.
	Payload []byte
	// Attempt counts deliveries of this command, starting at 1.
	Attempt int
	// ReceivedAt is when this delivery entered the pipeline.
	ReceivedAt time.Time
}

// NewCommand builds a command from a raw delivery. When the producer did
// not supply an idempotency token the dedup key falls back to a hash of
// routing key and payload, so byte-identical redeliveries still collapse.
func NewCommand(routingKey string, payload []byte, idempotencyToken string) Command {
	dedupKey := idempotencyToken
	if dedupKey == "" {
		dedupKey = ContentDedupKey(routingKey, payload)
	}
	return Command{
		RoutingKey: routingKey,
		DedupKey:   dedupKey,
		Payload:    payload,
		Attempt:    1,
		ReceivedAt: time.Now(),
	}
}

// ContentDedupKey derives a dedup key from the command content.
func ContentDedupKey(routingKey string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(routingKey))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
