// Package broker connects the command pipeline to the message broker.
// Commands arrive on a topic exchange keyed by operation; committed domain
// events leave through the same exchange for downstream consumers.
package broker

import (
	"context"
	"time"
)

// Delivery is one received command message. The pipeline must settle every
// delivery exactly once through Ack, Requeue or Park.
type Delivery struct {
	// RoutingKey identifies the requested operation.
	RoutingKey string
	// Body is the raw JSON payload.
	Body []byte
	// MessageID is the producer-supplied idempotency token, may be empty.
	MessageID string
	// Redelivered marks a message the broker has handed out before.
	Redelivered bool
	// ReceivedAt is when the consumer picked the message up.
	ReceivedAt time.Time

	acker Acker
}

// Acker settles a delivery with the broker.
type Acker interface {
	// Ack confirms processing; the broker drops the message.
	Ack() error
	// Requeue returns the message for another delivery attempt.
	Requeue() error
	// Park drops the message from the queue without reprocessing. Used
	// once a command is persisted to the dead-letter store.
	Park() error
}

// Ack settles the delivery as processed.
func (d *Delivery) Ack() error {
	if d.acker == nil {
		return nil
	}
	return d.acker.Ack()
}

// Requeue settles the delivery for another attempt.
func (d *Delivery) Requeue() error {
	if d.acker == nil {
		return nil
	}
	return d.acker.Requeue()
}

// Park settles the delivery as dead-lettered.
func (d *Delivery) Park() error {
	if d.acker == nil {
		return nil
	}
	return d.acker.Park()
}

// Consumer receives command deliveries from the broker.
type Consumer interface {
	// Consume opens the delivery stream. The channel closes when the
	// context is cancelled, the consumer is closed, or the stream cannot
	// be re-established.
	Consume(ctx context.Context) (<-chan Delivery, error)
	// Close releases the underlying connection.
	Close() error
}

// Publisher sends messages to the broker.
type Publisher interface {
	// Publish sends a payload under the given routing key.
	Publish(ctx context.Context, routingKey string, body []byte) error
	// Close releases the underlying connection.
	Close() error
}
