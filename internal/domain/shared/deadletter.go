package shared

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DeadLetterStatus represents the lifecycle of a dead-lettered command
type DeadLetterStatus string

const (
	// DeadLetterStatusDead is a command waiting for operator inspection.
	DeadLetterStatusDead DeadLetterStatus = "DEAD"
	// DeadLetterStatusReplayed is a command an operator requeued.
	DeadLetterStatusReplayed DeadLetterStatus = "REPLAYED"
)

// DeadLetterReason records why a command was parked
type DeadLetterReason string

const (
	// ReasonMalformed is a schema violation: the payload never decoded.
	ReasonMalformed DeadLetterReason = "MALFORMED"
	// ReasonRejected is a business-rule rejection, preserved for audit.
	ReasonRejected DeadLetterReason = "REJECTED"
	// ReasonExhausted is a transient failure that ran out of retries.
	ReasonExhausted DeadLetterReason = "EXHAUSTED"
)

// DeadLetterEntry preserves a command that could not be processed.
// Dead-lettered commands are never discarded; operators can inspect them
// and replay the retryable ones.
type DeadLetterEntry struct {
	ID         uuid.UUID
	RoutingKey string
	DedupKey   string
	Payload    []byte
	Attempts   int
	Reason     DeadLetterReason
	ErrorKind  ErrorKind
	LastError  string
	Status     DeadLetterStatus
	FailedAt   time.Time
	ReplayedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewDeadLetterEntry parks a failed command
func NewDeadLetterEntry(cmd Command, reason DeadLetterReason, kind ErrorKind, lastError string) *DeadLetterEntry {
	now := time.Now()
	return &DeadLetterEntry{
		ID:         uuid.New(),
		RoutingKey: cmd.RoutingKey,
		DedupKey:   cmd.DedupKey,
		Payload:    cmd.Payload,
		Attempts:   cmd.Attempt,
		Reason:     reason,
		ErrorKind:  kind,
		LastError:  lastError,
		Status:     DeadLetterStatusDead,
		FailedAt:   now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// CanReplay reports whether an operator may requeue this command.
// Malformed payloads stay parked: replaying them would fail identically.
func (e *DeadLetterEntry) CanReplay() bool {
	return e.Status == DeadLetterStatusDead && e.Reason != ReasonMalformed
}

// MarkReplayed records an operator replay
func (e *DeadLetterEntry) MarkReplayed() error {
	if !e.CanReplay() {
		return errors.New("entry cannot be replayed")
	}
	now := time.Now()
	e.Status = DeadLetterStatusReplayed
	e.ReplayedAt = &now
	e.UpdatedAt = now
	return nil
}

// ToCommand rebuilds the command for replay, resetting the attempt count
func (e *DeadLetterEntry) ToCommand() Command {
	return Command{
		RoutingKey: e.RoutingKey,
		DedupKey:   e.DedupKey,
		Payload:    e.Payload,
		Attempt:    1,
		ReceivedAt: time.Now(),
	}
}

// DeadLetterRepository defines the interface for dead-letter persistence
type DeadLetterRepository interface {
	// Save persists a dead-letter entry
	Save(ctx context.Context, entry *DeadLetterEntry) error
	// FindByID retrieves a single entry by ID
	FindByID(ctx context.Context, id uuid.UUID) (*DeadLetterEntry, error)
	// FindDead retrieves parked entries with pagination
	FindDead(ctx context.Context, page, pageSize int) ([]*DeadLetterEntry, int64, error)
	// Update updates an existing entry
	Update(ctx context.Context, entry *DeadLetterEntry) error
	// CountByReason returns the number of parked entries per reason
	CountByReason(ctx context.Context) (map[DeadLetterReason]int64, error)
}
