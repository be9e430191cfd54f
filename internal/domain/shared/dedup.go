package shared

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateCommand reports that a command token was already recorded
// by a committed transaction.
var ErrDuplicateCommand = errors.New("command already processed")

// ProcessedCommand is one committed command token. The row is written in
// the same transaction as the transition it guards, so the token and the
// state change become durable atomically. The cache-backed DedupStore is
// the fast path in front of this table.
type ProcessedCommand struct {
	Token       string    `gorm:"primaryKey;size:128"`
	RoutingKey  string    `gorm:"size:64"`
	ProcessedAt time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (ProcessedCommand) TableName() string {
	return "processed_commands"
}

// ProcessedCommandLog records command tokens transactionally.
type ProcessedCommandLog interface {
	// Record writes the token inside the current transaction. Returns
	// ErrDuplicateCommand if an earlier transaction already committed it.
	Record(ctx context.Context, token, routingKey string) error

	// PurgeBefore deletes tokens recorded before the cutoff and returns
	// how many were removed.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DedupStore remembers committed dedup keys so redelivered commands can be
// acknowledged as no-op successes instead of re-executing their transition.
type DedupStore interface {
	// MarkProcessed marks a dedup key as committed with a TTL.
	// Returns true if the key was newly marked, false if it already existed.
	MarkProcessed(ctx context.Context, dedupKey string, ttl time.Duration) (bool, error)

	// IsProcessed checks whether a dedup key was already committed.
	IsProcessed(ctx context.Context, dedupKey string) (bool, error)

	// Close closes the store and releases resources.
	Close() error
}

// DedupConfig holds configuration for command deduplication
type DedupConfig struct {
	// TTL is how long committed dedup keys are retained. It must cover
	// the maximum plausible redelivery window of the broker.
	TTL time.Duration

	// Enabled determines whether dedup checking is enabled
	Enabled bool
}

// DefaultDedupConfig returns the default dedup configuration
func DefaultDedupConfig() DedupConfig {
	return DedupConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
