// Package operations holds the operator intervention surface: inspecting
// and replaying dead-lettered commands.
package operations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/library/backend/internal/domain/shared"
	"go.uber.org/zap"
)

var errNotReplayable = shared.NewDomainError(shared.KindConflict, "NOT_REPLAYABLE", "Entry is malformed or already replayed")

// CommandSink accepts a command back into the pipeline.
type CommandSink interface {
	Submit(ctx context.Context, cmd shared.Command) error
}

// DeadLetterService lists and replays parked commands
type DeadLetterService struct {
	entries shared.DeadLetterRepository
	sink    CommandSink
	logger  *zap.Logger
}

// NewDeadLetterService creates a new DeadLetterService
func NewDeadLetterService(entries shared.DeadLetterRepository, sink CommandSink, logger *zap.Logger) *DeadLetterService {
	return &DeadLetterService{entries: entries, sink: sink, logger: logger}
}

// DeadLetterResponse is one parked command in wire form
type DeadLetterResponse struct {
	ID         uuid.UUID  `json:"id"`
	RoutingKey string     `json:"routing_key"`
	DedupKey   string     `json:"dedup_key"`
	Payload    string     `json:"payload"`
	Attempts   int        `json:"attempts"`
	Reason     string     `json:"reason"`
	ErrorKind  string     `json:"error_kind"`
	LastError  string     `json:"last_error"`
	Status     string     `json:"status"`
	CanReplay  bool       `json:"can_replay"`
	FailedAt   time.Time  `json:"failed_at"`
	ReplayedAt *time.Time `json:"replayed_at,omitempty"`
}

// DeadLetterListResponse is a page of parked commands
type DeadLetterListResponse struct {
	Entries  []DeadLetterResponse `json:"entries"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

func toResponse(entry *shared.DeadLetterEntry) DeadLetterResponse {
	return DeadLetterResponse{
		ID:         entry.ID,
		RoutingKey: entry.RoutingKey,
		DedupKey:   entry.DedupKey,
		Payload:    string(entry.Payload),
		Attempts:   entry.Attempts,
		Reason:     string(entry.Reason),
		ErrorKind:  string(entry.ErrorKind),
		LastError:  entry.LastError,
		Status:     string(entry.Status),
		CanReplay:  entry.CanReplay(),
		FailedAt:   entry.FailedAt,
		ReplayedAt: entry.ReplayedAt,
	}
}

// List returns a page of parked commands, newest failures first
func (s *DeadLetterService) List(ctx context.Context, page, pageSize int) (*DeadLetterListResponse, error) {
	entries, total, err := s.entries.FindDead(ctx, page, pageSize)
	if err != nil {
		return nil, err
	}
	out := make([]DeadLetterResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toResponse(entry))
	}
	return &DeadLetterListResponse{
		Entries:  out,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// Replay requeues one parked command through the pipeline with a fresh
// attempt budget. Malformed entries are not replayable; they would fail
// identically.
func (s *DeadLetterService) Replay(ctx context.Context, id uuid.UUID) (*DeadLetterResponse, error) {
	entry, err := s.entries.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !entry.CanReplay() {
		return nil, errNotReplayable
	}

	if err := s.sink.Submit(ctx, entry.ToCommand()); err != nil {
		return nil, err
	}
	if err := entry.MarkReplayed(); err != nil {
		return nil, err
	}
	if err := s.entries.Update(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info("dead letter replayed",
		zap.String("entry_id", entry.ID.String()),
		zap.String("routing_key", entry.RoutingKey))
	resp := toResponse(entry)
	return &resp, nil
}

// Stats returns the number of parked commands per reason
func (s *DeadLetterService) Stats(ctx context.Context) (map[string]int64, error) {
	counts, err := s.entries.CountByReason(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(counts))
	for reason, count := range counts {
		out[string(reason)] = count
	}
	return out, nil
}
