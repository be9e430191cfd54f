package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/library/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// EventPublisher sends committed domain events to the topic exchange,
// routed by event type. Consumers downstream (the notification service)
// bind to the keys they care about.
type EventPublisher struct {
	publisher Publisher
	logger    *zap.Logger
}

// NewEventPublisher creates a new EventPublisher
func NewEventPublisher(publisher Publisher, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{publisher: publisher, logger: logger}
}

// Publish marshals and sends each event. The first broker failure is
// returned; earlier events in the batch stay published.
func (p *EventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, event := range events {
		body, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", event.EventType(), err)
		}
		if err := p.publisher.Publish(ctx, event.EventType(), body); err != nil {
			return err
		}
		p.logger.Debug("event published",
			zap.String("event_type", event.EventType()),
			zap.Int64("aggregate_id", event.AggregateID()))
	}
	return nil
}

// Ensure EventPublisher implements shared.EventPublisher
var _ shared.EventPublisher = (*EventPublisher)(nil)
