package broker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBrokerClosed is returned when using a closed in-memory broker.
var ErrBrokerClosed = errors.New("broker closed")

// InMemoryBroker is a channel-backed broker for tests and local runs. It
// routes published command keys back into its own delivery stream and
// records outbound event publishes for inspection.
type InMemoryBroker struct {
	mu         sync.Mutex
	deliveries chan Delivery
	published  []PublishedMessage
	requeued   chan Delivery
	closed     bool
}

// PublishedMessage is one captured outbound publish.
type PublishedMessage struct {
	RoutingKey string
	Body       []byte
}

// NewInMemoryBroker creates a broker with the given delivery buffer.
func NewInMemoryBroker(buffer int) *InMemoryBroker {
	return &InMemoryBroker{
		deliveries: make(chan Delivery, buffer),
		requeued:   make(chan Delivery, buffer),
	}
}

// Deliver enqueues a command delivery as if it arrived from the wire.
func (b *InMemoryBroker) Deliver(routingKey string, body []byte, messageID string) {
	b.deliveries <- Delivery{
		RoutingKey: routingKey,
		Body:       body,
		MessageID:  messageID,
		ReceivedAt: time.Now(),
	}
}

// Consume returns the delivery stream. Requeued deliveries are fed back
// in, marked redelivered.
func (b *InMemoryBroker) Consume(ctx context.Context) (<-chan Delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			var d Delivery
			select {
			case d = <-b.requeued:
				d.Redelivered = true
			case d = <-b.deliveries:
			case <-ctx.Done():
				return
			}
			d.acker = &inmemAcker{broker: b, delivery: d}
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Publish records an outbound message.
func (b *InMemoryBroker) Publish(_ context.Context, routingKey string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBrokerClosed
	}
	bodyCopy := make([]byte, len(body))
	copy(bodyCopy, body)
	b.published = append(b.published, PublishedMessage{RoutingKey: routingKey, Body: bodyCopy})
	return nil
}

// Published returns a snapshot of the captured outbound messages.
func (b *InMemoryBroker) Published() []PublishedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]PublishedMessage, len(b.published))
	copy(out, b.published)
	return out
}

// Close marks the broker closed.
func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

type inmemAcker struct {
	broker   *InMemoryBroker
	delivery Delivery
	once     sync.Once
}

func (a *inmemAcker) Ack() error {
	return nil
}

// ErrRequeueFull is returned when the requeue buffer cannot take the
// delivery back.
var ErrRequeueFull = errors.New("requeue buffer full")

func (a *inmemAcker) Requeue() error {
	var err error
	a.once.Do(func() {
		d := a.delivery
		d.acker = nil
		select {
		case a.broker.requeued <- d:
		default:
			err = ErrRequeueFull
		}
	})
	return err
}

func (a *inmemAcker) Park() error {
	return nil
}

var (
	_ Consumer  = (*InMemoryBroker)(nil)
	_ Publisher = (*InMemoryBroker)(nil)
)
