package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/library/backend/internal/infrastructure/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Routing key patterns the command queue binds to.
var queueBindings = []string{"loan.*", "book.*", "user.*"}

// ErrConsumerClosed is returned when using a closed AMQP broker.
var ErrConsumerClosed = errors.New("amqp broker closed")

// AMQPBroker is a topic-exchange client backed by RabbitMQ. A single
// connection carries two channels, one for consuming commands and one for
// publishing events, since publishing from a channel in consumer flow
// control can block. A lost connection is redialed with backoff; the
// delivery stream handed out by Consume survives the reconnect.
type AMQPBroker struct {
	url string

	mu        sync.Mutex
	conn      *amqp.Connection
	consumeCh *amqp.Channel
	publishCh *amqp.Channel
	closed    bool

	exchange    string
	queue       string
	prefetch    int
	consumerTag string
	logger      *zap.Logger
}

// NewAMQPBroker connects to the broker and declares the topology: a
// durable topic exchange, a durable command queue and its bindings.
func NewAMQPBroker(cfg config.BrokerConfig, logger *zap.Logger) (*AMQPBroker, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	b := &AMQPBroker{
		url:         cfg.URL,
		conn:        conn,
		exchange:    cfg.Exchange,
		queue:       cfg.Queue,
		prefetch:    cfg.Prefetch,
		consumerTag: "loan-pipeline",
		logger:      logger,
	}
	if err := b.setup(); err != nil {
		conn.Close()
		return nil, err
	}
	return b, nil
}

// setup opens both channels and declares the topology. Callers hold the
// mutex, or own the broker exclusively as in NewAMQPBroker.
func (b *AMQPBroker) setup() error {
	consumeCh, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consume channel: %w", err)
	}
	publishCh, err := b.conn.Channel()
	if err != nil {
		consumeCh.Close()
		return fmt.Errorf("failed to open publish channel: %w", err)
	}
	b.consumeCh = consumeCh
	b.publishCh = publishCh

	if err := consumeCh.ExchangeDeclare(b.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	if _, err := consumeCh.QueueDeclare(b.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	for _, pattern := range queueBindings {
		if err := consumeCh.QueueBind(b.queue, pattern, b.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s: %w", pattern, err)
		}
	}
	if err := consumeCh.Qos(b.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}
	return nil
}

// Consume opens the command delivery stream with manual acknowledgement.
// The returned channel stays open across connection loss: when the
// underlying stream dies the broker redials and resumes on the same
// channel. It closes on context cancellation or Close.
func (b *AMQPBroker) Consume(ctx context.Context) (<-chan Delivery, error) {
	deliveries, err := b.openStream(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			b.forward(ctx, deliveries, out)
			if ctx.Err() != nil || b.isClosed() {
				return
			}

			b.logger.Warn("delivery stream lost, reconnecting")
			if deliveries = b.reconnect(ctx); deliveries == nil {
				return
			}
		}
	}()
	return out, nil
}

func (b *AMQPBroker) openStream(ctx context.Context) (<-chan amqp.Delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrConsumerClosed
	}
	deliveries, err := b.consumeCh.ConsumeWithContext(ctx, b.queue, b.consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start consumer: %w", err)
	}
	return deliveries, nil
}

// forward bridges raw deliveries onto out until the stream closes or the
// context ends.
func (b *AMQPBroker) forward(ctx context.Context, deliveries <-chan amqp.Delivery, out chan<- Delivery) {
	for d := range deliveries {
		delivery := Delivery{
			RoutingKey:  d.RoutingKey,
			Body:        d.Body,
			MessageID:   d.MessageId,
			Redelivered: d.Redelivered,
			ReceivedAt:  time.Now(),
			acker:       amqpAcker{d: d},
		}
		select {
		case out <- delivery:
		case <-ctx.Done():
			// Unsettled deliveries go back to the queue when the
			// channel closes.
			return
		}
	}
}

// reconnect redials until a fresh consumer stream is live, the context is
// cancelled or the broker is closed.
func (b *AMQPBroker) reconnect(ctx context.Context) <-chan amqp.Delivery {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0

	for {
		select {
		case <-time.After(bo.NextBackOff()):
		case <-ctx.Done():
			return nil
		}

		if err := b.redial(); err != nil {
			b.logger.Warn("broker reconnect failed", zap.Error(err))
			continue
		}
		deliveries, err := b.openStream(ctx)
		if err != nil {
			b.logger.Warn("consumer restart failed", zap.Error(err))
			continue
		}
		b.logger.Info("broker reconnected")
		return deliveries
	}
}

// redial replaces the connection and both channels and redeclares the
// topology.
func (b *AMQPBroker) redial() error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("failed to reconnect to broker: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		conn.Close()
		return ErrConsumerClosed
	}
	if b.conn != nil {
		b.conn.Close()
	}
	b.conn = conn
	return b.setup()
}

func (b *AMQPBroker) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Publish sends a payload to the topic exchange under the routing key.
func (b *AMQPBroker) Publish(ctx context.Context, routingKey string, body []byte) error {
	b.mu.Lock()
	ch := b.publishCh
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrConsumerClosed
	}

	err := ch.PublishWithContext(ctx, b.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	return nil
}

// Close releases the channels and the connection.
func (b *AMQPBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.consumeCh != nil {
		b.consumeCh.Close()
	}
	if b.publishCh != nil {
		b.publishCh.Close()
	}
	return b.conn.Close()
}

type amqpAcker struct {
	d amqp.Delivery
}

func (a amqpAcker) Ack() error {
	return a.d.Ack(false)
}

func (a amqpAcker) Requeue() error {
	return a.d.Nack(false, true)
}

func (a amqpAcker) Park() error {
	return a.d.Nack(false, false)
}

var (
	_ Consumer  = (*AMQPBroker)(nil)
	_ Publisher = (*AMQPBroker)(nil)
)
