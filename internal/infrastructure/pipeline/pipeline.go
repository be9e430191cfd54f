package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/library/backend/internal/domain/shared"
	"github.com/library/backend/internal/infrastructure/broker"
	"go.uber.org/zap"
)

// Options bundles the pipeline knobs.
type Options struct {
	Lanes      int
	LaneBuffer int
	Policy     RetryPolicy
	DedupTTL   time.Duration
}

// Pipeline consumes commands from the broker and runs them through
// ingress, dedup, the serializer lanes and the retry policy. Commands
// can also be injected directly, which is how the sweeper and dead-letter
// replay feed work in.
type Pipeline struct {
	consumer    broker.Consumer
	ingress     *Ingress
	dispatcher  *Dispatcher
	dedup       shared.DedupStore
	deadLetters shared.DeadLetterRepository
	opts        Options
	logger      *zap.Logger

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPipeline creates a pipeline; Start begins consuming.
func NewPipeline(consumer broker.Consumer, ingress *Ingress, dedup shared.DedupStore, deadLetters shared.DeadLetterRepository, opts Options, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		consumer:    consumer,
		ingress:     ingress,
		dispatcher:  NewDispatcher(opts.Lanes, opts.LaneBuffer, logger),
		dedup:       dedup,
		deadLetters: deadLetters,
		opts:        opts,
		logger:      logger,
	}
}

// Start launches the lanes and the consume loop.
func (p *Pipeline) Start(ctx context.Context) error {
	p.runCtx, p.cancel = context.WithCancel(ctx)
	p.dispatcher.Start()

	deliveries, err := p.consumer.Consume(p.runCtx)
	if err != nil {
		p.cancel()
		p.dispatcher.Stop()
		return err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.consumeLoop(deliveries)
	}()
	p.logger.Info("pipeline started", zap.Int("lanes", p.opts.Lanes))
	return nil
}

// consumeLoop drains the delivery stream. A stream that ends while the
// pipeline still runs means the broker connection dropped; the loop asks
// the consumer for a new stream with backoff instead of going idle.
func (p *Pipeline) consumeLoop(deliveries <-chan broker.Delivery) {
	for {
		for d := range deliveries {
			p.handleDelivery(d)
		}
		if p.runCtx.Err() != nil {
			p.logger.Info("consume loop ended")
			return
		}

		p.logger.Warn("delivery stream ended, resuming consumption")
		if deliveries = p.resumeConsume(); deliveries == nil {
			p.logger.Info("consume loop ended")
			return
		}
	}
}

// resumeConsume retries Consume until it yields a stream or the pipeline
// shuts down.
func (p *Pipeline) resumeConsume() <-chan broker.Delivery {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0

	for {
		select {
		case <-time.After(bo.NextBackOff()):
		case <-p.runCtx.Done():
			return nil
		}

		deliveries, err := p.consumer.Consume(p.runCtx)
		if err != nil {
			p.logger.Warn("consume restart failed", zap.Error(err))
			continue
		}
		p.logger.Info("consumption resumed")
		return deliveries
	}
}

// Stop cancels consumption and drains the lanes.
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.dispatcher.Stop()
	p.logger.Info("pipeline stopped")
}

// Submit injects a command without a broker delivery. It goes through
// the same dedup check and lanes as consumed commands.
func (p *Pipeline) Submit(ctx context.Context, cmd shared.Command) error {
	return p.process(ctx, cmd, noopAcker{})
}

func (p *Pipeline) handleDelivery(d broker.Delivery) {
	cmd := shared.NewCommand(d.RoutingKey, d.Body, d.MessageID)
	if err := p.process(p.runCtx, cmd, &d); err != nil {
		p.logger.Error("delivery not settled", zap.String("routing_key", d.RoutingKey), zap.Error(err))
	}
}

// settler settles one command with the broker; injected commands use the
// no-op implementation.
type settler interface {
	Ack() error
	Requeue() error
	Park() error
}

type noopAcker struct{}

func (noopAcker) Ack() error     { return nil }
func (noopAcker) Requeue() error { return nil }
func (noopAcker) Park() error    { return nil }

func (p *Pipeline) process(ctx context.Context, cmd shared.Command, settle settler) error {
	processed, err := p.dedup.IsProcessed(ctx, cmd.DedupKey)
	if err != nil {
		// Dedup store down: proceed rather than stall. Lane
		// serialization plus the audit trail bound the damage of a
		// duplicate slipping through.
		p.logger.Warn("dedup check failed", zap.String("dedup_key", cmd.DedupKey), zap.Error(err))
	}
	if processed {
		p.logger.Info("duplicate command skipped",
			zap.String("routing_key", cmd.RoutingKey),
			zap.String("dedup_key", cmd.DedupKey))
		return settle.Ack()
	}

	inv, err := p.ingress.Resolve(cmd)
	if err != nil {
		p.parkCommand(ctx, cmd, shared.ReasonMalformed, err)
		return settle.Park()
	}

	err = p.dispatcher.Dispatch(Task{
		LaneKey: inv.LaneKey,
		Run: func() {
			p.execute(p.runContext(ctx), cmd, inv, settle)
		},
	})
	if err != nil {
		// Shutting down; hand the message back to the broker.
		return settle.Requeue()
	}
	return nil
}

// runContext prefers the pipeline's run context so lane work is not tied
// to the lifetime of an injector's request context.
func (p *Pipeline) runContext(ctx context.Context) context.Context {
	if p.runCtx != nil {
		return p.runCtx
	}
	return ctx
}

// execute runs the command on its lane: invoke, then ack, retry in place
// or dead-letter. Retrying on the lane keeps per-entity FIFO intact at
// the cost of stalling that lane for the backoff.
func (p *Pipeline) execute(ctx context.Context, cmd shared.Command, inv *Invocation, settle settler) {
	// Duplicate deliveries share a dedup key, hence a lane, so they run
	// serialized here. Re-checking on the lane catches the delivery that
	// passed the ingress check while its twin was still in flight.
	processed, cerr := p.dedup.IsProcessed(ctx, cmd.DedupKey)
	if cerr != nil {
		p.logger.Warn("dedup check failed", zap.String("dedup_key", cmd.DedupKey), zap.Error(cerr))
	}
	if processed {
		p.logger.Info("duplicate command skipped",
			zap.String("routing_key", cmd.RoutingKey),
			zap.String("dedup_key", cmd.DedupKey))
		settle.Ack()
		return
	}

	for {
		err := inv.Invoke(ctx)
		if err == nil {
			// The cache mark lands only after the commit. A crash in
			// between redelivers, and the handlers absorb the replay
			// through the token recorded inside the transaction.
			if _, merr := p.dedup.MarkProcessed(ctx, cmd.DedupKey, p.opts.DedupTTL); merr != nil {
				p.logger.Warn("dedup mark failed", zap.String("dedup_key", cmd.DedupKey), zap.Error(merr))
			}
			settle.Ack()
			return
		}

		decision := p.opts.Policy.Decide(err, cmd.Attempt)
		switch decision.Action {
		case ActionRetry:
			p.logger.Warn("transient failure, retrying",
				zap.String("routing_key", cmd.RoutingKey),
				zap.Int("attempt", cmd.Attempt),
				zap.Duration("backoff", decision.Delay),
				zap.Error(err))
			cmd.Attempt++
			select {
			case <-time.After(decision.Delay):
			case <-ctx.Done():
				if rerr := settle.Requeue(); rerr != nil {
					p.logger.Warn("requeue failed",
						zap.String("routing_key", cmd.RoutingKey),
						zap.Error(rerr))
				}
				return
			}

		case ActionReject:
			p.logger.Info("command rejected",
				zap.String("routing_key", cmd.RoutingKey),
				zap.String("dedup_key", cmd.DedupKey),
				zap.Error(err))
			// Rejections are final outcomes, preserved for audit but
			// acked: the broker must not redeliver them.
			p.parkCommand(ctx, cmd, decision.Reason, err)
			settle.Ack()
			return

		case ActionPark:
			p.parkCommand(ctx, cmd, decision.Reason, err)
			settle.Park()
			return
		}
	}
}

// parkCommand preserves a failed command in the dead-letter store. The
// dedup key is deliberately left unmarked so an operator replay is not
// skipped as a duplicate.
func (p *Pipeline) parkCommand(ctx context.Context, cmd shared.Command, reason shared.DeadLetterReason, cause error) {
	entry := shared.NewDeadLetterEntry(cmd, reason, shared.KindOf(cause), cause.Error())
	if err := p.deadLetters.Save(ctx, entry); err != nil {
		p.logger.Error("dead letter save failed",
			zap.String("routing_key", cmd.RoutingKey),
			zap.String("dedup_key", cmd.DedupKey),
			zap.Error(err))
		return
	}
	p.logger.Warn("command dead-lettered",
		zap.String("entry_id", entry.ID.String()),
		zap.String("routing_key", cmd.RoutingKey),
		zap.String("reason", string(reason)),
		zap.Int("attempts", cmd.Attempt),
		zap.Error(cause))
}
