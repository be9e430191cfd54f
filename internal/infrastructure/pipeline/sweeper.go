package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	appcirculation "github.com/library/backend/internal/application/circulation"
	"github.com/library/backend/internal/domain/circulation"
	"github.com/library/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// CommandSink accepts commands into the pipeline.
type CommandSink interface {
	Submit(ctx context.Context, cmd shared.Command) error
}

// SweeperOptions configures the overdue sweep.
type SweeperOptions struct {
	Interval     time.Duration
	RunAtStartup bool
	BatchSize    int
}

// Sweeper periodically finds loans past their due date and enqueues one
// overdue pseudo-command per loan. The transition itself runs on the
// loan's lane like any other command, so a sweep can never race a
// concurrent return or renewal.
type Sweeper struct {
	loans  circulation.LoanRepository
	sink   CommandSink
	opts   SweeperOptions
	logger *zap.Logger
	now    func() time.Time

	processed shared.ProcessedCommandLog
	retention time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a new Sweeper
func NewSweeper(loans circulation.LoanRepository, sink CommandSink, opts SweeperOptions, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		loans:  loans,
		sink:   sink,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the sweeper clock, for tests.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// WithProcessedLog wires the transactional command token log so each
// sweep also purges tokens older than the retention window.
func (s *Sweeper) WithProcessedLog(log shared.ProcessedCommandLog, retention time.Duration) *Sweeper {
	s.processed = log
	s.retention = retention
	return s
}

// Start launches the sweep loop
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if s.opts.RunAtStartup {
			s.runOnce(ctx)
		}
		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.runOnce(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
	s.logger.Info("overdue sweeper started", zap.Duration("interval", s.opts.Interval))
}

// Stop terminates the sweep loop
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("overdue sweeper stopped")
}

func (s *Sweeper) runOnce(ctx context.Context) {
	n, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("overdue sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("overdue sweep enqueued loans", zap.Int("count", n))
	}
	s.purgeTokens(ctx)
}

// purgeTokens drops command tokens past the retention window. Retention
// must cover the broker's redelivery window, which the dedup TTL already
// does, so both use the same setting.
func (s *Sweeper) purgeTokens(ctx context.Context) {
	if s.processed == nil || s.retention <= 0 {
		return
	}
	purged, err := s.processed.PurgeBefore(ctx, s.now().Add(-s.retention))
	if err != nil {
		s.logger.Warn("command token purge failed", zap.Error(err))
		return
	}
	if purged > 0 {
		s.logger.Info("command tokens purged", zap.Int64("count", purged))
	}
}

// Sweep enqueues overdue pseudo-commands for loans due before today and
// returns how many were enqueued. The dedup token carries the sweep date,
// so reruns within a day collapse while tomorrow's sweep still fires for
// loans the state machine has not transitioned yet.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)
	due, err := s.loans.FindDueBefore(ctx, today, s.opts.BatchSize)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, loan := range due {
		payload, err := json.Marshal(appcirculation.SweepLoanCommand{LoanID: loan.ID})
		if err != nil {
			return enqueued, err
		}
		token := fmt.Sprintf("overdue_sweep:%d:%s", loan.ID, today.Format("2006-01-02"))
		cmd := shared.NewCommand(shared.RoutingLoanSweep, payload, token)
		if err := s.sink.Submit(ctx, cmd); err != nil {
			return enqueued, err
		}
		enqueued++
	}
	return enqueued, nil
}
