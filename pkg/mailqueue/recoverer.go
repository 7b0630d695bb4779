package mailqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/mailqueue/pkg/logger"
)

// stuckError is recorded on items the recoverer returns to the queue.
const stuckError = "processing timed out"

// Recoverer returns items that were left in processing by a crashed process.
// A send that outlives StuckTimeout is considered lost. The retry counter is
// not touched because the attempt never reported an outcome.
type Recoverer struct {
	repo         RecovererRepository
	stuckTimeout time.Duration
	schedule     cron.Schedule
	expr         string
	clock        Clock
	metrics      Metrics
	logger       *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewRecoverer creates a recoverer. The schedule uses standard cron syntax
// including descriptors such as "@every 5m".
func NewRecoverer(repo RecovererRepository, cfg Config, opts ...Option) (*Recoverer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	if cfg.StuckTimeout <= 0 {
		return nil, fmt.Errorf("%w: stuck timeout must be positive", ErrInvalidConfig)
	}
	// A sweep must never requeue an item whose send can still complete.
	if cfg.StuckTimeout <= cfg.SendTimeout {
		return nil, fmt.Errorf("%w: stuck timeout %s must exceed send timeout %s", ErrInvalidConfig, cfg.StuckTimeout, cfg.SendTimeout)
	}

	schedule, err := cron.ParseStandard(cfg.RecoverySchedule)
	if err != nil {
		return nil, fmt.Errorf("%w: recovery schedule %q: %w", ErrInvalidConfig, cfg.RecoverySchedule, err)
	}

	o := newOptions(opts)

	return &Recoverer{
		repo:         repo,
		stuckTimeout: cfg.StuckTimeout,
		schedule:     schedule,
		expr:         cfg.RecoverySchedule,
		clock:        o.clock,
		metrics:      o.metrics,
		logger:       o.logger,
	}, nil
}

// Sweep requeues every stuck item once and returns how many were recovered.
// Items that changed state while the sweep ran are skipped.
func (r *Recoverer) Sweep(ctx context.Context) (int, error) {
	now := r.clock.Now()
	stuck, err := r.repo.FindStuck(ctx, now.Add(-r.stuckTimeout))
	if err != nil {
		return 0, fmt.Errorf("failed to find stuck items: %w", err)
	}

	var recovered int
	for _, item := range stuck {
		if ctx.Err() != nil {
			return recovered, ctx.Err()
		}

		requeued := item.Clone()
		if err := requeued.moveTo(StatusPending, now); err != nil {
			continue
		}
		requeued.LastError = stuckError
		requeued.NextRetryAt = now

		if err := r.repo.Save(ctx, requeued, StatusProcessing); err != nil {
			if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
				continue
			}
			return recovered, fmt.Errorf("failed to requeue stuck item %s: %w", item.ID, err)
		}

		recovered++
		r.logger.WarnContext(ctx, "stuck queue item requeued",
			logger.ItemID(item.ID),
			logger.Kind(item.Kind),
			slog.Time("processing_since", item.UpdatedAt))
	}

	if recovered > 0 {
		r.metrics.AddRecovered(recovered)
	}

	return recovered, nil
}

// Start schedules Sweep on the cron schedule. Overlapping runs are skipped.
func (r *Recoverer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil {
		return ErrSchedulerRunning
	}

	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	c.Schedule(r.schedule, cron.FuncJob(func() {
		if _, err := r.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.ErrorContext(ctx, "stuck item sweep failed", logger.Error(err))
		}
	}))
	c.Start()
	r.cron = c

	r.logger.InfoContext(ctx, "stuck item recoverer started",
		slog.String("schedule", r.expr),
		slog.Duration("stuck_timeout", r.stuckTimeout))

	return nil
}

// Stop halts the schedule and waits for a running sweep to return.
func (r *Recoverer) Stop() error {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c == nil {
		return ErrSchedulerNotRunning
	}

	<-c.Stop().Done()

	r.logger.Info("stuck item recoverer stopped")
	return nil
}

// Run starts the recoverer and returns a function suitable for errgroup
func (r *Recoverer) Run(ctx context.Context) func() error {
	return func() error {
		if err := r.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return r.Stop()
	}
}
