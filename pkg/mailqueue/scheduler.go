package mailqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/mailqueue/pkg/logger"
)

// ItemDispatcher is implemented by *Dispatcher.
type ItemDispatcher interface {
	Dispatch(ctx context.Context, item *Item) (Outcome, error)
}

// TickReport summarises one scheduler tick.
type TickReport struct {
	Disabled bool
	Ready    int
	Sent     int
	Retried  int
	Failed   int
	Skipped  int
	Errors   int
}

func (r *TickReport) add(outcome Outcome) {
	switch outcome {
	case OutcomeSent:
		r.Sent++
	case OutcomeRetry:
		r.Retried++
	case OutcomeFailed:
		r.Failed++
	default:
		r.Skipped++
	}
}

// Scheduler polls the store on a fixed interval and feeds ready items to the
// dispatcher one at a time, in the order the store returns them.
// Only one scheduler should run against a store; see Dispatcher for how
// concurrent claims are resolved.
type Scheduler struct {
	repo         SchedulerRepository
	dispatcher   ItemDispatcher
	enabled      bool
	interval     time.Duration
	initialDelay time.Duration
	batchSize    int
	clock        Clock
	metrics      Metrics
	logger       *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler. Nothing runs until Start.
func NewScheduler(repo SchedulerRepository, dispatcher ItemDispatcher, cfg Config, opts ...Option) (*Scheduler, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	if dispatcher == nil {
		return nil, ErrDispatcherNil
	}
	if cfg.PollingInterval <= 0 {
		return nil, fmt.Errorf("%w: polling interval must be positive", ErrInvalidConfig)
	}
	if cfg.InitialDelay < 0 || cfg.BatchSize < 0 {
		return nil, fmt.Errorf("%w: initial delay and batch size must not be negative", ErrInvalidConfig)
	}

	o := newOptions(opts)

	return &Scheduler{
		repo:         repo,
		dispatcher:   dispatcher,
		enabled:      cfg.Enabled,
		interval:     cfg.PollingInterval,
		initialDelay: cfg.InitialDelay,
		batchSize:    cfg.BatchSize,
		clock:        o.clock,
		metrics:      o.metrics,
		logger:       o.logger,
	}, nil
}

// Start spawns the timer goroutine and returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrSchedulerRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx, s.done)

	s.logger.InfoContext(ctx, "queue scheduler started",
		slog.Bool("enabled", s.enabled),
		slog.Duration("interval", s.interval),
		slog.Duration("initial_delay", s.initialDelay))

	return nil
}

// Stop cancels the timer and waits for the in-flight tick to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	<-done

	s.logger.Info("queue scheduler stopped")
	return nil
}

// Run starts the scheduler and returns a function suitable for errgroup
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		if err := s.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return s.Stop()
	}
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if s.initialDelay > 0 {
		timer := time.NewTimer(s.initialDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Tick(ctx); err != nil {
			s.logger.ErrorContext(ctx, "queue tick failed", logger.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick runs one polling cycle synchronously.
// The error is non-nil only when the ready query itself fails; per-item
// errors are logged and counted in the report.
func (s *Scheduler) Tick(ctx context.Context) (TickReport, error) {
	var report TickReport

	if !s.enabled {
		report.Disabled = true
		return report, nil
	}

	start := time.Now()
	items, err := s.repo.FindReady(ctx, s.clock.Now(), s.batchSize)
	if err != nil {
		return report, fmt.Errorf("failed to find ready items: %w", err)
	}
	report.Ready = len(items)

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}

		outcome, err := s.dispatcher.Dispatch(ctx, item)
		if err != nil {
			report.Errors++
			s.logger.ErrorContext(ctx, "failed to dispatch queue item",
				logger.ItemID(item.ID),
				logger.Kind(item.Kind),
				logger.Error(err))
			continue
		}
		report.add(outcome)
	}

	s.metrics.ObserveTick(report.Ready, time.Since(start))

	if report.Ready > 0 {
		s.logger.DebugContext(ctx, "queue tick finished",
			slog.Int("ready", report.Ready),
			slog.Int("sent", report.Sent),
			slog.Int("retried", report.Retried),
			slog.Int("failed", report.Failed),
			slog.Int("skipped", report.Skipped),
			slog.Int("errors", report.Errors))
	}

	return report, nil
}
