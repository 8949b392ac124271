package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Scheduler periodically releases deferred notifications: those created with
// a future ScheduledFor and those pushed past a quiet-hours window. Run one
// scheduler per instance; ListDue ordering makes duplicate release across
// instances harmless but wasteful.
type Scheduler struct {
	svc      *Service
	interval time.Duration
	batch    int
	log      *slog.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerInterval overrides the tick interval.
func WithSchedulerInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSchedulerBatchSize caps releases per tick.
func WithSchedulerBatchSize(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.batch = n
		}
	}
}

// WithSchedulerLogger sets the logger. Defaults to slog.Default().
func WithSchedulerLogger(log *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// NewScheduler creates a scheduler driving the service's deferred queue.
// Interval and batch size default to the service configuration.
func NewScheduler(svc *Service, opts ...SchedulerOption) (*Scheduler, error) {
	if svc == nil {
		return nil, ErrNilService
	}

	s := &Scheduler{
		svc:      svc,
		interval: svc.cfg.SchedulerInterval,
		batch:    svc.cfg.SchedulerBatchSize,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run ticks until the context is canceled, releasing due notifications on
// every tick. It returns the context's error on shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.InfoContext(ctx, "Notification scheduler started",
		slog.Duration("interval", s.interval),
		slog.Int("batch", s.batch))

	for {
		select {
		case <-ctx.Done():
			s.log.InfoContext(ctx, "Notification scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			released, err := s.svc.ReleaseDue(ctx, s.batch)
			if err != nil {
				s.log.ErrorContext(ctx, "Scheduler tick failed", logger.Error(err))
				continue
			}
			if released > 0 {
				s.log.InfoContext(ctx, "Released deferred notifications",
					slog.Int("count", released))
			}
		}
	}
}
