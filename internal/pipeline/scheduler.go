package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context) (RunReport, error)
}

// Scheduler triggers runs on a cron schedule.
type Scheduler struct {
	runner Runner
	now    func() time.Time
	after  func(time.Duration) <-chan time.Time
	logger *slog.Logger
}

// NewScheduler creates a Scheduler for runner.
func NewScheduler(runner Runner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner: runner,
		now:    time.Now,
		after:  time.After,
		logger: logger.With(slog.String("component", "scheduler")),
	}
}

// RunCron runs the pipeline on a 5-field cron schedule
// ("minute hour day-of-month month day-of-week", evaluated in UTC) until ctx
// is cancelled. A failed run is logged and the schedule continues.
//
// Standard cron syntax applies, including descriptors such as "@daily".
func (s *Scheduler) RunCron(ctx context.Context, expr string) error {
	sched, err := ParseCron(expr)
	if err != nil {
		return fmt.Errorf("pipeline: cron %q: %w", expr, err)
	}
	s.logger.InfoContext(ctx, "scheduler started", slog.String("cron", expr))

	for {
		if err := ctx.Err(); err != nil {
			s.logger.InfoContext(ctx, "scheduler stopped")
			return err
		}
		now := s.now().UTC()
		next, ok := sched.Next(now)
		if !ok {
			return fmt.Errorf("pipeline: cron %q: no matching time", expr)
		}
		wait := next.Sub(now)
		s.logger.InfoContext(ctx, "waiting for next run",
			slog.Time("next_run", next),
			slog.Duration("wait", wait),
		)

		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "scheduler stopped")
			return ctx.Err()
		case <-s.after(wait):
			if _, err := s.runner.Run(ctx); err != nil {
				s.logger.ErrorContext(ctx, "scheduled run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Schedule is a parsed cron expression.
type Schedule struct {
	cs cron.Schedule
}

// ParseCron parses a 5-field cron expression.
func ParseCron(expr string) (Schedule, error) {
	cs, err := cron.ParseStandard(expr)
	if err != nil {
		return Schedule{}, err
	}
	return Schedule{cs: cs}, nil
}

// Next returns the first matching minute strictly after t, or false when the
// expression never matches.
func (s Schedule) Next(t time.Time) (time.Time, bool) {
	next := s.cs.Next(t)
	return next, !next.IsZero()
}
