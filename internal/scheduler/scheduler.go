// Package scheduler drives the periodic batch entry points: the daily
// interest-and-liquidation pass and the short-interval limit-order
// matching cycle.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-brokerage/internal/logger"
)

// Runner is a batch entry point invoked on a schedule.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context) error

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Scheduler fires the daily runner at local midnight and the periodic
// runner on a fixed interval. Run errors are logged; the schedule keeps
// going until the context is cancelled.
type Scheduler struct {
	daily    Runner
	periodic Runner
	interval time.Duration
	location *time.Location
	logger   *logger.Logger

	now func() time.Time
}

// NewScheduler builds a Scheduler.
func NewScheduler(daily Runner, periodic Runner, interval time.Duration, location *time.Location, log *logger.Logger) *Scheduler {
	return &Scheduler{
		daily:    daily,
		periodic: periodic,
		interval: interval,
		location: location,
		logger:   log,
		now:      time.Now,
	}
}

// Start blocks, running both schedules until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(2)

	go func() {
		defer wg.Done()
		s.runDaily(ctx)
	}()

	go func() {
		defer wg.Done()
		s.runPeriodic(ctx)
	}()

	wg.Wait()
}

func (s *Scheduler) runDaily(ctx context.Context) {
	for {
		wait := untilNextMidnight(s.now(), s.location)

		s.logger.Info("daily job scheduled",
			zap.Duration("in", wait))

		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()

			return
		case <-timer.C:
		}

		if err := s.daily.Run(ctx); err != nil {
			s.logger.Error("daily job failed", zap.Error(err))
		}
	}
}

func (s *Scheduler) runPeriodic(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := s.periodic.Run(ctx); err != nil {
			s.logger.Error("matching cycle failed", zap.Error(err))
		}
	}
}

// untilNextMidnight returns the duration from now to the next local
// midnight. Called right at midnight it returns a full day, so the
// daily job cannot double-fire.
func untilNextMidnight(now time.Time, location *time.Location) time.Duration {
	local := now.In(location)
	next := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, location)

	return next.Sub(local)
}
