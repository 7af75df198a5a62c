package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-brokerage/internal/logger"
)

type SchedulerTestSuite struct {
	suite.Suite
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func (suite *SchedulerTestSuite) TestUntilNextMidnight() {
	location := time.UTC

	at := time.Date(2025, 3, 10, 23, 59, 0, 0, location)
	suite.Equal(time.Minute, untilNextMidnight(at, location))

	// Exactly midnight schedules a full day ahead
	midnight := time.Date(2025, 3, 10, 0, 0, 0, 0, location)
	suite.Equal(24*time.Hour, untilNextMidnight(midnight, location))
}

func (suite *SchedulerTestSuite) TestPeriodicRunsUntilCancelled() {
	var runs atomic.Int64

	periodic := RunnerFunc(func(ctx context.Context) error {
		runs.Add(1)

		return nil
	})

	// Daily runner never fires within the test window
	daily := RunnerFunc(func(ctx context.Context) error {
		suite.Fail("daily runner must not fire")

		return nil
	})

	s := NewScheduler(daily, periodic, 5*time.Millisecond, time.UTC, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})

	go func() {
		s.Start(ctx)
		close(done)
	}()

	suite.Eventually(func() bool {
		return runs.Load() >= 3
	}, time.Second, time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		suite.Fail("scheduler did not stop on cancellation")
	}
}

func (suite *SchedulerTestSuite) TestDailyFiresAfterMidnight() {
	var runs atomic.Int64

	daily := RunnerFunc(func(ctx context.Context) error {
		runs.Add(1)

		return nil
	})

	periodic := RunnerFunc(func(ctx context.Context) error {
		return nil
	})

	s := NewScheduler(daily, periodic, time.Hour, time.UTC, logger.NewNopLogger())

	// Pin the clock just before midnight so the first wait is tiny
	s.now = func() time.Time {
		return time.Date(2025, 3, 10, 23, 59, 59, int(time.Second-5*time.Millisecond), time.UTC)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Start(ctx)

	suite.Eventually(func() bool {
		return runs.Load() >= 1
	}, time.Second, time.Millisecond)
}
