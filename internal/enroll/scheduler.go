package enroll

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler waits out the interval until the enrollment deadline. The wait
// has two phases: one coarse sleep up to the refresh margin before the
// deadline, then a fine-grained loop in short slices so the overshoot past
// the deadline stays within one poll interval. A single long sleep across
// the deadline would be at the mercy of timer imprecision; the fine loop
// recomputes the remaining time on every iteration.
type Scheduler struct {
	margin time.Duration
	poll   time.Duration
	logger *slog.Logger

	// now and sleep are swapped out in tests.
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

func NewScheduler(cfg Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		margin: cfg.RefreshMargin,
		poll:   cfg.PollInterval,
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Until returns the time left until the deadline, clamped at zero. A
// deadline in the past means "act immediately".
func (s *Scheduler) Until(deadline time.Time) time.Duration {
	d := deadline.Sub(s.now())
	if d < 0 {
		return 0
	}
	return d
}

// NeedsRefresh reports whether a credential refresh must happen before
// firing: a token is only used within the freshness margin of the
// deadline. A deadline that has already passed is fired with the original
// token.
func (s *Scheduler) NeedsRefresh(deadline time.Time) bool {
	return s.Until(deadline) > 0
}

// CoarseSleep sleeps until the refresh margin before the deadline. It
// must only be called when more than the margin remains; the caller then
// refreshes the credential and re-fetches the lesson.
func (s *Scheduler) CoarseSleep(ctx context.Context, deadline time.Time) error {
	wait := s.Until(deadline) - s.margin
	if wait <= 0 {
		return nil
	}

	s.logger.Info("Sleeping until the refresh margin before the deadline",
		slog.Duration("wait", wait),
		slog.Time("deadline", deadline),
	)

	return s.sleep(ctx, wait)
}

// WaitUntil runs the fine-grained wait loop: sleep in slices of at most
// one poll interval, recomputing the remaining time each iteration, until
// the deadline is reached or passed.
func (s *Scheduler) WaitUntil(ctx context.Context, deadline time.Time) error {
	remaining := deadline.Sub(s.now())
	if remaining <= 0 {
		return nil
	}

	s.logger.Info("Entering fine-grained wait",
		slog.Duration("remaining", remaining),
		slog.Duration("poll_interval", s.poll),
	)

	for {
		remaining = deadline.Sub(s.now())
		if remaining <= 0 {
			return nil
		}

		slice := remaining
		if slice > s.poll {
			slice = s.poll
		}

		if err := s.sleep(ctx, slice); err != nil {
			return err
		}
	}
}

// sleepContext sleeps for d unless the context is canceled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
