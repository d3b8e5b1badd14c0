package enroll

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Outcome is the definitive result of one enrollment attempt. Enrolled is
// only true when the provider confirmed the registration; a rejection is a
// clean outcome, not an error.
type Outcome struct {
	Enrolled bool
	Message  string
}

// Engine drives one enrollment job end to end: authenticate, resolve the
// lesson, wait out the deadline with a late credential refresh, and fire
// the registration request. All working state (session, lesson metadata)
// is private to a single Run call, so concurrent jobs never share anything.
type Engine struct {
	cfg Config

	// now and sleep override the scheduler's clock in tests.
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

func (e *Engine) newScheduler(logger *slog.Logger) *Scheduler {
	sched := NewScheduler(e.cfg, logger)
	if e.now != nil {
		sched.now = e.now
	}
	if e.sleep != nil {
		sched.sleep = e.sleep
	}
	return sched
}

// Run executes the phases strictly in sequence. The logger carries the
// per-job context; the engine keeps no logger of its own.
func (e *Engine) Run(ctx context.Context, logger *slog.Logger, creds Credentials, locator string) (*Outcome, error) {
	// Locator parsing is purely syntactic and must fail before any
	// network traffic.
	lessonID, err := ExtractLessonID(locator)
	if err != nil {
		return nil, err
	}

	logger = logger.With(slog.String("lesson_id", lessonID))

	session := NewSession(e.cfg, logger)
	resolver := NewResolver(e.cfg, logger)
	executor := NewExecutor(e.cfg, logger)
	sched := e.newScheduler(logger)

	token, err := session.Authenticate(ctx, creds)
	if err != nil {
		return nil, err
	}

	lesson, err := resolver.FetchLesson(ctx, token, lessonID)
	if err != nil {
		return nil, err
	}

	deadline := lesson.EnrollmentFrom
	until := sched.Until(deadline)

	switch {
	case until > e.cfg.RefreshMargin:
		// Long wait: sleep up to the margin, then renew the token so it
		// cannot go stale mid-attempt, and re-fetch the lesson in case
		// the opening time moved while we slept.
		if err := sched.CoarseSleep(ctx, deadline); err != nil {
			return nil, fmt.Errorf("interrupted during coarse sleep: %w", err)
		}

		logger.Info("Refreshing credential before the deadline")
		token, err = session.Authenticate(ctx, creds)
		if err != nil {
			return nil, err
		}

		lesson, err = resolver.FetchLesson(ctx, token, lessonID)
		if err != nil {
			return nil, err
		}
		deadline = lesson.EnrollmentFrom

	case until > 0:
		// Already inside the margin: renew immediately. The lesson is not
		// re-fetched here; a fetch inside the final minute would race the
		// deadline, and the opening time is treated as static within the
		// margin.
		logger.Info("Deadline within refresh margin, refreshing credential immediately",
			slog.Duration("until", until),
		)
		token, err = session.Authenticate(ctx, creds)
		if err != nil {
			return nil, err
		}

	default:
		logger.Info("Enrollment already open, proceeding straight to submit")
	}

	if err := sched.WaitUntil(ctx, deadline); err != nil {
		return nil, fmt.Errorf("interrupted during fine-grained wait: %w", err)
	}

	result, err := executor.Submit(ctx, token, lessonID)
	if err != nil {
		return nil, err
	}

	if result.Created {
		return &Outcome{
			Enrolled: true,
			Message:  "enrollment confirmed by provider",
		}, nil
	}

	return &Outcome{
		Enrolled: false,
		Message:  fmt.Sprintf("enrollment rejected: status %d: %s", result.StatusCode, result.Body),
	}, nil
}
