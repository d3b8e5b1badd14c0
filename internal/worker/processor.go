package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jschwabe/autoenroll/internal/enroll"
	"github.com/jschwabe/autoenroll/internal/worker/domain"
)

// processJob runs a single enrollment job end to end: claim the row,
// execute the engine, record the outcome. A nil return means the
// delivery is fully handled and may be ACKed, including the case where
// the job failed and a retry was scheduled through the delay queue.
func (w *Worker) processJob(ctx context.Context, msg *domain.JobMessage) error {
	job, err := w.store.ClaimJob(ctx, msg.JobID, w.workerID)
	if err != nil {
		if errors.Is(err, domain.ErrJobAlreadyClaimed) {
			// Another worker owns this execution, drop the duplicate
			w.logger.Warn("Job already claimed, skipping",
				slog.String("job_id", msg.JobID),
			)
			return nil
		}
		return fmt.Errorf("failed to claim job: %w", err)
	}

	logger := w.logger.With(
		slog.String("job_id", job.JobID),
		slog.Int("attempt", job.RetryCount+1),
	)

	jobCtx := ctx
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	creds := enroll.Credentials{
		MemberID: job.MemberID,
		Secret:   job.Secret,
	}

	outcome, err := w.runner.Run(jobCtx, logger, creds, job.LessonURL)
	if err != nil {
		return w.handleFailure(ctx, logger, job, err)
	}

	status := domain.JobStatusSuccess
	if !outcome.Enrolled {
		// The provider answered but refused the spot. Definitive, the
		// lesson state will not improve by asking again.
		status = domain.JobStatusFailure
	}

	if err := w.store.MarkOutcome(ctx, job.JobID, status, outcome.Enrolled, outcome.Message); err != nil {
		logger.Error("Failed to record job outcome",
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
		// Execution finished, still ACK so the attempt is not replayed
	}

	logger.Info("Job finished",
		slog.String("status", status),
		slog.String("message", outcome.Message),
	)

	return nil
}

// handleFailure records the failed execution and, when the error class
// is transient and the attempt budget allows, resets the job to PENDING
// and re-publishes it through the delayed retry queue.
func (w *Worker) handleFailure(ctx context.Context, logger *slog.Logger, job *domain.Job, execErr error) error {
	logger.Error("Job execution failed",
		slog.String("error", execErr.Error()),
	)

	if err := w.store.MarkOutcome(ctx, job.JobID, domain.JobStatusFailure, false, execErr.Error()); err != nil {
		return fmt.Errorf("failed to record job failure: %w", err)
	}

	if !enroll.Retryable(execErr) {
		logger.Warn("Error is not retryable, job stays FAILURE")
		return nil
	}

	if job.RetryCount >= job.MaxRetries {
		logger.Warn("Job exceeded max retries",
			slog.Int("retry_count", job.RetryCount),
			slog.Int("max_retries", job.MaxRetries),
		)
		return nil
	}

	if err := w.store.ScheduleRetry(ctx, job.JobID, execErr.Error()); err != nil {
		return fmt.Errorf("failed to schedule retry: %w", err)
	}

	body, err := json.Marshal(domain.JobMessage{JobID: job.JobID})
	if err != nil {
		return fmt.Errorf("failed to marshal retry message: %w", err)
	}

	if err := w.retryQueue.PublishDelayed(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish retry message: %w", err)
	}

	logger.Info("Retry scheduled through delay queue",
		slog.Int("next_attempt", job.RetryCount+2),
	)

	return nil
}
