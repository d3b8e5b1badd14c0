package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/jschwabe/autoenroll/internal/worker/domain"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ClaimJob attempts the PENDING -> STARTED transition using optimistic
// locking and records the start timestamp. Returns the full job on
// success, ErrJobAlreadyClaimed when another worker got there first.
func (s *Storage) ClaimJob(ctx context.Context, jobID, workerID string) (*domain.Job, error) {
	query := `
		UPDATE enrollments
		SET status = $1,
		    worker_id = $2,
		    started_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND status = $4
		RETURNING user_id, member_id, secret, lesson_url, retry_count, max_retries
	`

	job := domain.Job{
		JobID:    jobID,
		Status:   domain.JobStatusStarted,
		WorkerID: workerID,
	}

	err := s.db.QueryRowContext(ctx, query, domain.JobStatusStarted, workerID, jobID, domain.JobStatusPending).Scan(
		&job.UserID,
		&job.MemberID,
		&job.Secret,
		&job.LessonURL,
		&job.RetryCount,
		&job.MaxRetries,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			s.logger.Warn("Failed to claim job - already claimed or not found",
				slog.String("job_id", jobID),
				slog.String("worker_id", workerID),
			)
			return nil, domain.ErrJobAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	s.logger.Info("Job claimed",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
		slog.Int("retry_count", job.RetryCount),
	)

	return &job, nil
}

// MarkOutcome records the terminal transition of one execution: status,
// boolean result, message, and completion timestamp.
func (s *Storage) MarkOutcome(ctx context.Context, jobID, status string, result bool, message string) error {
	query := `
		UPDATE enrollments
		SET status = $1,
		    result = $2,
		    message = $3,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $4
	`

	if _, err := s.db.ExecContext(ctx, query, status, result, message, jobID); err != nil {
		return fmt.Errorf("failed to update job outcome: %w", err)
	}

	s.logger.Info("Job outcome recorded",
		slog.String("job_id", jobID),
		slog.String("status", status),
		slog.Bool("result", result),
	)

	return nil
}

// ScheduleRetry resets a failed job to PENDING for a fresh attempt. The
// new attempt starts with a clean execution record; only the attempt
// counter and the last failure message survive.
func (s *Storage) ScheduleRetry(ctx context.Context, jobID, message string) error {
	query := `
		UPDATE enrollments
		SET status = $1,
		    retry_count = retry_count + 1,
		    worker_id = NULL,
		    started_at = NULL,
		    completed_at = NULL,
		    result = NULL,
		    message = $2,
		    updated_at = NOW()
		WHERE job_id = $3
	`

	if _, err := s.db.ExecContext(ctx, query, domain.JobStatusPending, message, jobID); err != nil {
		return fmt.Errorf("failed to schedule retry: %w", err)
	}

	s.logger.Info("Job reset to PENDING for retry",
		slog.String("job_id", jobID),
	)

	return nil
}
