package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jschwabe/autoenroll/internal/api/domain"
	"github.com/jschwabe/autoenroll/internal/api/model"
	"github.com/jschwabe/autoenroll/shared/postgresql"
)

const enrollmentColumns = `
	job_id, idempotency_key, user_id, member_id, secret, lesson_url,
	status, retry_count, max_retries, worker_id, result, message,
	created_at, updated_at, started_at, completed_at
`

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

// CreateEnrollment inserts a new PENDING job. A unique-violation on the
// idempotency key surfaces as domain.ErrDuplicateIdempotencyKey so the
// handler can return the existing job instead.
func (s *Storage) CreateEnrollment(ctx context.Context, e *model.Enrollment) error {
	query := `
		INSERT INTO enrollments (
			job_id, idempotency_key, user_id, member_id, secret,
			lesson_url, status, max_retries, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		e.JobID,
		e.IdempotencyKey,
		e.UserID,
		e.MemberID,
		e.Secret,
		e.LessonURL,
		e.Status,
		e.MaxRetries,
		e.CreatedAt,
		e.UpdatedAt,
	)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return domain.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to create enrollment: %w", err)
	}

	return nil
}

func (s *Storage) GetEnrollmentByID(ctx context.Context, jobID string) (*model.Enrollment, error) {
	var e model.Enrollment
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE job_id = $1`

	err := s.db.GetContext(ctx, &e, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}

	return &e, nil
}

func (s *Storage) GetEnrollmentByIdempotencyKey(ctx context.Context, key string) (*model.Enrollment, error) {
	var e model.Enrollment
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE idempotency_key = $1`

	err := s.db.GetContext(ctx, &e, query, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get enrollment by idempotency key: %w", err)
	}

	return &e, nil
}

type EnrollmentFilter struct {
	UserID   string
	Status   string
	PageSize int
	Cursor   *EnrollmentCursor
}

type EnrollmentCursor struct {
	CreatedAt time.Time
	JobID     string
}

func (s *Storage) ListEnrollments(ctx context.Context, filter EnrollmentFilter) ([]model.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	// Keyset order must match the cursor tuple for stable pagination
	query += " ORDER BY created_at DESC, job_id DESC"

	// Fetch one extra row to detect whether another page exists
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var enrollments []model.Enrollment
	err := s.db.SelectContext(ctx, &enrollments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}

	return enrollments, nil
}
