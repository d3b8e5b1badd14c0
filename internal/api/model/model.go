package model

import (
	"database/sql"
	"time"
)

// Enrollment is one row of the enrollments table. The secret column holds
// the member's provider password; it never leaves the storage layer
// through the API surface.
type Enrollment struct {
	JobID          string         `db:"job_id"`
	IdempotencyKey string         `db:"idempotency_key"`
	UserID         string         `db:"user_id"`
	MemberID       string         `db:"member_id"`
	Secret         string         `db:"secret"`
	LessonURL      string         `db:"lesson_url"`
	Status         string         `db:"status"`
	RetryCount     int            `db:"retry_count"`
	MaxRetries     int            `db:"max_retries"`
	WorkerID       sql.NullString `db:"worker_id"`
	Result         sql.NullBool   `db:"result"`
	Message        sql.NullString `db:"message"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
	StartedAt      sql.NullTime   `db:"started_at"`
	CompletedAt    sql.NullTime   `db:"completed_at"`
}
