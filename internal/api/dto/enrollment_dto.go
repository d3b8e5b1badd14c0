package dto

type CreateEnrollmentRequest struct {
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
	UserID         string `json:"user_id" binding:"required"`
	MemberID       string `json:"member_id" binding:"required"`
	Password       string `json:"password" binding:"required"`
	LessonURL      string `json:"lesson_url" binding:"required"`
}

type ListEnrollmentsRequest struct {
	UserID   string `form:"user_id"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListEnrollmentsResponse struct {
	Enrollments []EnrollmentDTO `json:"enrollments"`
	NextCursor  string          `json:"next_cursor,omitempty"`
}

// EnrollmentDTO is the API view of a job. Deliberately omits the stored
// secret.
type EnrollmentDTO struct {
	JobID          string `json:"job_id"`
	IdempotencyKey string `json:"idempotency_key"`
	UserID         string `json:"user_id"`
	MemberID       string `json:"member_id"`
	LessonURL      string `json:"lesson_url"`
	Status         string `json:"status"`
	RetryCount     int    `json:"retry_count"`
	MaxRetries     int    `json:"max_retries"`
	Result         *bool  `json:"result,omitempty"`
	Message        string `json:"message,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
	StartedAt      string `json:"started_at,omitempty"`
	CompletedAt    string `json:"completed_at,omitempty"`
}
