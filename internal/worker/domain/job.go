package domain

// Job is one enrollment attempt as stored in the database. The member
// credentials travel only from the job row into the engine; the queue
// message carries nothing but the job id.
type Job struct {
	JobID      string
	UserID     string
	MemberID   string
	Secret     string
	LessonURL  string
	Status     string
	WorkerID   string
	RetryCount int
	MaxRetries int
}

// JobMessage is the queue message referencing a job
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`
}
