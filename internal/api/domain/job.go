package domain

import (
	"errors"
)

// Enrollment job statuses as exposed by the API. The worker owns the
// PENDING -> STARTED -> SUCCESS/FAILURE transitions; the API only ever
// writes PENDING.
const (
	JobStatusPending = "PENDING"
	JobStatusStarted = "STARTED"
	JobStatusSuccess = "SUCCESS"
	JobStatusFailure = "FAILURE"
)

var (
	ErrJobNotFound = errors.New("enrollment job not found")

	// ErrDuplicateIdempotencyKey is returned when a submission reuses an
	// idempotency key already stored for another job.
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
)
