package domain

// Job lifecycle statuses. Transitions only move forward within one
// execution: PENDING -> STARTED -> (SUCCESS | FAILURE). A scheduled retry
// begins a brand-new execution from PENDING.
const (
	JobStatusPending = "PENDING"
	JobStatusStarted = "STARTED"
	JobStatusSuccess = "SUCCESS"
	JobStatusFailure = "FAILURE"
)
