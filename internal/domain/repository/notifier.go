package repository

import "context"

// Terminal job statuses reported to the system of record.
const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

// ErrorDetails describes a fatal pipeline error for the status callback.
type ErrorDetails struct {
	// Name is the pipeline stage that failed (e.g. "fetch", "encode").
	Name string
	// Stack is the wrapped error chain, when available.
	Stack string
	// Code classifies the failure ("source" or "system").
	Code string
}

// StatusReport is the terminal outcome of one pipeline run.
type StatusReport struct {
	JobID        string
	Status       string
	ErrorMessage string
	ErrorDetails *ErrorDetails
}

// StatusNotifier informs the external system of record of a job's terminal
// outcome. Notification is best-effort: callers log failures but never let
// them change the job's own success/failure determination.
type StatusNotifier interface {
	Notify(ctx context.Context, report StatusReport) error
}
