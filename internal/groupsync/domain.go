package groupsync

import (
	"errors"
	"time"
)

// ErrAlreadyRunning is returned when a run is requested while one is in
// progress. It is a recoverable, caller-visible condition, not a fault.
var ErrAlreadyRunning = errors.New("groupsync: run already in progress")

// maxReportedErrors caps the per-user errors carried in a result summary.
const maxReportedErrors = 10

// Result summarizes one reconciliation run.
type Result struct {
	TotalUsers   int       `json:"total_users"`
	UpdatedUsers int       `json:"updated_users"`
	FailedUsers  int       `json:"failed_users"`
	Errors       []string  `json:"errors,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
	DurationMs   int64     `json:"duration_ms"`
}

// Status is the observable in-memory state of the synchronizer. It is
// process-lifetime only and resets on restart.
type Status struct {
	Running    bool       `json:"running"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	LastResult *Result    `json:"last_result,omitempty"`
}
