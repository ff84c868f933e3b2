package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// TerminalStatuses are absorbing: once a job reaches one of these, progress
// updates become no-ops and the row is frozen except for result attachment.
var TerminalStatuses = []string{JobStatusFailed, JobStatusCancelled, JobStatusCompleted}

// IsTerminalStatus reports whether s is one of the absorbing job statuses.
func IsTerminalStatus(s string) bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job tracks one API-security-test run. A job is created in "queued", moves to
// "running" via progress callbacks from the execution backend, and ends in
// exactly one terminal status. Summary and RawFileURLs are attached once, at
// the completing transition.
type Job struct {
	ID                 uuid.UUID   `db:"id"                  json:"id"`
	UserID             string      `db:"user_id"             json:"user_id"`
	Status             string      `db:"status"              json:"status"`
	StatusMessage      *string     `db:"status_message"      json:"status_message,omitempty"`
	ProgressPercentage *int        `db:"progress_percentage" json:"progress_percentage,omitempty"`
	CurrentOperation   *string     `db:"current_operation"   json:"current_operation,omitempty"`
	Config             *RunConfig  `db:"config"              json:"config,omitempty"`
	Summary            *JobSummary `db:"summary"             json:"summary,omitempty"`
	RawFileURLs        RawFileURLs `db:"raw_file_urls"       json:"raw_file_urls,omitempty"`
	CreatedAt          time.Time   `db:"created_at"          json:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at"          json:"updated_at"`
}

// JobListItem is the trimmed projection returned by the job-history listing.
type JobListItem struct {
	ID            uuid.UUID   `db:"id"             json:"id"`
	Status        string      `db:"status"         json:"status"`
	StatusMessage *string     `db:"status_message" json:"status_message,omitempty"`
	Summary       *JobSummary `db:"summary"        json:"summary,omitempty"`
	CreatedAt     time.Time   `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"     json:"updated_at"`
}

// ProgressUpdate carries the internal field names for a progress callback,
// after remapping from the wire vocabulary (stage/percentage/details).
type ProgressUpdate struct {
	CurrentOperation   *string `json:"current_operation,omitempty"`
	ProgressPercentage *int    `json:"progress_percentage,omitempty" validate:"omitempty,gte=0,lte=100"`
	StatusMessage      *string `json:"status_message,omitempty"`
}
