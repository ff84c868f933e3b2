package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/autoresttest/console/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through
// here. Status-changing writes that must respect terminality are expressed as
// single conditional UPDATEs: the guard is re-checked at write time, which is
// the system's only concurrency control. Never read a status and then write
// based on it.
type Store interface {
	Ping(ctx context.Context) error

	GetUserByAPIKey(ctx context.Context, key string) (*models.User, error)
	// EnsureAPIKey returns the user's stored machine credential, creating the
	// user row and persisting candidate only when no key exists yet. The
	// returned key is the surviving one, which under a race may differ from
	// candidate.
	EnsureAPIKey(ctx context.Context, userID, email, candidate string) (string, error)

	CreateJob(ctx context.Context, job *models.Job) error
	// GetJob filters by owner in the WHERE clause; a job owned by someone
	// else is indistinguishable from an absent one.
	GetJob(ctx context.Context, id uuid.UUID, userID string) (*models.Job, error)
	// GetJobByID is the unscoped lookup used by the worker, which acts on
	// behalf of the task runner rather than a user.
	GetJobByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, userID string) ([]*models.JobListItem, error)
	DeleteJob(ctx context.Context, id uuid.UUID, userID string) error

	// ApplyProgress sets status to "running" and overwrites the progress
	// fields, guarded by status NOT IN (terminal set). Returns false with a
	// nil error when the job is already terminal (the update is a no-op, not
	// an error) and ErrNotFound when the row does not exist at all.
	ApplyProgress(ctx context.Context, id uuid.UUID, upd models.ProgressUpdate) (bool, error)
	// MarkJobRunning promotes a non-terminal job to "running".
	MarkJobRunning(ctx context.Context, id uuid.UUID) error
	// CompleteJob moves the job to "completed" and attaches the result
	// summary and artifact URLs.
	CompleteJob(ctx context.Context, id uuid.UUID, summary *models.JobSummary, rawFileURLs models.RawFileURLs) error
	// FailJob moves the job to "failed" unless it already completed or was
	// cancelled.
	FailJob(ctx context.Context, id uuid.UUID, message string) error
	// CancelJob marks the job cancelled unless it already completed. Invoked
	// by the task runner's cancellation callback, never by request handlers.
	CancelJob(ctx context.Context, id uuid.UUID) (bool, error)

	// SweepStaleJobs bulk-fails jobs stuck in "queued" since before cutoff
	// and returns the affected IDs.
	SweepStaleJobs(ctx context.Context, cutoff time.Time, message string) ([]uuid.UUID, error)
}
