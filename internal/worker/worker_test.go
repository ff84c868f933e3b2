package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoresttest/console/internal/executor"
	"github.com/autoresttest/console/internal/runner"
	"github.com/autoresttest/console/internal/store"
	"github.com/autoresttest/console/pkg/models"
)

type stubStore struct {
	getJobByIDFn   func(ctx context.Context, id uuid.UUID) (*models.Job, error)
	markRunningIDs []uuid.UUID
	completeFn     func(ctx context.Context, id uuid.UUID, summary *models.JobSummary, rawFileURLs models.RawFileURLs) error
	failCalls      []string
	cancelFn       func(ctx context.Context, id uuid.UUID) (bool, error)
}

func (s *stubStore) Ping(ctx context.Context) error { return nil }
func (s *stubStore) GetUserByAPIKey(ctx context.Context, key string) (*models.User, error) {
	return nil, store.ErrNotFound
}
func (s *stubStore) EnsureAPIKey(ctx context.Context, userID, email, candidate string) (string, error) {
	return candidate, nil
}
func (s *stubStore) CreateJob(ctx context.Context, job *models.Job) error { return nil }
func (s *stubStore) GetJob(ctx context.Context, id uuid.UUID, userID string) (*models.Job, error) {
	return nil, store.ErrNotFound
}

func (s *stubStore) GetJobByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	if s.getJobByIDFn != nil {
		return s.getJobByIDFn(ctx, id)
	}
	return &models.Job{ID: id, Status: models.JobStatusQueued}, nil
}

func (s *stubStore) ListJobs(ctx context.Context, userID string) ([]*models.JobListItem, error) {
	return nil, nil
}
func (s *stubStore) DeleteJob(ctx context.Context, id uuid.UUID, userID string) error { return nil }
func (s *stubStore) ApplyProgress(ctx context.Context, id uuid.UUID, upd models.ProgressUpdate) (bool, error) {
	return false, nil
}

func (s *stubStore) MarkJobRunning(ctx context.Context, id uuid.UUID) error {
	s.markRunningIDs = append(s.markRunningIDs, id)
	return nil
}

func (s *stubStore) CompleteJob(ctx context.Context, id uuid.UUID, summary *models.JobSummary, rawFileURLs models.RawFileURLs) error {
	if s.completeFn != nil {
		return s.completeFn(ctx, id, summary, rawFileURLs)
	}
	return nil
}

func (s *stubStore) FailJob(ctx context.Context, id uuid.UUID, message string) error {
	s.failCalls = append(s.failCalls, message)
	return nil
}

func (s *stubStore) CancelJob(ctx context.Context, id uuid.UUID) (bool, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, id)
	}
	return true, nil
}

func (s *stubStore) SweepStaleJobs(ctx context.Context, cutoff time.Time, message string) ([]uuid.UUID, error) {
	return nil, nil
}

type stubExecutor struct {
	runTestFn func(ctx context.Context, jobID uuid.UUID, cfg *models.RunConfig) (*executor.RunResult, error)
}

func (e *stubExecutor) RunTest(ctx context.Context, jobID uuid.UUID, cfg *models.RunConfig) (*executor.RunResult, error) {
	if e.runTestFn != nil {
		return e.runTestFn(ctx, jobID, cfg)
	}
	return &executor.RunResult{Summary: &models.JobSummary{}}, nil
}

func newTestWorker(s *stubStore, e *stubExecutor) *Worker {
	w := New(s, e, nil)
	w.lookupDelay = time.Millisecond
	return w
}

func testPayload() runner.TaskPayload {
	return runner.TaskPayload{
		JobID:  uuid.New(),
		Config: &models.RunConfig{SpecFileContent: "openapi: 3.0.0"},
	}
}

func TestRun_Success(t *testing.T) {
	st := &stubStore{}
	var completedID uuid.UUID
	var gotURLs models.RawFileURLs
	st.completeFn = func(ctx context.Context, id uuid.UUID, summary *models.JobSummary, rawFileURLs models.RawFileURLs) error {
		completedID = id
		gotURLs = rawFileURLs
		return nil
	}
	ex := &stubExecutor{runTestFn: func(ctx context.Context, jobID uuid.UUID, cfg *models.RunConfig) (*executor.RunResult, error) {
		return &executor.RunResult{
			Summary:     &models.JobSummary{},
			RawFileURLs: models.RawFileURLs{"report": "https://files.example.com/r.json"},
		}, nil
	}}

	payload := testPayload()
	err := newTestWorker(st, ex).Run(context.Background(), payload)

	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{payload.JobID}, st.markRunningIDs)
	assert.Equal(t, payload.JobID, completedID)
	assert.Equal(t, "https://files.example.com/r.json", gotURLs["report"])
	assert.Empty(t, st.failCalls)
}

func TestRun_ExecutionErrorMarksFailed(t *testing.T) {
	st := &stubStore{}
	ex := &stubExecutor{runTestFn: func(ctx context.Context, jobID uuid.UUID, cfg *models.RunConfig) (*executor.RunResult, error) {
		return nil, fmt.Errorf("backend returned status 500")
	}}

	err := newTestWorker(st, ex).Run(context.Background(), testPayload())

	require.Error(t, err)
	require.Len(t, st.failCalls, 1)
	assert.Contains(t, st.failCalls[0], "Test execution failed")
}

func TestRun_CancellationLeavesStatusAlone(t *testing.T) {
	st := &stubStore{}
	ex := &stubExecutor{runTestFn: func(ctx context.Context, jobID uuid.UUID, cfg *models.RunConfig) (*executor.RunResult, error) {
		return nil, context.Canceled
	}}

	err := newTestWorker(st, ex).Run(context.Background(), testPayload())

	require.ErrorIs(t, err, context.Canceled)
	// The cancellation callback owns the transition; no fail-mark here.
	assert.Empty(t, st.failCalls)
}

func TestRun_RecordFailureMarksFailed(t *testing.T) {
	st := &stubStore{}
	st.completeFn = func(ctx context.Context, id uuid.UUID, summary *models.JobSummary, rawFileURLs models.RawFileURLs) error {
		return fmt.Errorf("jsonb too large")
	}

	err := newTestWorker(st, &stubExecutor{}).Run(context.Background(), testPayload())

	require.Error(t, err)
	require.Len(t, st.failCalls, 1)
	assert.Contains(t, st.failCalls[0], "Failed to record test results")
}

func TestRun_RetriesJobLookup(t *testing.T) {
	st := &stubStore{}
	attempts := 0
	st.getJobByIDFn = func(ctx context.Context, id uuid.UUID) (*models.Job, error) {
		attempts++
		if attempts < 3 {
			return nil, store.ErrNotFound
		}
		return &models.Job{ID: id, Status: models.JobStatusQueued}, nil
	}

	err := newTestWorker(st, &stubExecutor{}).Run(context.Background(), testPayload())

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRun_LookupExhausted(t *testing.T) {
	st := &stubStore{}
	attempts := 0
	st.getJobByIDFn = func(ctx context.Context, id uuid.UUID) (*models.Job, error) {
		attempts++
		return nil, store.ErrNotFound
	}

	err := newTestWorker(st, &stubExecutor{}).Run(context.Background(), testPayload())

	require.Error(t, err)
	assert.Equal(t, jobLookupAttempts, attempts)
	assert.Empty(t, st.markRunningIDs)
}

func TestOnCancel_Applied(t *testing.T) {
	st := &stubStore{}
	var cancelledID uuid.UUID
	st.cancelFn = func(ctx context.Context, id uuid.UUID) (bool, error) {
		cancelledID = id
		return true, nil
	}

	payload := testPayload()
	err := newTestWorker(st, &stubExecutor{}).OnCancel(context.Background(), payload)

	require.NoError(t, err)
	assert.Equal(t, payload.JobID, cancelledID)
}

func TestOnCancel_AfterCompletionIsNoOp(t *testing.T) {
	st := &stubStore{}
	st.cancelFn = func(ctx context.Context, id uuid.UUID) (bool, error) {
		return false, nil
	}

	err := newTestWorker(st, &stubExecutor{}).OnCancel(context.Background(), testPayload())

	assert.NoError(t, err)
}
