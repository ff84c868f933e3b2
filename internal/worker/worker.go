// Package worker holds the body of the api-test-runner task. The task runner
// invokes it through the console's internal callback routes; all status
// writes go through the store's guarded updates so a concurrent cancellation
// or sweep always wins over a late worker write.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/autoresttest/console/internal/cache"
	"github.com/autoresttest/console/internal/executor"
	"github.com/autoresttest/console/internal/runner"
	"github.com/autoresttest/console/internal/store"
	"github.com/autoresttest/console/pkg/models"
)

const (
	jobLookupAttempts = 5
	statusCacheTTL    = 30 * time.Minute
)

// Worker executes one test run end to end.
type Worker struct {
	store    store.Store
	executor executor.Client
	cache    cache.Cache

	// lookupDelay is the wait between job-row lookups while the freshly
	// inserted row propagates to replicas. Shortened in tests.
	lookupDelay time.Duration
}

// New creates a Worker.
func New(s store.Store, e executor.Client, c cache.Cache) *Worker {
	return &Worker{store: s, executor: e, cache: c, lookupDelay: time.Second}
}

// Run drives a job from queued to a terminal state: mark running, call the
// execution backend, attach results on success. A cancellation surfaces as a
// context error and is left for OnCancel; any other failure marks the job
// failed before the error is returned to the runner.
func (w *Worker) Run(ctx context.Context, payload runner.TaskPayload) error {
	job, err := w.awaitJobRow(ctx, payload)
	if err != nil {
		return err
	}

	if err := w.store.MarkJobRunning(ctx, job.ID); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	w.setCachedStatus(ctx, payload, models.JobStatusRunning)

	result, err := w.executor.RunTest(ctx, job.ID, payload.Config)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Cancelled mid-flight; the cancellation callback owns the
			// status transition.
			return err
		}
		w.failJob(payload, fmt.Sprintf("Test execution failed: %v", err))
		return err
	}

	if err := w.store.CompleteJob(ctx, job.ID, result.Summary, result.RawFileURLs); err != nil {
		w.failJob(payload, fmt.Sprintf("Failed to record test results: %v", err))
		return fmt.Errorf("complete job: %w", err)
	}
	w.setCachedStatus(ctx, payload, models.JobStatusCompleted)

	slog.Info("job completed", "job_id", job.ID)
	return nil
}

// OnCancel is the task runner's cancellation callback. The completed guard
// lives in the UPDATE itself; a job that already completed stays completed.
func (w *Worker) OnCancel(ctx context.Context, payload runner.TaskPayload) error {
	applied, err := w.store.CancelJob(ctx, payload.JobID)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	if applied {
		w.setCachedStatus(ctx, payload, models.JobStatusCancelled)
		slog.Info("job cancelled", "job_id", payload.JobID)
	} else {
		slog.Info("cancel callback after completion, ignored", "job_id", payload.JobID)
	}
	return nil
}

// awaitJobRow retries the lookup a few times to ride out replication lag
// between the insert in the create handler and this callback.
func (w *Worker) awaitJobRow(ctx context.Context, payload runner.TaskPayload) (*models.Job, error) {
	for attempt := 0; attempt < jobLookupAttempts; attempt++ {
		job, err := w.store.GetJobByID(ctx, payload.JobID)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("get job: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(w.lookupDelay):
		}
	}
	return nil, fmt.Errorf("job %s not found after %d attempts", payload.JobID, jobLookupAttempts)
}

// failJob is best-effort: the primary error has already been decided, so a
// failure here is only logged.
func (w *Worker) failJob(payload runner.TaskPayload, message string) {
	ctx := context.Background()
	if err := w.store.FailJob(ctx, payload.JobID, message); err != nil {
		slog.Error("failed to mark job failed", "job_id", payload.JobID, "error", err)
		return
	}
	w.setCachedStatus(ctx, payload, models.JobStatusFailed)
}

func (w *Worker) setCachedStatus(ctx context.Context, payload runner.TaskPayload, status string) {
	if w.cache == nil {
		return
	}
	if err := w.cache.SetJobStatus(ctx, payload.JobID, status, statusCacheTTL); err != nil {
		slog.Warn("failed to cache job status", "job_id", payload.JobID, "error", err)
	}
}
