package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/autoresttest/console/internal/api/middleware"
	"github.com/autoresttest/console/internal/api/response"
	"github.com/autoresttest/console/internal/runner"
	"github.com/autoresttest/console/internal/store"
	"github.com/autoresttest/console/pkg/models"
)

type createJobRequest struct {
	Spec   string           `json:"spec"`
	Config models.RunConfig `json:"config"`
}

// NewCreateJobHandler returns the handler for POST /api/v1/jobs. It inserts
// the job in "queued" and asks the task runner to invoke the test task,
// tagged with the job ID so later cancel/replay requests can find the run.
func NewCreateJobHandler(s store.Store, rc runner.Client, taskID string) http.HandlerFunc {
	validate := newValidator()

	return func(w http.ResponseWriter, r *http.Request) {
		subject, ok := mw.GetSubject(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing identity", nil)
			return
		}

		var req createJobRequest
		if err := decodeJSON(r, &req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid input.", decodeDetails(err))
			return
		}

		cfg := req.Config
		cfg.SpecFileContent = req.Spec
		if err := validate.Struct(&cfg); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid input.", validationDetails(err))
			return
		}

		now := time.Now().UTC()
		job := &models.Job{
			ID:        uuid.New(),
			UserID:    subject.UserID,
			Status:    models.JobStatusQueued,
			Config:    &cfg,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := s.CreateJob(r.Context(), job); err != nil {
			slog.Error("failed to create job", "user_id", subject.UserID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create job.", nil)
			return
		}

		payload := runner.TaskPayload{JobID: job.ID, Config: &cfg}
		if _, err := rc.Trigger(r.Context(), taskID, payload, []string{job.ID.String()}); err != nil {
			slog.Error("failed to dispatch test run", "job_id", job.ID, "error", err)
			// Compensate so the row does not sit in "queued" forever. The
			// caller still gets the primary 500 even if this write fails.
			if ferr := s.FailJob(r.Context(), job.ID, "Failed to dispatch test run."); ferr != nil {
				slog.Error("failed to mark job failed after dispatch failure",
					"job_id", job.ID, "error", ferr)
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create job.", nil)
			return
		}

		response.Accepted(w, map[string]any{"job_id": job.ID})
	}
}

// NewListJobsHandler returns the handler for GET /api/v1/jobs: the caller's
// job history, most recently touched first.
func NewListJobsHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, ok := mw.GetSubject(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing identity", nil)
			return
		}

		jobs, err := s.ListJobs(r.Context(), subject.UserID)
		if err != nil {
			slog.Error("failed to list jobs", "user_id", subject.UserID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch jobs.", nil)
			return
		}
		if jobs == nil {
			jobs = []*models.JobListItem{}
		}

		response.JSON(w, jobs)
	}
}

// NewGetJobHandler returns the handler for GET /api/v1/jobs/{jobID}. The
// owner filter is part of the store query, so a job owned by someone else
// looks exactly like a missing one.
func NewGetJobHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, ok := mw.GetSubject(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing identity", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found.", nil)
			return
		}

		job, err := s.GetJob(r.Context(), jobID, subject.UserID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found.", nil)
			return
		}
		if err != nil {
			slog.Error("failed to fetch job", "job_id", jobID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch job details.", nil)
			return
		}

		response.JSON(w, job)
	}
}

// NewDeleteJobHandler returns the handler for DELETE /api/v1/jobs/{jobID}.
func NewDeleteJobHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, ok := mw.GetSubject(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing identity", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found.", nil)
			return
		}

		err = s.DeleteJob(r.Context(), jobID, subject.UserID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found.", nil)
			return
		}
		if err != nil {
			slog.Error("failed to delete job", "job_id", jobID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete job.", nil)
			return
		}

		response.JSON(w, map[string]string{"message": "Job deleted successfully."})
	}
}
