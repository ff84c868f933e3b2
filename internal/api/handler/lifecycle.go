package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/autoresttest/console/internal/api/middleware"
	"github.com/autoresttest/console/internal/api/response"
	"github.com/autoresttest/console/internal/runner"
	"github.com/autoresttest/console/internal/store"
	"github.com/autoresttest/console/pkg/models"
)

// NewCancelJobHandler returns the handler for POST /api/v1/jobs/{jobID}/cancel.
// Cancellation is cooperative: this only asks the runner to interrupt the
// run. The "cancelled" status lands later, via the runner's cancellation
// callback, so callers poll for the change.
func NewCancelJobHandler(s store.Store, rc runner.Client) http.HandlerFunc {
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
			slog.Error("failed to fetch job for cancel", "job_id", jobID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to cancel job.", nil)
			return
		}

		runs, err := rc.ListRuns(r.Context(), jobID.String(), 1)
		if err != nil {
			slog.Error("failed to look up runs", "job_id", jobID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to cancel job.", nil)
			return
		}
		if len(runs) == 0 {
			if models.IsTerminalStatus(job.Status) {
				response.Error(w, http.StatusConflict, "ALREADY_TERMINAL",
					"Job is already in a terminal state and cannot be cancelled.", nil)
				return
			}
			response.Error(w, http.StatusNotFound, "RUN_NOT_FOUND",
				"Could not find an active run for this job.", nil)
			return
		}

		if err := rc.Cancel(r.Context(), runs[0].ID); err != nil {
			if errors.Is(err, runner.ErrRunNotFound) {
				response.Error(w, http.StatusNotFound, "RUN_NOT_FOUND",
					"Could not find an active run for this job.", nil)
				return
			}
			slog.Error("failed to cancel run", "job_id", jobID, "run_id", runs[0].ID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to cancel job.", nil)
			return
		}

		response.JSON(w, map[string]string{"message": "Cancellation request sent successfully."})
	}
}

// NewReplayJobHandler returns the handler for POST /api/v1/jobs/{jobID}/replay.
// Replay re-invokes the prior run under the same tag, so subsequent progress
// and completion callbacks keep targeting the existing row; nothing is
// mutated here.
func NewReplayJobHandler(s store.Store, rc runner.Client, demoEmail string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, ok := mw.GetSubject(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing identity", nil)
			return
		}

		if demoEmail != "" && subject.Email == demoEmail {
			response.Error(w, http.StatusForbidden, "FORBIDDEN", "Demo account is read-only.", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found.", nil)
			return
		}

		if _, err := s.GetJob(r.Context(), jobID, subject.UserID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND",
					"Job not found or you do not have permission to replay it.", nil)
				return
			}
			slog.Error("failed to fetch job for replay", "job_id", jobID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to replay job.", nil)
			return
		}

		runs, err := rc.ListRuns(r.Context(), jobID.String(), 1)
		if err != nil {
			slog.Error("failed to look up runs", "job_id", jobID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to replay job.", nil)
			return
		}
		if len(runs) == 0 {
			response.Error(w, http.StatusNotFound, "RUN_NOT_FOUND",
				"Could not find a run for this job.", nil)
			return
		}

		if _, err := rc.Replay(r.Context(), runs[0].ID); err != nil {
			if errors.Is(err, runner.ErrRunNotFound) {
				response.Error(w, http.StatusNotFound, "RUN_NOT_FOUND",
					"Could not find a run for this job.", nil)
				return
			}
			slog.Error("failed to replay run", "job_id", jobID, "run_id", runs[0].ID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to replay job.", nil)
			return
		}

		response.JSON(w, map[string]any{
			"message": "Replay request sent successfully.",
			"job_id":  jobID,
		})
	}
}
