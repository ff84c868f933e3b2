package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/autoresttest/console/internal/api/response"
	"github.com/autoresttest/console/internal/runner"
	"github.com/autoresttest/console/internal/worker"
)

// NewRunInvokeHandler returns the handler for POST /internal/v1/runs/invoke,
// the task runner's entrypoint into the api-test-runner task. The run is
// executed synchronously; the runner holds the connection and aborting the
// request cancels the execution.
func NewRunInvokeHandler(wk *worker.Worker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload runner.TaskPayload
		if err := decodeJSON(r, &payload); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid input.", decodeDetails(err))
			return
		}
		if payload.JobID == uuid.Nil || payload.Config == nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"job_id and config are required.", nil)
			return
		}

		if err := wk.Run(r.Context(), payload); err != nil {
			if errors.Is(err, context.Canceled) {
				// The runner aborted us; nothing left to report.
				return
			}
			slog.Error("test run failed", "job_id", payload.JobID, "error", err)
			response.Error(w, http.StatusInternalServerError, "RUN_FAILED", "Test run failed.", nil)
			return
		}

		response.JSON(w, map[string]any{"success": true, "job_id": payload.JobID})
	}
}

// NewRunCancelledHandler returns the handler for POST /internal/v1/runs/cancelled,
// the task runner's cancellation callback. This is the only place a job is
// marked cancelled.
func NewRunCancelledHandler(wk *worker.Worker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload runner.TaskPayload
		if err := decodeJSON(r, &payload); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid input.", decodeDetails(err))
			return
		}
		if payload.JobID == uuid.Nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "job_id is required.", nil)
			return
		}

		if err := wk.OnCancel(r.Context(), payload); err != nil {
			slog.Error("cancellation callback failed", "job_id", payload.JobID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to record cancellation.", nil)
			return
		}

		response.JSON(w, map[string]string{"message": "Cancellation recorded."})
	}
}
