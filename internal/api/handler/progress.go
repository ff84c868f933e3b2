package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/autoresttest/console/internal/api/response"
	"github.com/autoresttest/console/internal/cache"
	"github.com/autoresttest/console/internal/store"
	"github.com/autoresttest/console/pkg/models"
)

// progressRequest is the execution backend's wire vocabulary. Fields are
// remapped to the internal names before validation and persistence.
type progressRequest struct {
	Stage      *string `json:"stage,omitempty"`
	Percentage *int    `json:"percentage,omitempty"`
	Details    *string `json:"details,omitempty"`
}

// NewProgressHandler returns the handler for PATCH /api/v1/jobs/{jobID}/progress.
// The write is a single conditional UPDATE guarded on non-terminal status: a
// late tick against a finished job affects zero rows and is answered with
// 200, because a harmless straggler is not a client error. A genuinely
// missing row is the only 404 here.
func NewProgressHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	validate := newValidator()

	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found.", nil)
			return
		}

		var req progressRequest
		if err := decodeJSON(r, &req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid input.", decodeDetails(err))
			return
		}

		upd := models.ProgressUpdate{
			CurrentOperation:   req.Stage,
			ProgressPercentage: req.Percentage,
			StatusMessage:      req.Details,
		}
		if err := validate.Struct(&upd); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid input.", validationDetails(err))
			return
		}

		applied, err := s.ApplyProgress(r.Context(), jobID, upd)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found.", nil)
			return
		}
		if err != nil {
			slog.Error("failed to apply progress update", "job_id", jobID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update job progress.", nil)
			return
		}

		if !applied {
			response.JSON(w, map[string]string{
				"message": fmt.Sprintf("Job %s is in a terminal state; progress update skipped.", jobID),
			})
			return
		}

		if c != nil {
			if err := c.SetJobStatus(r.Context(), jobID, models.JobStatusRunning, 30*time.Minute); err != nil {
				slog.Warn("failed to cache job status", "job_id", jobID, "error", err)
			}
		}

		response.JSON(w, map[string]string{
			"message": fmt.Sprintf("Job %s progress updated", jobID),
		})
	}
}
