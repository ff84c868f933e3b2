package runner_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoresttest/console/internal/runner"
	"github.com/autoresttest/console/pkg/models"
)

func TestTrigger(t *testing.T) {
	jobID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/tasks/api-test-runner/trigger", r.URL.Path)
		assert.Equal(t, "Bearer runner-secret", r.Header.Get("Authorization"))

		var body struct {
			Payload runner.TaskPayload `json:"payload"`
			Tags    []string           `json:"tags"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, jobID, body.Payload.JobID)
		assert.Equal(t, []string{jobID.String()}, body.Tags)

		json.NewEncoder(w).Encode(runner.Run{ID: "run_1", Status: "QUEUED"})
	}))
	defer srv.Close()

	c := runner.NewHTTPClient(srv.URL, "runner-secret", 5*time.Second)
	run, err := c.Trigger(context.Background(), "api-test-runner", runner.TaskPayload{
		JobID:  jobID,
		Config: &models.RunConfig{SpecFileContent: "openapi: 3.0.0"},
	}, []string{jobID.String()})

	require.NoError(t, err)
	assert.Equal(t, "run_1", run.ID)
}

func TestListRuns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/runs", r.URL.Path)
		assert.Equal(t, "tag-1", r.URL.Query().Get("tag"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))

		json.NewEncoder(w).Encode(map[string]any{
			"data": []runner.Run{{ID: "run_1", Status: "EXECUTING"}},
		})
	}))
	defer srv.Close()

	c := runner.NewHTTPClient(srv.URL, "runner-secret", 5*time.Second)
	runs, err := c.ListRuns(context.Background(), "tag-1", 1)

	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run_1", runs[0].ID)
}

func TestListRuns_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []runner.Run{}})
	}))
	defer srv.Close()

	c := runner.NewHTTPClient(srv.URL, "runner-secret", 5*time.Second)
	runs, err := c.ListRuns(context.Background(), "tag-1", 1)

	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestCancel_RunNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := runner.NewHTTPClient(srv.URL, "runner-secret", 5*time.Second)
	err := c.Cancel(context.Background(), "run_gone")
	assert.ErrorIs(t, err, runner.ErrRunNotFound)
}

func TestReplay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/runs/run_1/replay", r.URL.Path)
		json.NewEncoder(w).Encode(runner.Run{ID: "run_2", Status: "QUEUED"})
	}))
	defer srv.Close()

	c := runner.NewHTTPClient(srv.URL, "runner-secret", 5*time.Second)
	run, err := c.Replay(context.Background(), "run_1")

	require.NoError(t, err)
	assert.Equal(t, "run_2", run.ID)
}

func TestRunnerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := runner.NewHTTPClient(srv.URL, "runner-secret", time.Second)
	_, err := c.ListRuns(context.Background(), "tag-1", 1)
	assert.ErrorIs(t, err, runner.ErrRunnerUnavailable)
}
