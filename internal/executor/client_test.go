package executor_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoresttest/console/internal/executor"
	"github.com/autoresttest/console/pkg/models"
)

func TestRunTest_OK(t *testing.T) {
	jobID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/tests/run", r.URL.Path)
		assert.Equal(t, "exec-secret", r.Header.Get("x-api-key"))

		var body struct {
			Config *models.RunConfig `json:"config"`
			JobID  uuid.UUID         `json:"job_id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, jobID, body.JobID)
		assert.Equal(t, "openapi: 3.0.0", body.Config.SpecFileContent)

		total := 42
		json.NewEncoder(w).Encode(executor.RunResult{
			Summary:     &models.JobSummary{TotalRequestsSent: &total},
			RawFileURLs: models.RawFileURLs{"report": "https://files.example.com/r.json"},
		})
	}))
	defer srv.Close()

	c := executor.NewHTTPClient(srv.URL, "exec-secret", 5*time.Second)
	result, err := c.RunTest(context.Background(), jobID, &models.RunConfig{SpecFileContent: "openapi: 3.0.0"})

	require.NoError(t, err)
	require.NotNil(t, result.Summary)
	assert.Equal(t, 42, *result.Summary.TotalRequestsSent)
	assert.Equal(t, "https://files.example.com/r.json", result.RawFileURLs["report"])
}

func TestRunTest_BackendErrorKeepsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"spec could not be parsed"}`))
	}))
	defer srv.Close()

	c := executor.NewHTTPClient(srv.URL, "exec-secret", 5*time.Second)
	_, err := c.RunTest(context.Background(), uuid.New(), &models.RunConfig{SpecFileContent: "not yaml"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "spec could not be parsed")
}

func TestRunTest_Cancelled(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can detect the client disconnect
		// and cancel the request context.
		io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	c := executor.NewHTTPClient(srv.URL, "exec-secret", time.Minute)
	_, err := c.RunTest(ctx, uuid.New(), &models.RunConfig{SpecFileContent: "openapi: 3.0.0"})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunTest_BackendDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := executor.NewHTTPClient(srv.URL, "exec-secret", time.Second)
	_, err := c.RunTest(context.Background(), uuid.New(), &models.RunConfig{SpecFileContent: "openapi: 3.0.0"})
	assert.ErrorIs(t, err, executor.ErrExecutorUnavailable)
}
