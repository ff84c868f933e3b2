// Package executor is the boundary to the execution backend, the service
// that performs the actual API security test.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/autoresttest/console/pkg/models"
)

// Sentinel errors for execution backend failures.
var (
	ErrExecutorUnavailable = errors.New("execution backend unreachable")
)

// RunResult is what the backend returns for a finished test run.
type RunResult struct {
	Summary     *models.JobSummary `json:"summary"`
	RawFileURLs models.RawFileURLs `json:"raw_file_urls"`
}

// Client runs a test against the execution backend and blocks until it
// finishes. Progress is reported out of band, by the backend calling the
// console's progress endpoint.
type Client interface {
	RunTest(ctx context.Context, jobID uuid.UUID, cfg *models.RunConfig) (*RunResult, error)
}

// HTTPClient implements Client against the backend's HTTP API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a new execution backend client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) RunTest(ctx context.Context, jobID uuid.UUID, cfg *models.RunConfig) (*RunResult, error) {
	body, err := json.Marshal(struct {
		Config *models.RunConfig `json:"config"`
		JobID  uuid.UUID         `json:"job_id"`
	}{Config: cfg, JobID: jobID})
	if err != nil {
		return nil, fmt.Errorf("encoding run request: %w", err)
	}

	u := c.baseURL + "/api/v1/tests/run"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return nil, fmt.Errorf("%w: %v", ErrExecutorUnavailable, err)
		}
		return nil, fmt.Errorf("run test: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Keep the backend's own explanation for the job's failure message.
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("execution backend returned status %d: %s", resp.StatusCode, errBody)
	}

	var result RunResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding run result: %w", err)
	}
	return &result, nil
}
