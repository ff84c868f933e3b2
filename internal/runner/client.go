// Package runner is the boundary to the external task-runner service. Runs
// are tagged with the job ID at trigger time; tag lookup is the only index
// this system uses to find them again, so the runner's registry is never
// duplicated locally.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/autoresttest/console/pkg/models"
)

// Sentinel errors for task runner failures.
var (
	ErrRunnerUnavailable = errors.New("task runner unreachable")
	ErrRunNotFound       = errors.New("run not found")
)

// Run is a single execution of a task inside the runner.
type Run struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// TaskPayload is what a triggered task receives: the job to work on and its
// config snapshot.
type TaskPayload struct {
	JobID  uuid.UUID         `json:"job_id"`
	Config *models.RunConfig `json:"config"`
}

// Client is the interface for dispatching and steering runs.
type Client interface {
	Trigger(ctx context.Context, taskID string, payload TaskPayload, tags []string) (*Run, error)
	ListRuns(ctx context.Context, tag string, limit int) ([]Run, error)
	Cancel(ctx context.Context, runID string) error
	Replay(ctx context.Context, runID string) (*Run, error)
}

// HTTPClient implements Client against the runner's HTTP API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a new task runner client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Trigger(ctx context.Context, taskID string, payload TaskPayload, tags []string) (*Run, error) {
	reqBody := struct {
		Payload TaskPayload `json:"payload"`
		Tags    []string    `json:"tags,omitempty"`
	}{Payload: payload, Tags: tags}

	var run Run
	u := fmt.Sprintf("%s/api/v1/tasks/%s/trigger", c.baseURL, taskID)
	if err := c.do(ctx, http.MethodPost, u, reqBody, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *HTTPClient) ListRuns(ctx context.Context, tag string, limit int) ([]Run, error) {
	u := fmt.Sprintf("%s/api/v1/runs?tag=%s&limit=%s", c.baseURL, tag, strconv.Itoa(limit))

	var listResp struct {
		Data []Run `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, u, nil, &listResp); err != nil {
		return nil, err
	}
	return listResp.Data, nil
}

func (c *HTTPClient) Cancel(ctx context.Context, runID string) error {
	u := fmt.Sprintf("%s/api/v1/runs/%s/cancel", c.baseURL, runID)
	return c.do(ctx, http.MethodPost, u, nil, nil)
}

func (c *HTTPClient) Replay(ctx context.Context, runID string) (*Run, error) {
	var run Run
	u := fmt.Sprintf("%s/api/v1/runs/%s/replay", c.baseURL, runID)
	if err := c.do(ctx, http.MethodPost, u, nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *HTTPClient) do(ctx context.Context, method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) {
			return fmt.Errorf("%w: %v", ErrRunnerUnavailable, err)
		}
		return fmt.Errorf("task runner request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusNotFound:
		return ErrRunNotFound
	default:
		return fmt.Errorf("task runner returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding task runner response: %w", err)
		}
	}
	return nil
}
