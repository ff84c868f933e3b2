// Package identity is the boundary to the external identity provider. Only
// session verification is modelled here; account management lives entirely in
// the provider.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Sentinel errors for identity provider failures.
var (
	ErrUnauthenticated     = errors.New("session not authenticated")
	ErrProviderUnavailable = errors.New("identity provider unreachable")
)

// Identity is the verified caller: the provider's subject identifier and the
// account's primary email (may be empty if the account has none).
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Verifier resolves a session token to a verified identity.
type Verifier interface {
	Verify(ctx context.Context, sessionToken string) (*Identity, error)
}

// HTTPClient implements Verifier against the provider's HTTP API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a new identity provider client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Verify(ctx context.Context, sessionToken string) (*Identity, error) {
	body, err := json.Marshal(map[string]string{"token": sessionToken})
	if err != nil {
		return nil, fmt.Errorf("encoding verify request: %w", err)
	}

	u := c.baseURL + "/v1/sessions/verify"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		return nil, fmt.Errorf("verify session: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound:
		return nil, ErrUnauthenticated
	default:
		return nil, fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}

	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return nil, fmt.Errorf("decoding identity: %w", err)
	}
	if id.UserID == "" {
		return nil, ErrUnauthenticated
	}
	return &id, nil
}
