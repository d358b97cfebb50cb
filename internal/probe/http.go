package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/okian/staffmatch/internal/domain/types"
)

const (
	maxErrorBody      = 512
	healthMaxRetries  = 5
	healthInitialWait = 250 * time.Millisecond
)

// client talks to the staffmatch HTTP API.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

// recommendations performs GET /api/scheduling/recommendations/{id}.
func (c *client) recommendations(ctx context.Context, id string) (types.RecommendationEnvelope, error) {
	return c.envelope(ctx, http.MethodGet, "/api/scheduling/recommendations/"+id)
}

// recalculate performs POST /api/scheduling/requirements/{id}/recalculate.
func (c *client) recalculate(ctx context.Context, id string) (types.RecommendationEnvelope, error) {
	return c.envelope(ctx, http.MethodPost, "/api/scheduling/requirements/"+id+"/recalculate")
}

func (c *client) envelope(ctx context.Context, method, path string) (types.RecommendationEnvelope, error) {
	var env types.RecommendationEnvelope
	body, err := c.do(ctx, method, path)
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return env, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return env, nil
}

// health waits for GET /healthz to answer 200, retrying while the server starts.
func (c *client) health(ctx context.Context) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(newBackoff(), healthMaxRetries), ctx)
	return backoff.Retry(func() error {
		_, err := c.do(ctx, http.MethodGet, "/healthz")
		return err
	}, policy)
}

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = healthInitialWait
	return b
}

func (c *client) do(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", "probe-"+uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
