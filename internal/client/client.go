// Package client provides an HTTP client for the twin's /admin/* endpoints,
// used by the twin-paypal admin subcommands.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wondertwin-ai/twin-paypal/internal/store"
)

// AdminClient talks to twin /admin/* endpoints.
type AdminClient struct {
	baseURL string
	http    *http.Client
}

// New creates an AdminClient for the twin at baseURL with a 5-second timeout.
func New(baseURL string) *AdminClient {
	return &AdminClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Health checks GET /admin/health. Returns (ok, response body or error message).
func (c *AdminClient) Health(ctx context.Context) (bool, string) {
	body, status, err := c.do(ctx, http.MethodGet, "/admin/health", nil)
	if err != nil {
		return false, err.Error()
	}
	if status == http.StatusOK {
		return true, body
	}
	return false, fmt.Sprintf("status %d: %s", status, body)
}

// Reset calls POST /admin/reset.
func (c *AdminClient) Reset(ctx context.Context) (string, error) {
	return c.expectOK(ctx, "reset", http.MethodPost, "/admin/reset", nil)
}

// State returns the JSON body of GET /admin/state.
func (c *AdminClient) State(ctx context.Context) (string, error) {
	return c.expectOK(ctx, "state", http.MethodGet, "/admin/state", nil)
}

// Seed loads a JSON or YAML state file through POST /admin/state.
func (c *AdminClient) Seed(ctx context.Context, filePath string) (string, error) {
	data, err := store.ReadSeedFile(filePath)
	if err != nil {
		return "", err
	}
	return c.expectOK(ctx, "seed", http.MethodPost, "/admin/state", data)
}

// Respond fixes every API response to status and body via POST /admin/response.
func (c *AdminClient) Respond(ctx context.Context, status int, body string) (string, error) {
	data, err := json.Marshal(map[string]any{"status_code": status, "body": body})
	if err != nil {
		return "", fmt.Errorf("marshal response override: %w", err)
	}
	return c.expectOK(ctx, "respond", http.MethodPost, "/admin/response", data)
}

// ApproveSubscription activates a pending subscription.
func (c *AdminClient) ApproveSubscription(ctx context.Context, id string) (string, error) {
	return c.expectOK(ctx, "approve", http.MethodPost, "/admin/subscriptions/"+id+"/approve", nil)
}

// AdvanceTime moves the twin clock forward by d.
func (c *AdminClient) AdvanceTime(ctx context.Context, d time.Duration) (string, error) {
	data, err := json.Marshal(map[string]string{"duration": d.String()})
	if err != nil {
		return "", fmt.Errorf("marshal duration: %w", err)
	}
	return c.expectOK(ctx, "advance time", http.MethodPost, "/admin/time/advance", data)
}

// FlushWebhooks delivers queued webhook events.
func (c *AdminClient) FlushWebhooks(ctx context.Context) (string, error) {
	return c.expectOK(ctx, "flush", http.MethodPost, "/admin/webhooks/flush", nil)
}

func (c *AdminClient) expectOK(ctx context.Context, op, method, path string, payload []byte) (string, error) {
	body, status, err := c.do(ctx, method, path, payload)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%s returned status %d: %s", op, status, body)
	}
	return body, nil
}

func (c *AdminClient) do(ctx context.Context, method, path string, payload []byte) (string, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return strings.TrimSpace(string(body)), resp.StatusCode, nil
}
