// Package execapi is the HTTP client for the workflow execution API — the
// external engine that actually runs a workflow's steps. Relay hands it an
// execution ID and trigger input; the engine runs asynchronously and writes
// the execution's terminal state itself.
package execapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// serviceKeyHeader authenticates service-to-service calls.
const serviceKeyHeader = "X-Service-Key"

// ExecuteInput is the trigger context passed to the engine and recorded on
// the execution row.
type ExecuteInput struct {
	TriggerType string    `json:"triggerType"`
	ScheduleID  string    `json:"scheduleId"`
	TriggerTime time.Time `json:"triggerTime"`
}

// ExecuteRequest is the body of an execute call.
type ExecuteRequest struct {
	ExecutionID string       `json:"executionId"`
	Input       ExecuteInput `json:"input"`
}

// StatusError is returned when the execution API responds non-2xx. The
// status code ends up in schedule.LastError, so the message includes it.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("execution API returned status %d", e.StatusCode)
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// Client calls the workflow execution API.
type Client struct {
	baseURL    string
	serviceKey string
	http       *http.Client
}

// New creates a Client. baseURL is the engine's root URL without a trailing
// slash; serviceKey is sent on every request.
func New(baseURL, serviceKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		http:       cleanhttp.DefaultPooledClient(),
	}
	c.http.Timeout = 30 * time.Second
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute asks the engine to run a workflow.
// POST {base}/api/workflow/{workflowID}/execute. A non-2xx response returns
// a *StatusError; the caller treats it as a hard failure for the message.
func (c *Client) Execute(ctx context.Context, workflowID string, req ExecuteRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("execapi: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/workflow/%s/execute", c.baseURL, workflowID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("execapi: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(serviceKeyHeader, c.serviceKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("execapi: execute workflow %s: %w", workflowID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Bounded read: error bodies are for diagnostics only.
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
