/**
 * @description
 * This package provides a client for the external workflow-execution engine.
 * It encapsulates the authenticated HTTP round trips for triggering the
 * balance workflow, re-fetching a workflow run by id, and listing raw
 * transaction records.
 *
 * The engine is schema-inconsistent: a trigger can answer with an inline data
 * payload, an error-shaped "no data" body, or an async job handle. The client
 * therefore does not force responses into a fixed struct; it decodes bodies
 * into generic JSON (numbers preserved as json.Number so decimal text survives
 * intact) and leaves classification to the application layer.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, io, net/http, time: Standard Go libraries.
 */

package workflowclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNotConfigured is returned when the engine credentials are missing.
	// This is a deployment fault, never retried.
	ErrNotConfigured = errors.New("workflow engine credentials are not configured")
	// ErrInvalidResponse is returned when the engine answers 2xx with a body
	// that is not parseable JSON.
	ErrInvalidResponse = errors.New("workflow engine returned an invalid response")
)

// UpstreamError is a non-2xx answer from the engine. The original status code
// is preserved so the API layer can propagate it unchanged.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("workflow engine error: status %d, body: %s", e.StatusCode, e.Body)
}

// Response is one decoded engine answer. Payload is generic JSON with numbers
// as json.Number; Body is the raw bytes for logging and marker checks.
type Response struct {
	Payload any
	Body    []byte
}

// Client is a client for the workflow engine API.
type Client struct {
	baseURL          string
	apiKey           string
	triggerPath      string
	pollPath         string
	transactionsPath string
	httpClient       *http.Client
}

// NewClient creates a new workflow engine client.
func NewClient(baseURL, apiKey, triggerPath, pollPath, transactionsPath string) *Client {
	return &Client{
		baseURL:          strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		apiKey:           strings.TrimSpace(apiKey),
		triggerPath:      triggerPath,
		pollPath:         pollPath,
		transactionsPath: transactionsPath,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Configured reports whether the client has the credentials it needs.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != "" && c.apiKey != ""
}

// TriggerBalanceWorkflow invokes the balance workflow for the given resolution
// email and returns the decoded response, whatever its shape.
func (c *Client) TriggerBalanceWorkflow(ctx context.Context, email string) (*Response, error) {
	url := c.baseURL + c.triggerPath
	return c.do(ctx, http.MethodPost, url, map[string]string{"userEmail": email})
}

// GetWorkflowRun re-fetches a workflow run by id. The run has no server-side
// persistence on our side, so every poll goes back to the engine.
func (c *Client) GetWorkflowRun(ctx context.Context, runID string) (*Response, error) {
	url := fmt.Sprintf("%s%s/%s", c.baseURL, c.pollPath, runID)
	return c.do(ctx, http.MethodGet, url, nil)
}

// ListTransactions fetches the raw movement records for the given resolution
// email. The records keep their source field names; normalization happens in
// the application layer.
func (c *Client) ListTransactions(ctx context.Context, email string) (*Response, error) {
	url := c.baseURL + c.transactionsPath
	return c.do(ctx, http.MethodPost, url, map[string]string{"userEmail": email})
}

// do performs one authenticated round trip against the engine.
func (c *Client) do(ctx context.Context, method, url string, body any) (*Response, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.Printf("level=info component=workflowclient msg=\"engine request\" method=%s url=%s", method, url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("level=warn component=workflowclient msg=\"engine returned non-success status\" status=%d body=%s", resp.StatusCode, string(respBody))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	payload, err := DecodeJSON(respBody)
	if err != nil {
		log.Printf("level=error component=workflowclient msg=\"engine response unparseable\" err=%v", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return &Response{Payload: payload, Body: respBody}, nil
}

// DecodeJSON decodes bytes into generic JSON with numbers kept as json.Number,
// so decimal amounts round-trip as the exact text the engine sent.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}
