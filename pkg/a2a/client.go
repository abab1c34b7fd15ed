package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/conductorhq/conductor/pkg/apierr"
)

// DefaultClientTimeout bounds an outbound A2A HTTP call when the caller
// does not supply its own context deadline.
const DefaultClientTimeout = 30 * time.Second

// Client dispatches tasks to remote A2A agents. Grounded on the original
// httpx-based A2AClient, reshaped onto stdlib net/http: a generic
// configurable-base-URL HTTP client is exactly what net/http already is,
// and this package pulls in no other HTTP client dependency that would
// better serve the role.
type Client struct {
	HTTP *http.Client
}

// NewClient constructs a Client with DefaultClientTimeout if httpClient is nil.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultClientTimeout}
	}
	return &Client{HTTP: httpClient}
}

// GetCard fetches the agent card published at baseURL's
// /.well-known/agent.json endpoint.
func (c *Client) GetCard(ctx context.Context, baseURL string) (*Card, error) {
	url := strings.TrimRight(baseURL, "/") + "/.well-known/agent.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building agent card request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, apierr.New(apierr.Upstream, fmt.Sprintf("failed to connect to agent: %s", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apierr.New(apierr.NotFound, fmt.Sprintf("agent card not found at %s", url))
	}
	if resp.StatusCode >= 300 {
		return nil, apierr.New(apierr.Upstream, fmt.Sprintf("agent card request failed: status %d", resp.StatusCode))
	}

	var card Card
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("decoding agent card: %w", err)
	}
	return &card, nil
}

// SendTask submits message to the remote agent at baseURL, optionally
// with a caller-supplied task id, and returns the resulting task.
func (c *Client) SendTask(ctx context.Context, baseURL, message, taskID string) (*TaskResponse, error) {
	body := TaskRequest{
		ID:      taskID,
		Message: Message{Role: "user", Parts: []Part{{Type: "text", Text: message}}},
	}
	return c.post(ctx, strings.TrimRight(baseURL, "/")+"/tasks", body)
}

// GetTaskStatus polls a previously submitted task.
func (c *Client) GetTaskStatus(ctx context.Context, baseURL, taskID string) (*TaskResponse, error) {
	url := fmt.Sprintf("%s/tasks/%s", strings.TrimRight(baseURL, "/"), taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building task status request: %w", err)
	}
	return c.do(req)
}

// CancelTask requests cancellation of a previously submitted task.
func (c *Client) CancelTask(ctx context.Context, baseURL, taskID string) (*TaskResponse, error) {
	url := fmt.Sprintf("%s/tasks/%s/cancel", strings.TrimRight(baseURL, "/"), taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building task cancel request: %w", err)
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, url string, body any) (*TaskResponse, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding task request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("building task request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*TaskResponse, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, apierr.New(apierr.Upstream, fmt.Sprintf("failed to connect to agent: %s", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apierr.New(apierr.NotFound, "task not found")
	}
	if resp.StatusCode >= 300 {
		return nil, apierr.New(apierr.Upstream, fmt.Sprintf("task request failed: status %d", resp.StatusCode))
	}

	var out TaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding task response: %w", err)
	}
	return &out, nil
}
