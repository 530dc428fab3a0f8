// Package client calls the bpmgate HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/bpmgate"
	"github.com/aretw0/bpmgate/internal/logging"
	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/variables"
)

// Error is returned for non-2xx responses.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("bpmgate: status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Client talks to a bpmgate server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DeployAndStart deploys a BPMN document and starts an instance.
// A response with Success false is returned together with an *Error.
func (c *Client) DeployAndStart(ctx context.Context, req variables.WorkflowRequest) (bpmgate.DeploymentResponse, error) {
	var resp bpmgate.DeploymentResponse
	err := c.do(ctx, http.MethodPost, "/api/workflow/deploy-and-start", req, &resp)
	return resp, err
}

// ProcessInstance returns the details map of an instance.
func (c *Client) ProcessInstance(ctx context.Context, id string) (map[string]any, error) {
	var details map[string]any
	if err := c.do(ctx, http.MethodGet, "/api/workflow/process-instance/"+url.PathEscape(id), nil, &details); err != nil {
		return nil, err
	}
	return details, nil
}

// ActiveTasks lists the open tasks of an instance.
func (c *Client) ActiveTasks(ctx context.Context, processInstanceID string) ([]map[string]any, error) {
	var tasks []map[string]any
	if err := c.do(ctx, http.MethodGet, "/api/workflow/active-tasks/"+url.PathEscape(processInstanceID), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CompleteTask completes a task with optional variables.
func (c *Client) CompleteTask(ctx context.Context, taskID string, vars domain.Variables) error {
	body := map[string]any{"variables": vars}
	return c.do(ctx, http.MethodPost, "/api/workflow/tasks/"+url.PathEscape(taskID)+"/complete", body, nil)
}

// AssignTask sets the assignee of a task.
func (c *Client) AssignTask(ctx context.Context, taskID, assignee string) error {
	body := map[string]string{"assignee": assignee}
	return c.do(ctx, http.MethodPost, "/api/workflow/tasks/"+url.PathEscape(taskID)+"/assign", body, nil)
}

// AuditTrail returns the audit records of an instance in insertion order.
func (c *Client) AuditTrail(ctx context.Context, processInstanceID string) ([]domain.AuditRecord, error) {
	var records []domain.AuditRecord
	path := "/api/workflow/process-instance/" + url.PathEscape(processInstanceID) + "/audit"
	if err := c.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// CancelProcessInstance deletes a running instance.
func (c *Client) CancelProcessInstance(ctx context.Context, id, reason string) error {
	path := "/api/workflow/process-instance/" + url.PathEscape(id)
	if reason != "" {
		path += "?reason=" + url.QueryEscape(reason)
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// do sends body as JSON and decodes the response into out. On non-2xx the body is
// still decoded into out when possible, and an *Error is returned.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("bpmgate call", "method", method, "path", path, "status", res.StatusCode)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		if out != nil && len(raw) > 0 {
			_ = json.Unmarshal(raw, out)
		}
		return &Error{StatusCode: res.StatusCode, Body: string(raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
