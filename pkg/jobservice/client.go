package jobservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/stockroom/pkg/errors"
)

const (
	defaultTimeout         = 30 * time.Second
	apiKeyHeader           = "X-API-Key"
	errorBodyLimit   int64 = 1024
	successBodyLimit int64 = 32 << 20
)

var errBaseURLRequired = errors.New("job service base url is required")

// APIError describes a failed job service call. StatusCode is zero for
// transport failures and timeouts.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("job service %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("job service %s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

// Client wraps the external job service RPC surface.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout bounds every call made by the client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds a client for the service rooted at baseURL.
func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("parse job service url: %w", err)
	}

	client := &Client{
		baseURL:    trimmed,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Status reports the service health.
func (c *Client) Status(ctx context.Context) (*ServiceStatus, error) {
	var raw map[string]any
	if err := c.do(ctx, "status", http.MethodGet, "/status", nil, &raw); err != nil {
		return nil, err
	}
	status := &ServiceStatus{Extra: raw}
	if v, ok := raw["status"].(string); ok {
		status.Status = v
	}
	if v, ok := raw["version"].(string); ok {
		status.Version = v
	}
	return status, nil
}

// CreateJob registers a job without starting it.
func (c *Client) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "job name is required")
	}
	if strings.TrimSpace(req.ConfigID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "job config id is required")
	}
	var job Job
	if err := c.do(ctx, "create job", http.MethodPost, "/jobs", req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// StartJob starts a previously created job.
func (c *Client) StartJob(ctx context.Context, jobID string) (*Job, error) {
	return c.jobAction(ctx, "start job", http.MethodPost, jobID, "/start")
}

// StopJob stops a running job.
func (c *Client) StopJob(ctx context.Context, jobID string) (*Job, error) {
	return c.jobAction(ctx, "stop job", http.MethodPost, jobID, "/stop")
}

// GetJob returns the job descriptor including its creation metadata.
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return c.jobAction(ctx, "get job", http.MethodGet, jobID, "")
}

// GetHits returns the raw result records of a job. The service answers
// either a bare array or an object with a "hits" array.
func (c *Client) GetHits(ctx context.Context, jobID string) ([]Hit, error) {
	path, err := jobPath(jobID, "/hits")
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.do(ctx, "get hits", http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	var hits []Hit
	if err := json.Unmarshal(raw, &hits); err == nil {
		return hits, nil
	}
	var wrapped struct {
		Hits []Hit `json:"hits"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, wrapAPIError(&APIError{Op: "get hits", Message: "unexpected hits payload"}, err)
	}
	return wrapped.Hits, nil
}

func (c *Client) jobAction(ctx context.Context, op, method, jobID, suffix string) (*Job, error) {
	path, err := jobPath(jobID, suffix)
	if err != nil {
		return nil, err
	}
	var job Job
	if err := c.do(ctx, op, method, path, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func jobPath(jobID, suffix string) (string, error) {
	trimmed := strings.TrimSpace(jobID)
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "job id is required")
	}
	return "/jobs/" + url.PathEscape(trimmed) + suffix, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "job service client not configured")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal "+op+" request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build "+op+" request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return wrapAPIError(&APIError{Op: op, Message: err.Error()}, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return wrapAPIError(&APIError{Op: op, StatusCode: resp.StatusCode, Message: upstreamMessage(msg)}, nil)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, successBodyLimit)).Decode(out); err != nil {
		return wrapAPIError(&APIError{Op: op, StatusCode: resp.StatusCode, Message: "decode response"}, err)
	}
	return nil
}

// upstreamMessage prefers the "error" or "message" field of a JSON body.
func upstreamMessage(body []byte) string {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return strings.TrimSpace(string(body))
}

func wrapAPIError(apiErr *APIError, cause error) error {
	var err error = apiErr
	if cause != nil {
		err = fmt.Errorf("%w: %v", apiErr, cause)
	}
	return pkgerrors.Wrap(pkgerrors.CodeJobService, err, apiErr.Op+" failed").
		WithDetails(map[string]any{
			"upstreamStatus":  apiErr.StatusCode,
			"upstreamMessage": apiErr.Message,
		})
}

// AsAPIError extracts the upstream failure from err, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
