// Package automation is the HTTP client for the remote browser-automation
// backend that executes form-fill jobs. The backend owns the browser; this
// client only submits work and reads raw status reports back.
package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/vigil/internal/models"
)

const (
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default request rate limit (per second).
	// Status polling is chatty; keep the backend comfortable.
	DefaultRateLimit = 10
)

// Client talks to the automation backend over HTTP JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new automation backend client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// submitResponse is the backend's answer to a job submission.
type submitResponse struct {
	JobID string `json:"job_id"`
}

// SubmitSingleJob starts a one-visit form-fill job and returns the job id.
func (c *Client) SubmitSingleJob(ctx context.Context, req *models.SingleJobRequest) (string, error) {
	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, "/api/automation/single", req, &resp); err != nil {
		return "", fmt.Errorf("submit single job: %w", err)
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("submit single job: backend returned no job id")
	}
	return resp.JobID, nil
}

// SubmitBatchJob starts a multi-visit job from an uploaded file reference.
func (c *Client) SubmitBatchJob(ctx context.Context, req *models.BatchJobRequest) (string, error) {
	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, "/api/automation/batch", req, &resp); err != nil {
		return "", fmt.Errorf("submit batch job: %w", err)
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("submit batch job: backend returned no job id")
	}
	return resp.JobID, nil
}

// FetchSingleStatus reads the backend's global single-job status slot.
// The backend runs one single job at a time, so no job id is taken.
func (c *Client) FetchSingleStatus(ctx context.Context) (*models.RawStatusReport, error) {
	var report models.RawStatusReport
	if err := c.do(ctx, http.MethodGet, "/api/automation/status", nil, &report); err != nil {
		return nil, fmt.Errorf("fetch single status: %w", err)
	}
	return &report, nil
}

// FetchBatchStatus reads the status report for a batch job.
func (c *Client) FetchBatchStatus(ctx context.Context, jobID string) (*models.RawStatusReport, error) {
	var report models.RawStatusReport
	path := fmt.Sprintf("/api/automation/batch/%s/status", jobID)
	if err := c.do(ctx, http.MethodGet, path, nil, &report); err != nil {
		return nil, fmt.Errorf("fetch batch status: %w", err)
	}
	return &report, nil
}

// CancelJob asks the backend to abort a job.
func (c *Client) CancelJob(ctx context.Context, jobID string) (*models.CancelResult, error) {
	var result models.CancelResult
	path := fmt.Sprintf("/api/automation/jobs/%s/cancel", jobID)
	if err := c.do(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, fmt.Errorf("cancel job: %w", err)
	}
	return &result, nil
}

// do performs a JSON request against the backend. The response decoder
// ignores unknown fields by default, which keeps the client tolerant of
// whatever extra payload shape the backend version returns.
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("method", method).
			Str("path", path).
			Msg("Automation backend request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(data),
			Endpoint:   path,
		}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
