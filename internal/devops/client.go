// Package devops is the client for the work-item tracking REST API: WIQL
// queries, batched detail fetches and hierarchy link lookups.
package devops

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL    = "https://dev.azure.com"
	defaultAPIVersion = "7.0"
	// MaxBatchSize is the service's ceiling on ids per details call.
	MaxBatchSize = 200

	maxErrorBody = 512
)

// Config configures a Client. One Client serves one report request.
type Config struct {
	BaseURL      string
	Organization string
	Project      string
	PAT          string
	APIVersion   string

	BatchSize  int
	Workers    int
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	RateLimit  float64
	RateBurst  int

	// Transport allows injecting a custom HTTP transport (for tests/stubs).
	Transport http.RoundTripper
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.Organization) == "" || strings.TrimSpace(c.Project) == "" {
		return errors.New("devops: organization and project are required")
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.APIVersion == "" {
		c.APIVersion = defaultAPIVersion
	}
	if c.BatchSize <= 0 || c.BatchSize > MaxBatchSize {
		c.BatchSize = MaxBatchSize
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 200 * time.Millisecond
	}
	if c.RateLimit == 0 {
		c.RateLimit = 10
	}
	if c.RateBurst == 0 {
		c.RateBurst = 5
	}
	return nil
}

// Client is a rate-limited client for one organization/project.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	authHeader  string
	logger      *slog.Logger
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		authHeader:  "Basic " + base64.StdEncoding.EncodeToString([]byte(":"+cfg.PAT)),
		logger:      logger.With("component", "devops", "organization", cfg.Organization, "project", cfg.Project),
	}, nil
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	// idempotent requests may be retried on transport failures.
	idempotent bool
}

// do executes req and returns the response body.
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	if !req.idempotent || c.cfg.MaxRetries == 0 {
		return c.doOnce(ctx, req)
	}

	r := retry.New[[]byte](retry.Config{
		MaxAttempts:   c.cfg.MaxRetries + 1,
		InitialDelay:  c.cfg.RetryDelay,
		BackoffPolicy: retry.BackoffExponential,
		IsRetryable:   retryable,
		OnRetry: func(attempt int, err error) {
			c.logger.Warn("retrying request", "op", req.op, "attempt", attempt, "error", err)
		},
	})
	return r.Do(ctx, func(ctx context.Context) ([]byte, error) {
		return c.doOnce(ctx, req)
	})
}

func retryable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Retryable()
}

func (c *Client) doOnce(ctx context.Context, req request) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, &APIError{Kind: ErrTransport, Op: req.op, Err: err}
	}

	var bodyReader io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal body: %w", req.op, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.url(req.path, req.query), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", req.op, err)
	}
	httpReq.Header.Set("Authorization", c.authHeader)
	httpReq.Header.Set("Accept", "application/json")
	if bodyReader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &APIError{Kind: ErrTransport, Op: req.op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Kind: ErrTransport, Op: req.op, Err: fmt.Errorf("read body: %w", err)}
	}

	if kind := kindForStatus(resp.StatusCode); kind != nil {
		apiErr := &APIError{Kind: kind, Op: req.op, StatusCode: resp.StatusCode}
		// Sign-in pages are HTML noise; keep only JSON error messages.
		if kind != ErrUnauthorized {
			apiErr.Message = errorMessage(body)
		}
		c.logger.Error("request failed", "op", req.op, "status", resp.StatusCode, "error", apiErr.Message)
		return nil, apiErr
	}
	return body, nil
}

func (c *Client) url(path string, query url.Values) string {
	u := fmt.Sprintf("%s/%s/%s/_apis/%s",
		c.cfg.BaseURL,
		url.PathEscape(c.cfg.Organization),
		url.PathEscape(c.cfg.Project),
		strings.TrimPrefix(path, "/"))
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("api-version", c.cfg.APIVersion)
	return u + "?" + q.Encode()
}

// errorMessage extracts the service's {"message": ...} or a trimmed body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	return msg
}
