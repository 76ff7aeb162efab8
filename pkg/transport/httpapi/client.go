// Package httpapi implements transport.Client against the video-task REST
// API.
//
// Errors are mapped onto the transport taxonomy from the backend's unified
// error envelope ({code, message, requestId, details}), so callers never
// inspect HTTP status codes directly.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/clipforge/vidsync/pkg/task"
	"github.com/clipforge/vidsync/pkg/transport"
)

// Config configures the API client.
type Config struct {
	// BaseURL is the API root, e.g. "http://localhost:8080".
	BaseURL string

	// Token, when set, is sent as a bearer token.
	Token string

	// Timeout bounds each request. Default: 30s.
	Timeout time.Duration

	// RateLimit is the maximum requests per second issued by this client.
	// Zero means unlimited.
	RateLimit float64

	// HTTPClient overrides the underlying client, for tests.
	HTTPClient *http.Client
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	return nil
}

// Client talks to the video-task backend. Safe for concurrent use.
type Client struct {
	base    string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

// Ensure Client implements the interface.
var _ transport.Client = (*Client)(nil)

// New creates a client from config.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	c := &Client{
		base:  strings.TrimRight(cfg.BaseURL, "/"),
		token: cfg.Token,
		http:  httpClient,
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c, nil
}

// errorEnvelope is the backend's unified error body.
type errorEnvelope struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

// FetchPage returns one page of tasks for the query.
func (c *Client) FetchPage(ctx context.Context, q task.Query) (*task.Page, error) {
	q = q.Normalized()

	params := url.Values{}
	params.Set("limit", strconv.Itoa(q.Limit))
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}
	if q.Search != "" {
		params.Set("q", q.Search)
	}
	if q.Status != "" {
		params.Set("status", string(q.Status))
	}
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}

	var page task.Page
	if err := c.do(ctx, "FetchPage", http.MethodGet, "/api/video-tasks?"+params.Encode(), nil, "", &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateRecord creates a task, carrying the idempotency key as a header so
// server-side retries of the identical key are deduplicated.
func (c *Client) CreateRecord(ctx context.Context, req task.CreateRequest, idempotencyKey string) (*task.Record, error) {
	var rec task.Record
	if err := c.do(ctx, "CreateRecord", http.MethodPost, "/api/video-tasks", req, idempotencyKey, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetRecord returns a single task by id.
func (c *Client) GetRecord(ctx context.Context, id string) (*task.Record, error) {
	var rec task.Record
	if err := c.do(ctx, "GetRecord", http.MethodGet, "/api/video-tasks/"+url.PathEscape(id), nil, "", &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteRecord deletes a task by id.
func (c *Client) DeleteRecord(ctx context.Context, id string) error {
	return c.do(ctx, "DeleteRecord", http.MethodDelete, "/api/video-tasks/"+url.PathEscape(id), nil, "", nil)
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// do issues one request and decodes the response or the error envelope.
func (c *Client) do(ctx context.Context, op, method, path string, body any, idempotencyKey string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.wrapTransient(op, idempotencyKey, err)
		}
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &transport.APIError{
				Op:             op,
				Message:        err.Error(),
				IdempotencyKey: idempotencyKey,
				Err:            fmt.Errorf("%w: encode request: %w", transport.ErrValidation, err),
			}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return c.wrapTransient(op, idempotencyKey, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.wrapTransient(op, idempotencyKey, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return c.apiError(op, idempotencyKey, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &transport.APIError{
			Op:             op,
			StatusCode:     resp.StatusCode,
			Message:        "malformed response body",
			RequestID:      resp.Header.Get("X-Request-Id"),
			IdempotencyKey: idempotencyKey,
			Err:            fmt.Errorf("%w: decode response: %w", transport.ErrServer, err),
		}
	}
	return nil
}

// apiError builds the typed error from a non-2xx response.
func (c *Client) apiError(op, idempotencyKey string, resp *http.Response) error {
	var envelope errorEnvelope
	// Body may not be the unified envelope (proxies, panics); classification
	// falls back to the status code alone.
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&envelope)

	requestID := envelope.RequestID
	if requestID == "" {
		requestID = resp.Header.Get("X-Request-Id")
	}
	message := envelope.Message
	if message == "" {
		message = resp.Status
	}

	return &transport.APIError{
		Op:             op,
		StatusCode:     resp.StatusCode,
		Code:           envelope.Code,
		Message:        message,
		RequestID:      requestID,
		IdempotencyKey: idempotencyKey,
		Err:            transport.Classify(resp.StatusCode, envelope.Code),
	}
}

func (c *Client) wrapTransient(op, idempotencyKey string, err error) error {
	return &transport.APIError{
		Op:             op,
		Message:        err.Error(),
		IdempotencyKey: idempotencyKey,
		Err:            fmt.Errorf("%w: %w", transport.ErrTransient, err),
	}
}
