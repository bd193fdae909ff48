// Package client sends requests to partner platforms: the gateway's side of
// calls that flow back to the partner, such as asynchronous command results.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/voltgrid/ocpi-gateway/internal/ocpi"
)

// DefaultTimeout bounds a single partner call when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes bounds how much of a partner reply is read.
const maxResponseBytes = 1 << 20

// Client posts JSON payloads to partner endpoints. It does not retry:
// delivery guarantees belong to the caller.
type Client struct {
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout bounds each call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client.
func New(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{},
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPError is returned when the partner answers with a non-2xx status.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("partner returned HTTP %d", e.StatusCode)
}

// StatusError is returned when the partner's envelope carries a non-success
// status code.
type StatusError struct {
	Code    ocpi.StatusCode
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("partner returned status %d: %s", e.Code, e.Message)
}

// Reply is the partner's decoded envelope.
type Reply struct {
	Data          json.RawMessage `json:"data,omitempty"`
	StatusCode    ocpi.StatusCode `json:"status_code"`
	StatusMessage string          `json:"status_message,omitempty"`
	Timestamp     string          `json:"timestamp"`
}

// Post sends payload to url authenticated with credential and returns the
// partner's envelope.
func (c *Client) Post(ctx context.Context, url, credential string, payload any) (*Reply, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+credential)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("partner call completed",
		slog.String("url", url),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var reply Reply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !reply.StatusCode.IsSuccess() {
		return &reply, &StatusError{Code: reply.StatusCode, Message: reply.StatusMessage}
	}
	return &reply, nil
}
