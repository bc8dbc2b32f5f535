// Package transport performs the open/post/get/close exchanges with the
// proxy and hands back raw response bodies.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"net/http"
	"net/url"
	"time"
)

// MaxBody bounds how much of a response is read.
const MaxBody = 64 << 10

// StatusError reports a non-2xx answer. Body keeps the start of the response
// since the proxy explains most refusals in an "error" field.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: unexpected status %d from %s", e.StatusCode, e.URL)
}

type Client struct {
	http *http.Client
}

func New(c *http.Client) *Client {
	if c == nil {
		c = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{http: c}
}

// PostJSON sends body as application/json and returns the response body.
func (c *Client) PostJSON(ctx context.Context, target string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transport: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// Get issues a GET with query merged into target's query string.
func (c *Client) Get(ctx context.Context, target string, query url.Values) ([]byte, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("transport: parse url: %w", err)
	}
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("transport: create request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	log.Debug("Request", "method", req.Method, "url", req.URL.Redacted())

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	buf, err := io.ReadAll(io.LimitReader(res.Body, MaxBody))
	if err != nil {
		return nil, fmt.Errorf("transport: read body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &StatusError{
			StatusCode: res.StatusCode,
			URL:        req.URL.Redacted(),
			Body:       string(buf),
		}
	}
	return buf, nil
}

// BodyOf returns the response body carried by err, if any.
func BodyOf(err error) (string, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Body, true
	}
	return "", false
}
