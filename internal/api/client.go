// Package api is the REST client for the inspection backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rbright/inspector/internal/logging"
	"golang.org/x/time/rate"
)

// ErrNetwork matches every failed backend call, transport or status.
var ErrNetwork = errors.New("network failure")

// RequestError describes one failed backend call.
type RequestError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
	default:
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

func (e *RequestError) Is(target error) bool { return target == ErrNetwork }

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RateLimit  float64
	Burst      int
	UserAgent  string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client issues authenticated JSON requests against the backend.
type Client struct {
	base      *url.URL
	token     string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// New validates opts and builds a Client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		base:      base,
		token:     strings.TrimSpace(opts.Token),
		userAgent: opts.UserAgent,
		http:      httpClient,
		limiter:   limiter,
		logger:    logging.OrDiscard(opts.Logger),
	}, nil
}

// BaseURL returns the normalized backend root.
func (c *Client) BaseURL() string { return c.base.String() }

// Probe reports whether the backend answers HTTP at all. Any status counts.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String()+"/", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Method: http.MethodGet, Path: "/", Err: err}
	}
	_ = resp.Body.Close()
	return nil
}

type call struct {
	method  string
	path    string
	query   url.Values
	body    any
	headers map[string]string
}

func (c *Client) do(ctx context.Context, in call, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &RequestError{Method: in.method, Path: in.path, Err: err}
	}

	target := *c.base
	target.Path = c.base.Path + in.path
	if len(in.query) > 0 {
		target.RawQuery = in.query.Encode()
	}

	var body io.Reader
	if in.body != nil {
		payload, err := json.Marshal(in.body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", in.path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, in.method, target.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for key, value := range in.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed", "method", in.method, "path", in.path, "error", err.Error())
		return &RequestError{Method: in.method, Path: in.path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestError{Method: in.method, Path: in.path, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.Debug("backend request",
		"method", in.method,
		"path", in.path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{
			Method:  in.method,
			Path:    in.path,
			Status:  resp.StatusCode,
			Message: errorMessage(raw),
		}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &RequestError{Method: in.method, Path: in.path, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorMessage extracts the backend's {"message": ...} body when present.
func errorMessage(raw []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}

func escape(id string) string { return url.PathEscape(id) }
