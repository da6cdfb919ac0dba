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
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds a single request when no option overrides it.
const DefaultTimeout = 30 * time.Second

// RequestIDHeader carries a per-request UUID so client and server logs
// can be correlated.
const RequestIDHeader = "X-Request-ID"

// ErrDecode marks a response body that did not match the expected schema.
var ErrDecode = errors.New("decoding response")

// StatusError is returned when the server answers with a status other
// than the one the operation expects.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int

	// Message is the server-supplied "message" field, if the body had one.
	Message string

	// Body is the raw response body.
	Body string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("unexpected status %d on %s %s: %s",
			e.StatusCode, e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("unexpected status %d on %s %s",
		e.StatusCode, e.Method, e.Path)
}

// IsStatus reports whether err (or any error in its chain) is a
// StatusError with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

// Client is a thin HTTP client for the task service's JSON API.
// Each call is a single attempt: there is no retry or backoff.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	newID      func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout. Zero disables the client-side
// timeout and leaves only the transport defaults.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client rooted at baseURL
// (e.g., http://localhost:3000).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: discardLogger(),
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the root URL the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do performs one request. body, when non-nil, is sent as JSON. The
// response must carry wantStatus; anything else is a *StatusError. When
// result is non-nil the body is decoded into it, and a mismatch wraps
// ErrDecode.
func (c *Client) Do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	wantStatus int,
	result interface{},
) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	requestID := c.newID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("reading response body: %w", readErr)
	}

	c.logger.Debug("api response",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
	)

	if resp.StatusCode != wantStatus {
		statusErr := &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
		var msg MessageResponse
		if json.Unmarshal(respBody, &msg) == nil {
			statusErr.Message = msg.Message
		}
		return statusErr
	}

	if result == nil {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("%w from %s %s: %v", ErrDecode, method, path, err)
	}

	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
