package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/adapter"
)

// REST client constants.
const (
	// maxResponseBytes caps how much of a gateway response is read.
	// A full state with a few hundred devices stays well under this.
	maxResponseBytes = 4 << 20

	// defaultHTTPTimeout is used when no timeout is configured.
	defaultHTTPTimeout = 10 * time.Second
)

// Client is the HTTP client for the gateway REST API.
//
// It implements adapter.RESTClient and adds Put for device commands.
// Paths are logged with the access key segment redacted.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  Logger
}

// NewClient creates a REST client for the gateway at host:port.
func NewClient(host string, port int, timeout time.Duration, logger Logger) *Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Client{
		baseURL: fmt.Sprintf("http://%s:%d", host, port),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Get issues a GET request to the given API path.
func (c *Client) Get(ctx context.Context, path string) (*adapter.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST request with a JSON body to the given API path.
func (c *Client) Post(ctx context.Context, path string, body []byte) (*adapter.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// Put issues a PUT request with a JSON body to the given API path.
// Used for device state commands.
func (c *Client) Put(ctx context.Context, path string, body []byte) (*adapter.Response, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*adapter.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("gateway request failed",
			"method", method, "path", redactPath(path), "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("gateway: read response: %w", err)
	}

	c.logger.Debug("gateway request",
		"method", method,
		"path", redactPath(path),
		"code", resp.StatusCode,
		"bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &adapter.Response{Code: resp.StatusCode, Body: data}, nil
}

// redactPath masks the access key segment of an API path, so keys
// never reach the logs: /api/<key>/lights -> /api/****/lights.
func redactPath(path string) string {
	parts := strings.Split(path, "/")
	// ["", "api", "<key>", ...]
	if len(parts) >= 3 && parts[1] == "api" && parts[2] != "" {
		parts[2] = "****"
	}
	return strings.Join(parts, "/")
}
