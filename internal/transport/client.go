// Copyright 2025 The Outboard Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

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

	"github.com/outboardhq/outboard/internal/log"
	"github.com/outboardhq/outboard/internal/tracing"
	"github.com/outboardhq/outboard/pkg/errors"
	"github.com/outboardhq/outboard/pkg/httpclient"
)

// maxErrorBodyBytes caps how much of an error response body is carried in
// a TransportError. Bridge error payloads are small; anything larger is
// noise in logs and error chains.
const maxErrorBodyBytes = 2048

// Client performs JSON request/response exchanges with the bridge.
// It owns no protocol semantics: paths, payload shapes, and transaction
// headers are the caller's business. Retries are not: the bridge treats
// every POST as a state transition, so the underlying client is built
// without a retry layer.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom HTTP client. Test hooks and callers that
// need their own transport stack use this.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = client
		return nil
	}
}

// WithHTTPConfig builds the HTTP client from the given config.
func WithHTTPConfig(cfg httpclient.Config) Option {
	return func(c *Client) error {
		client, err := httpclient.New(cfg)
		if err != nil {
			return err
		}
		c.httpClient = client
		return nil
	}
}

// WithLogger sets the logger for request-level diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// New creates a client for the bridge at baseURL. The URL must be absolute
// http or https; a trailing slash is stripped so paths always join cleanly.
func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, &errors.ConfigError{Key: "bridge.url", Reason: "not a valid URL", Cause: err}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, &errors.ConfigError{Key: "bridge.url", Reason: fmt.Sprintf("unsupported scheme %q", parsed.Scheme)}
	}
	if parsed.Host == "" {
		return nil, &errors.ConfigError{Key: "bridge.url", Reason: "missing host"}
	}

	c := &Client{
		baseURL: strings.TrimRight(parsed.String(), "/"),
		logger:  slog.Default().With(log.String(log.ComponentKey, "transport")),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.httpClient == nil {
		client, err := httpclient.New(httpclient.DefaultConfig())
		if err != nil {
			return nil, err
		}
		c.httpClient = client
	}

	return c, nil
}

// BaseURL returns the normalized bridge URL this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request performs an HTTP exchange and returns the raw JSON response body.
// body may be nil for bodiless requests; header entries are copied onto the
// request (the caller owns protocol headers like the transaction ID). A
// TransportError is returned for connection failures, non-2xx statuses, and
// responses that are not valid JSON.
func (c *Client) Request(ctx context.Context, method, path string, body []byte, header http.Header) (json.RawMessage, error) {
	resp, raw, err := c.do(ctx, method, path, body, header, "application/json")
	if err != nil {
		return nil, err
	}

	if len(raw) > 0 && !json.Valid(raw) {
		return nil, &errors.TransportError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Cause:      fmt.Errorf("response is not valid JSON: %s", snippet(raw)),
		}
	}

	return json.RawMessage(raw), nil
}

// RequestText performs a bodiless exchange and returns the response body as
// text. Used for endpoints that answer in non-JSON formats, like
// Prometheus-encoded metrics.
func (c *Client) RequestText(ctx context.Context, method, path string) (string, error) {
	_, raw, err := c.do(ctx, method, path, nil, nil, "")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Close releases idle connections. Safe to call more than once.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, header http.Header, accept string) (*http.Response, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, nil, &errors.TransportError{Method: method, Path: path, Cause: err}
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	requestID := tracing.NewRequestID()
	req.Header.Set(tracing.HeaderRequestID, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, &errors.TransportError{Method: method, Path: path, Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &errors.TransportError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Cause:      fmt.Errorf("read response body: %w", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("bridge returned error status",
			log.String("method", method),
			log.String("path", path),
			log.Int("status", resp.StatusCode),
			log.String(log.RequestIDKey, requestID),
		)
		return nil, nil, &errors.TransportError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       snippet(raw),
		}
	}

	return resp, raw, nil
}

// snippet truncates an error body for inclusion in error messages.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyBytes {
		return s[:maxErrorBodyBytes] + "... (truncated)"
	}
	return s
}
