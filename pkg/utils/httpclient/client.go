// Package httpclient provides a reusable HTTP client with retry logic and resource management.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/kart-io/sentinel-advisor/pkg/utils/json"
)

// maxErrorBody caps how much of a failed response body is kept in StatusError.
const maxErrorBody = 4 << 10

// StatusError is returned when the server answers with a status >= 400.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status code %d: %s", e.StatusCode, e.Body)
}

// Client is a wrapper around http.Client with additional functionality.
type Client struct {
	httpClient *http.Client
	maxRetries int
	userAgent  string
}

// NewClient creates a new HTTP client wrapper.
func NewClient(timeout time.Duration, maxRetries int) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: maxRetries,
		userAgent:  "sentinel-advisor/1.0",
	}
}

// HTTPClient exposes the underlying client for SDKs that take an *http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// DoRequest executes an HTTP request with retry logic.
// 5xx responses and transport errors are retried with linear backoff.
func (c *Client) DoRequest(req *http.Request) (*http.Response, error) {
	// 自动注入 W3C Trace Context 头
	c.injectTraceContext(req)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var lastErr error

	// Request bodies (provider payloads) are small; buffer them so retries can replay.
	var bodyGetter func() (io.ReadCloser, error)
	if req.Body != nil {
		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		_ = req.Body.Close()
		bodyGetter = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(bodyBytes)), nil
		}
	}

	for i := 0; i <= c.maxRetries; i++ {
		if bodyGetter != nil {
			var err error
			req.Body, err = bodyGetter()
			if err != nil {
				return nil, err
			}
		}

		resp, err := c.httpClient.Do(req)
		if err == nil {
			if resp.StatusCode < 500 {
				return resp, nil
			}
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			_ = resp.Body.Close()
			lastErr = &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		} else {
			lastErr = err
		}

		if i < c.maxRetries {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(time.Duration(i+1) * 500 * time.Millisecond):
			}
		}
	}
	return nil, lastErr
}

// Do makes Client usable by SDKs that accept an HTTP doer (go-openai).
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoRequest(req)
}

// DoJSON executes a JSON request, decodes the response, and ensures the body is closed.
func (c *Client) DoJSON(req *http.Request, v interface{}) error {
	resp, err := c.DoRequest(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// PostJSON marshals payload, sends it to url with the given headers and decodes the reply into v.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, payload, v interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, val := range headers {
		req.Header.Set(k, val)
	}
	return c.DoJSON(req, v)
}

// Get fetches url and returns the body and its Content-Type.
// Any status >= 400 is returned as a *StatusError.
func (c *Client) Get(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.DoRequest(req)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// injectTraceContext 将 W3C Trace Context 头注入到 HTTP 请求中。
// Context 中无活跃 Span 或未设置全局传播器时不做任何事。
func (c *Client) injectTraceContext(req *http.Request) {
	if req == nil || req.Context() == nil {
		return
	}

	propagator := otel.GetTextMapPropagator()
	if propagator == nil {
		return
	}

	propagator.Inject(req.Context(), propagation.HeaderCarrier(req.Header))
}
