// Package httprequest provides an action that calls an HTTP endpoint.
package httprequest

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

	"github.com/dukex/workgraph/pkg/protocol"
)

const (
	defaultTimeoutSeconds = 30
	maxResponseBytes      = 1 << 20
)

var (
	// ErrInvalidURL is returned when the url input is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid HTTP request url")
	// ErrHTTPServerError is returned when the server keeps answering with a 5xx status.
	ErrHTTPServerError = errors.New("server error during HTTP request")
)

// Action performs an HTTP request built from its inputs.
type Action struct {
	Client   *http.Client
	Attempts int
	Delay    time.Duration
}

// NewAction creates an Action from registry-level configuration:
// timeout_seconds, retry_attempts and retry_delay_ms.
func NewAction(config map[string]any) *Action {
	timeout := number(config["timeout_seconds"], defaultTimeoutSeconds)

	attempts := int(number(config["retry_attempts"], 1))
	if attempts < 1 {
		attempts = 1
	}

	return &Action{
		Client:   &http.Client{Timeout: time.Duration(timeout * float64(time.Second))},
		Attempts: attempts,
		Delay:    time.Duration(number(config["retry_delay_ms"], 0)) * time.Millisecond,
	}
}

func number(v any, fallback float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return fallback
	}
}

type request struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

func buildRequest(inputs map[string]any) (*request, error) {
	rawURL, _ := inputs["url"].(string)

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	method, _ := inputs["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	req := &request{
		Method:  strings.ToUpper(method),
		URL:     u.String(),
		Headers: map[string]string{},
	}

	if headers, ok := inputs["headers"].(map[string]any); ok {
		for k, v := range headers {
			req.Headers[k] = fmt.Sprint(v)
		}
	}

	switch body := inputs["body"].(type) {
	case nil:
	case string:
		req.Body = body
	default:
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}

		req.Body = string(b)

		if _, ok := req.Headers["Content-Type"]; !ok {
			req.Headers["Content-Type"] = "application/json"
		}
	}

	return req, nil
}

// Execute performs the request, retrying on transport errors and 5xx responses.
func (a *Action) Execute(ctx context.Context, inv protocol.Invocation, logger *slog.Logger) (any, error) {
	spec, err := buildRequest(inv.Inputs)
	if err != nil {
		return nil, err
	}

	logger = logger.With("action_type", "http_request", "method", spec.Method, "url", spec.URL)

	var lastErr error

	for attempt := 1; attempt <= a.Attempts; attempt++ {
		if attempt > 1 {
			logger.InfoContext(ctx, "retrying http request", "attempt", attempt, "max_attempts", a.Attempts)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.Delay):
			}
		}

		result, retry, err := a.do(ctx, spec)
		if err == nil {
			logger.InfoContext(ctx, "http request completed", "status_code", result["status_code"])

			return result, nil
		}

		lastErr = err
		if !retry {
			break
		}
	}

	return nil, fmt.Errorf("http request failed after %d attempt(s): %w", a.Attempts, lastErr)
}

func (a *Action) do(ctx context.Context, spec *request) (map[string]any, bool, error) {
	req, err := http.NewRequestWithContext(ctx, spec.Method, spec.URL, bytes.NewReader([]byte(spec.Body)))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create http request: %w", err)
	}

	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("%w: status %d", ErrHTTPServerError, resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read response body: %w", err)
	}

	var body any
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		body = string(bodyBytes)
	}

	headers := make(map[string]any, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"body":        body,
		"headers":     headers,
	}, false, nil
}

// Simulate returns the request that would be sent without sending it.
func (a *Action) Simulate(ctx context.Context, inv protocol.Invocation, logger *slog.Logger) (any, error) {
	spec, err := buildRequest(inv.Inputs)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "simulated http request", "method", spec.Method, "url", spec.URL)

	return map[string]any{
		"simulated": true,
		"request":   spec,
	}, nil
}
