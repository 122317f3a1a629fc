/**
 * @description
 * This package provides a client for interacting with the Bridge payouts API.
 * It encapsulates authenticated, timed HTTP calls to Bridge's endpoints and turns every
 * transport outcome (timeout, network failure, non-2xx) into a single *APIError type.
 *
 * Key features:
 * - Always sends `Accept: application/json` and the configured API-key header.
 * - Applies a per-call timeout through context cancellation; a timeout surfaces as a
 *   504-class APIError with message "request timed out".
 * - Extracts a readable message from the provider's error shapes.
 * - No retry loop: every call is issued exactly once. Retrying is a caller concern.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, io, net/http, time: Standard Go libraries.
 */
package bridgeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultAPIKeyHeader = "Api-Key"
	maxResponseBytes    = 1 << 20
)

// APIError is the uniform failure type for every provider call.
// StatusCode is 0 when the request never produced an HTTP response.
type APIError struct {
	StatusCode int
	Message    string
	Timeout    bool
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("bridge api error: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("bridge api error: %s", e.Message)
}

// Observer receives the outcome of every provider call, for metrics.
type Observer func(operation string, statusCode int, elapsed time.Duration)

// Client is a client for the Bridge API.
type Client struct {
	baseURL      string
	apiKey       string
	apiKeyHeader string
	timeout      time.Duration
	httpClient   *http.Client
	observe      Observer
}

// NewClient creates a new Bridge API client. A non-positive timeout uses 15s.
func NewClient(baseURL, apiKey, apiKeyHeader string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if strings.TrimSpace(apiKeyHeader) == "" {
		apiKeyHeader = defaultAPIKeyHeader
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		apiKeyHeader: apiKeyHeader,
		timeout:      timeout,
		// Timeouts are enforced per call through the request context.
		httpClient: &http.Client{},
	}
}

// SetObserver installs a callback invoked after every call.
func (c *Client) SetObserver(observe Observer) {
	c.observe = observe
}

// Call describes a single provider request.
type Call struct {
	Operation string
	Method    string
	Path      string
	Body      interface{}
	Headers   map[string]string
	// Timeout overrides the client default when positive.
	Timeout time.Duration
}

// Do issues the call and decodes the JSON response body. A body that is not JSON
// decodes to its raw text.
func (c *Client) Do(ctx context.Context, call Call) (interface{}, error) {
	raw, err := c.do(ctx, call)
	if err != nil {
		return nil, err
	}
	return decodeBody(raw), nil
}

// doInto issues the call and unmarshals a successful response into target.
func (c *Client) doInto(ctx context.Context, call Call, target interface{}) error {
	raw, err := c.do(ctx, call)
	if err != nil {
		return err
	}
	if target == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return &APIError{StatusCode: http.StatusBadGateway, Message: fmt.Sprintf("failed to decode %s response: %v", call.Operation, err)}
	}
	return nil
}

func (c *Client) do(ctx context.Context, call Call) ([]byte, error) {
	timeout := c.timeout
	if call.Timeout > 0 {
		timeout = call.Timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if call.Body != nil {
		jsonBody, err := json.Marshal(call.Body)
		if err != nil {
			return nil, &APIError{Message: fmt.Sprintf("failed to marshal request body: %v", err)}
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	method := call.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+call.Path, reqBody)
	if err != nil {
		return nil, &APIError{Message: fmt.Sprintf("failed to create http request: %v", err)}
	}

	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(c.apiKeyHeader, c.apiKey)
	for key, value := range call.Headers {
		req.Header.Set(key, value)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiErr := classifyTransportError(reqCtx, ctx, err)
		c.record(call.Operation, apiErr.StatusCode, started)
		log.Printf("level=warn component=bridge_client op=%s status=%d msg=%q", call.Operation, apiErr.StatusCode, apiErr.Message)
		return nil, apiErr
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		apiErr := classifyTransportError(reqCtx, ctx, err)
		c.record(call.Operation, apiErr.StatusCode, started)
		return nil, apiErr
	}
	c.record(call.Operation, resp.StatusCode, started)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := extractErrorMessage(resp.StatusCode, bodyBytes)
		log.Printf("level=warn component=bridge_client op=%s status=%d msg=%q", call.Operation, resp.StatusCode, message)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: message}
	}

	return bodyBytes, nil
}

func (c *Client) record(operation string, statusCode int, started time.Time) {
	if c.observe != nil {
		c.observe(operation, statusCode, time.Since(started))
	}
}

// classifyTransportError separates our own deadline from caller cancellation and
// plain network failures.
func classifyTransportError(reqCtx, parent context.Context, err error) *APIError {
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && !errors.Is(parent.Err(), context.Canceled) {
		return &APIError{StatusCode: http.StatusGatewayTimeout, Message: "request timed out", Timeout: true}
	}
	if errors.Is(parent.Err(), context.Canceled) {
		return &APIError{Message: "request canceled"}
	}
	return &APIError{Message: fmt.Sprintf("request failed: %v", err)}
}

func decodeBody(raw []byte) interface{} {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	var decoded interface{}
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return string(trimmed)
	}
	return decoded
}

// extractErrorMessage understands {"message": ...}, {"error": "..."} and
// {"error": {"message": ...}}, falling back to the raw text or a generic message.
func extractErrorMessage(status int, raw []byte) string {
	switch body := decodeBody(raw).(type) {
	case map[string]interface{}:
		if msg, ok := body["message"].(string); ok && strings.TrimSpace(msg) != "" {
			return strings.TrimSpace(msg)
		}
		switch errValue := body["error"].(type) {
		case string:
			if strings.TrimSpace(errValue) != "" {
				return strings.TrimSpace(errValue)
			}
		case map[string]interface{}:
			if msg, ok := errValue["message"].(string); ok && strings.TrimSpace(msg) != "" {
				return strings.TrimSpace(msg)
			}
		}
	case string:
		if body != "" {
			return body
		}
	}
	return fmt.Sprintf("request failed (%d)", status)
}
