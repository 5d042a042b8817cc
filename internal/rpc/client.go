// Package rpc is a JSON-RPC 1.1 over HTTP client for job services that speak
// the AppService protocol.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Caller abstracts JSON-RPC 1.1 calls for testability.
type Caller interface {
	Call(ctx context.Context, method string, params []any) (json.RawMessage, error)
}

// Error represents a JSON-RPC 1.1 error response.
type Error struct {
	Name    string `json:"name"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d (%s): %s", e.Code, e.Name, e.Message)
}

// HTTPError is returned when the service answers with a non-200 status.
type HTTPError struct {
	Method     string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("rpc call %s: HTTP %d: %s", e.Method, e.StatusCode, e.Body)
}

// Config holds the endpoint and credentials of a JSON-RPC service.
type Config struct {
	URL     string
	Token   string
	Timeout time.Duration
}

type request struct {
	ID      string `json:"id"`
	Method  string `json:"method"`
	Version string `json:"version"`
	Params  []any  `json:"params"`
}

type response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

// HTTPCaller implements Caller using net/http.
type HTTPCaller struct {
	url    string
	token  string
	client *http.Client
	logger *slog.Logger
	seq    atomic.Int64
}

// NewHTTPCaller creates a caller targeting cfg.URL.
func NewHTTPCaller(cfg Config, logger *slog.Logger) *HTTPCaller {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = time.Minute
	}
	return &HTTPCaller{
		url:    cfg.URL,
		token:  cfg.Token,
		client: &http.Client{Timeout: timeout},
		logger: logger.With("component", "rpc"),
	}
}

// Call sends a JSON-RPC 1.1 request and returns the result field.
func (c *HTTPCaller) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	id := fmt.Sprintf("remotetask-%d", c.seq.Add(1))

	body, err := json.Marshal(request{
		ID:      id,
		Method:  method,
		Version: "1.1",
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rpc request: %w", err)
	}

	c.logger.Debug("rpc call", "method", method, "id", id)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// JSON-RPC 1.1 services report faults with HTTP 500 and an error body.
	var rpcResp response
	if jsonErr := json.Unmarshal(respBody, &rpcResp); jsonErr == nil && rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Method: method, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal rpc response: %w", err)
	}

	return rpcResp.Result, nil
}
