package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPClient wraps http.Client with timeout and optional bearer auth
type HTTPClient struct {
	client  *http.Client
	baseURL string
	token   string
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(config *Config) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: config.Timeout},
		baseURL: config.BaseURL,
		token:   config.Token,
	}
}

// do sends body as JSON and returns the status and raw reply.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, path string) (int, []byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (int, []byte, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// Put performs a PUT request with JSON body
func (c *HTTPClient) Put(ctx context.Context, path string, body any) (int, []byte, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

// expectStatus turns an unexpected status into an error carrying the reply.
func expectStatus(status int, body []byte, want ...int) error {
	for _, w := range want {
		if status == w {
			return nil
		}
	}
	return fmt.Errorf("unexpected status %d: %s", status, bytes.TrimSpace(body))
}
