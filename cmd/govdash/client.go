package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

type dashClient struct {
	baseURL string
	http    *http.Client
}

func newClient() *dashClient {
	return &dashClient{
		baseURL: serverURL,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// apiError is a non-2xx reply of the dashboard server.
type apiError struct {
	Status     int
	Message    string
	RetryAfter time.Duration
}

func (e *apiError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("server returned %d: %s (retry after %s)", e.Status, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// getJSON performs a GET request and decodes the response.
func (c *dashClient) getJSON(ctx context.Context, path string, v any) error {
	return c.do(ctx, http.MethodGet, path, nil, v)
}

// postJSON performs a POST request with an optional JSON body and decodes
// the response.
func (c *dashClient) postJSON(ctx context.Context, path string, body any, v any) error {
	return c.do(ctx, http.MethodPost, path, body, v)
}

func (c *dashClient) do(ctx context.Context, method, path string, body any, v any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctxOrBackground(ctx), method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp)
	}

	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("decode error: %w", err)
		}
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	e := &apiError{Status: resp.StatusCode, Message: string(bytes.TrimSpace(raw))}

	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
		e.Message = errResp.Error
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		e.RetryAfter = time.Duration(secs) * time.Second
	}
	return e
}
