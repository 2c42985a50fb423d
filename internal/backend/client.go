// Package backend talks to the program's REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ruraldash/internal/record"
)

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client calls the REST backend.
type Client struct {
	BaseURL    string
	HealthPath string
	HTTP       *http.Client
}

// New creates a client with the given request timeout.
func New(baseURL, healthPath string, timeout time.Duration) *Client {
	if healthPath == "" {
		healthPath = "/api/health"
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HealthPath: healthPath,
		HTTP: &http.Client{
			Timeout: timeout,
		},
	}
}

// List fetches a collection. Object bodies become a one-record collection.
func (c *Client) List(ctx context.Context, endpoint string) (record.Collection, error) {
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var one record.Record
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return record.Collection{one}, nil
	}

	coll, err := record.Decode(trimmed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return coll, nil
}

// Create posts rec and returns the stored record as the backend sees it.
func (c *Client) Create(ctx context.Context, endpoint string, rec record.Record) (record.Record, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, err
	}

	var out record.Record
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("failed to decode response: empty body")
	}
	return out, nil
}

// Health checks if the backend is available.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, c.HealthPath, nil)
	if err != nil {
		return fmt.Errorf("backend unavailable: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
