// Package remote is the thin transport to the habits backend, a
// PostgREST-style relational service. It exposes idempotent row
// operations (upsert and delete keyed by client-generated primary
// keys, full table selects scoped to a user) and a WebSocket
// subscription delivering incremental change events.
//
// The package performs no retry or queueing of its own; partial-failure
// policy lives in the sync layer. Field-name translation between the
// local camelCase representation and the remote snake_case columns is
// handled by the mapping tables in mapping.go.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Client talks to the remote habits service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *log.Logger
}

// Config holds client configuration.
type Config struct {
	// BaseURL is the service root, e.g. https://habits.example.com.
	BaseURL string
	// APIKey authenticates every request.
	APIKey string
	// HTTPClient overrides the default HTTP client (mainly for tests).
	HTTPClient *http.Client
	// Logger for transport activity. Nil means a stderr default.
	Logger *log.Logger
}

// New creates a client for the remote service.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpClient,
		logger:  logger,
	}
}

// Upsert inserts or overwrites a row keyed by its primary key. The
// operation is idempotent: repeating it with the same row is harmless,
// which is what makes at-least-once queue delivery safe.
func (c *Client) Upsert(ctx context.Context, table string, row map[string]any) error {
	body, err := json.Marshal([]map[string]any{row})
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/rest/v1/"+url.PathEscape(table), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build upsert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")
	c.authorize(req)

	return c.do(req, nil)
}

// DeleteByKey removes a row by primary key, scoped to the owning user.
// Deleting an absent row is a no-op, not an error.
func (c *Client) DeleteByKey(ctx context.Context, table, key, userID string) error {
	q := url.Values{}
	q.Set("id", "eq."+key)
	q.Set("user_id", "eq."+userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/rest/v1/"+url.PathEscape(table)+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build delete request: %w", err)
	}
	c.authorize(req)

	return c.do(req, nil)
}

// SelectAll fetches every row in the table owned by the user.
func (c *Client) SelectAll(ctx context.Context, table, userID string) ([]map[string]any, error) {
	q := url.Values{}
	q.Set("user_id", "eq."+userID)
	q.Set("select", "*")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/rest/v1/"+url.PathEscape(table)+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build select request: %w", err)
	}
	c.authorize(req)

	var rows []map[string]any
	if err := c.do(req, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Health probes the service. A nil return means the remote is
// reachable; used by the connectivity monitor.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}
	c.authorize(req)
	return c.do(req, nil)
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

// do executes the request and decodes a JSON body into out when out is
// non-nil. Any non-2xx status is an error; the sync layer treats all of
// them as transient and retries on the next trigger.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: remote returned %d: %s",
			req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}
