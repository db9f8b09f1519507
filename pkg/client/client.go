package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to a running telrun control API.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:8090/api",
		Timeout: 10 * time.Second,
	}
}

// New creates a control API client.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: config.BaseURL,
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// IsReachable checks whether a supervisor is answering on the base URL.
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("supervisor unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode != http.StatusNotFound
}

// Status fetches status for one service, or all services when name is empty.
func (c *Client) Status(ctx context.Context, name string) ([]ServiceStatus, error) {
	u := c.baseURL + "/status"
	if name != "" {
		u += "?name=" + url.QueryEscape(name)
	}
	body, err := c.do(ctx, http.MethodGet, u)
	if err != nil {
		return nil, err
	}
	if name != "" {
		var st ServiceStatus
		if err := json.Unmarshal(body, &st); err != nil {
			return nil, fmt.Errorf("decode status: %w", err)
		}
		return []ServiceStatus{st}, nil
	}
	var sts []ServiceStatus
	if err := json.Unmarshal(body, &sts); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return sts, nil
}

// Start launches the named service.
func (c *Client) Start(ctx context.Context, name string) (ServiceStatus, error) {
	return c.lifecycle(ctx, "start", name)
}

// Stop stops the named service gracefully.
func (c *Client) Stop(ctx context.Context, name string) (ServiceStatus, error) {
	return c.lifecycle(ctx, "stop", name)
}

// Restart stops then relaunches the named service.
func (c *Client) Restart(ctx context.Context, name string) (ServiceStatus, error) {
	return c.lifecycle(ctx, "restart", name)
}

// Events fetches the most recent journal events, optionally scoped to one
// service.
func (c *Client) Events(ctx context.Context, name string, limit int) ([]Event, error) {
	q := url.Values{}
	if name != "" {
		q.Set("name", name)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u := c.baseURL + "/events"
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	body, err := c.do(ctx, http.MethodGet, u)
	if err != nil {
		return nil, err
	}
	var evs []Event
	if err := json.Unmarshal(body, &evs); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return evs, nil
}

func (c *Client) lifecycle(ctx context.Context, op, name string) (ServiceStatus, error) {
	u := fmt.Sprintf("%s/%s?name=%s", c.baseURL, op, url.QueryEscape(name))
	body, err := c.do(ctx, http.MethodPost, u)
	if err != nil {
		return ServiceStatus{}, err
	}
	var st ServiceStatus
	if err := json.Unmarshal(body, &st); err != nil {
		return ServiceStatus{}, fmt.Errorf("decode %s response: %w", op, err)
	}
	return st, nil
}

func (c *Client) do(ctx context.Context, method, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, e.Error)
		}
		return nil, fmt.Errorf("server error (%d)", resp.StatusCode)
	}
	return body, nil
}
