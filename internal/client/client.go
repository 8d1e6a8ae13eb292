package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coffersTech/logwindow/internal/engine"
	"github.com/coffersTech/logwindow/internal/model"
)

// Client talks to one logwindow management API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New creates a Client for baseURL, e.g. "http://127.0.0.1:8088".
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Logs fetches up to count buffered events. A non-positive count fetches
// everything.
func (c *Client) Logs(ctx context.Context, count int) (model.LogResults, error) {
	path := "/api/logs"
	if count > 0 {
		path += "?count=" + strconv.Itoa(count)
	}
	var res model.LogResults
	err := c.do(ctx, http.MethodGet, path, nil, &res)
	return res, err
}

// Query runs filter against the server. A nil filter matches everything.
func (c *Client) Query(ctx context.Context, filter *model.LogFilter) (model.LogResults, error) {
	if filter == nil {
		filter = &model.LogFilter{}
	}
	body, err := json.Marshal(filter)
	if err != nil {
		return model.LogResults{}, fmt.Errorf("encode filter: %w", err)
	}
	var res model.LogResults
	err = c.do(ctx, http.MethodPost, "/api/logs/query", body, &res)
	return res, err
}

// QueryText runs a filterql expression against the server.
func (c *Client) QueryText(ctx context.Context, q string) (model.LogResults, error) {
	var res model.LogResults
	err := c.do(ctx, http.MethodGet, "/api/logs/query?q="+url.QueryEscape(q), nil, &res)
	return res, err
}

// Stats fetches the server's buffer statistics.
func (c *Client) Stats(ctx context.Context) (engine.Stats, error) {
	var stats engine.Stats
	err := c.do(ctx, http.MethodGet, "/api/stats", nil, &stats)
	return stats, err
}

// Reset clears the server's buffer.
func (c *Client) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/reset", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}
