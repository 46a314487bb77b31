package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/banshee-data/dragtree/internal/httputil"
	"github.com/banshee-data/dragtree/internal/race"
)

// Client drives a running controller over its HTTP API.
type Client struct {
	HTTP    httputil.HTTPClient
	BaseURL string
}

// NewClient targets the controller at baseURL, e.g. "http://localhost:8080".
func NewClient(hc httputil.HTTPClient, baseURL string) *Client {
	return &Client{HTTP: hc, BaseURL: strings.TrimSuffix(baseURL, "/")}
}

// Start asks the controller to start a race.
func (c *Client) Start(ctx context.Context) error {
	return c.command(ctx, "/api/start")
}

// Reset asks the controller to reset.
func (c *Client) Reset(ctx context.Context) error {
	return c.command(ctx, "/api/reset")
}

// Press simulates a player button on a 1-based lane.
func (c *Client) Press(ctx context.Context, laneID int) error {
	return c.command(ctx, fmt.Sprintf("/api/lanes/%d/button", laneID))
}

// Status fetches the current snapshot.
func (c *Client) Status(ctx context.Context) (race.Status, error) {
	var st race.Status
	body, err := c.do(ctx, http.MethodGet, "/api/status")
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(body, &st); err != nil {
		return st, fmt.Errorf("failed to decode status: %w", err)
	}
	return st, nil
}

func (c *Client) command(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodPost, path)
	return err
}

func (c *Client) do(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		var reply commandResponse
		if json.Unmarshal(body, &reply) == nil && reply.Message != "" {
			return nil, fmt.Errorf("%s %s: %s", method, path, reply.Message)
		}
		return nil, fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return body, nil
}
