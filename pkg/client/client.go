// Package client is a thin convenience wrapper for CLI tools to query a
// running fetch emulator. It returns the DTOs from pkg/api so callers get
// typed results instead of generic maps.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/build1/unityconfig/pkg/api"
)

// Client talks to an emulator at a base URL.
type Client struct {
	hc   *http.Client
	base string
}

// New returns a Client for addr, either a host:port or a full URL.
func New(addr string) *Client {
	base := strings.TrimRight(addr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{hc: &http.Client{Timeout: 10 * time.Second}, base: base}
}

// Status retrieves the emulator status: fetches served, uptime and version.
func (c *Client) Status(ctx context.Context) (api.StatusResponse, error) {
	var out api.StatusResponse
	err := c.get(ctx, "/v1/status", &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("emulator returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
