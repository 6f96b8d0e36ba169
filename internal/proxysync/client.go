// Package proxysync implements the Reverse-Proxy Route Synchronizer
// against a Caddy-style admin API: one HTTP route object per tenant,
// keyed by an `@id` so upsert is a PATCH by id (falling back to appending
// the route when it does not exist yet) and removal is a single idempotent
// DELETE. Caddy's admin API applies a config object
// atomically — the proxy either runs the new route or keeps the old one,
// never a partial state, which is the guarantee spec.md §4.7 requires.
package proxysync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const requestTimeout = 10 * time.Second

// Client talks to a Caddy admin API endpoint (default localhost:2019).
type Client struct {
	adminAddr    string
	domainSuffix string
	http         *http.Client
}

func New(adminAddr, domainSuffix string) *Client {
	return &Client{
		adminAddr:    adminAddr,
		domainSuffix: domainSuffix,
		http:         &http.Client{Timeout: requestTimeout},
	}
}

func (c *Client) routeID(slug string) string {
	return "tenant-" + slug
}

// caddyRoute is the minimal subset of Caddy's route JSON shape needed to
// reverse-proxy a host match to a single upstream.
type caddyRoute struct {
	ID     string          `json:"@id"`
	Match  []caddyMatch    `json:"match"`
	Handle []caddyHandler  `json:"handle"`
}

type caddyMatch struct {
	Host []string `json:"host"`
}

type caddyHandler struct {
	Handler   string         `json:"handler"`
	Upstreams []caddyUpstream `json:"upstreams"`
}

type caddyUpstream struct {
	Dial string `json:"dial"`
}

// Upsert registers (or replaces) the route for slug.<domain_suffix> →
// 127.0.0.1:<port>. It PATCHes the route's @id path, which replaces the
// object if present; a 404 means the route does not exist yet, and the
// route is then appended with appendRoute.
func (c *Client) Upsert(ctx context.Context, slug string, port int32) error {
	route := caddyRoute{
		ID: c.routeID(slug),
		Match: []caddyMatch{{
			Host: []string{fmt.Sprintf("%s.%s", slug, c.domainSuffix)},
		}},
		Handle: []caddyHandler{{
			Handler:   "reverse_proxy",
			Upstreams: []caddyUpstream{{Dial: fmt.Sprintf("127.0.0.1:%d", port)}},
		}},
	}

	body, err := json.Marshal(route)
	if err != nil {
		return fmt.Errorf("proxysync: marshaling route: %w", err)
	}

	url := fmt.Sprintf("http://%s/id/%s", c.adminAddr, c.routeID(slug))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("proxysync: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("proxysync: reaching admin api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return c.appendRoute(ctx, body)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("proxysync: admin api returned %d upserting %s", resp.StatusCode, slug)
	}
	return nil
}

// appendRoute handles first-registration: the route doesn't exist yet, so
// it's appended to the server's route list instead of patched in place.
func (c *Client) appendRoute(ctx context.Context, body []byte) error {
	url := fmt.Sprintf("http://%s/config/apps/http/servers/tenants/routes/...", c.adminAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("proxysync: building append request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("proxysync: reaching admin api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("proxysync: admin api returned %d appending route", resp.StatusCode)
	}
	return nil
}

// Remove deletes the route by @id. A 404 means it's already gone, which is
// success under the idempotence contract.
func (c *Client) Remove(ctx context.Context, slug string) error {
	url := fmt.Sprintf("http://%s/id/%s", c.adminAddr, c.routeID(slug))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("proxysync: building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("proxysync: reaching admin api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("proxysync: admin api returned %d removing %s", resp.StatusCode, slug)
	}
	return nil
}
