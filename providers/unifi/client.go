// Package unifi implements the netwarden client for a UniFi network
// controller: firewall rule control backed by a TTL-bounded rule table
// snapshot, and client block/unblock commands keyed by MAC address.
package unifi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"gitlab.bluewillows.net/root/netwarden/pkg/httputil"
	"gitlab.bluewillows.net/root/netwarden/pkg/upstream"
)

// Client is the single session against the network controller. The API key
// is attached once per session; there is exactly one controller, so unlike
// the Pi-hole pool no fan-out happens here.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.Mutex
	state   upstream.State
	lastErr error

	rules *upstream.Cache[map[string]Rule]
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient creates a controller client. No network traffic happens until
// the first operation.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	c := &Client{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(cfg.Controller, "/"),
		logger:  slog.Default(),
		state:   upstream.Disconnected,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = httputil.NewClient(&httputil.ClientConfig{
			Timeout:       cfg.Timeout,
			TLSSkipVerify: cfg.TLSSkipVerify,
			Logger:        c.logger,
		})
	}

	c.rules = upstream.NewCache(c.fetchRules)

	return c
}

// Connect validates that a session can be established. The controller uses a
// static API key, so connecting only checks the credential is present and
// marks the session usable; the first real request verifies it. Connecting
// an already-connected client is a no-op success.
func (c *Client) Connect(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == upstream.Connected {
		return nil
	}

	if c.cfg.APIKey == "" {
		c.state = upstream.Failed
		c.lastErr = upstream.ErrNoCredentials
		return upstream.ErrNoCredentials
	}

	c.state = upstream.Connected
	c.lastErr = nil
	c.logger.Debug("controller session established", slog.String("controller", c.baseURL))
	return nil
}

// State returns the current session state.
func (c *Client) State() upstream.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ping verifies connectivity by fetching the firewall rule table.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	_, err := c.fetchRules(ctx)
	return err
}

// Shutdown resets the session to Disconnected. The API-key session holds no
// server-side resources, so there is nothing to release upstream.
func (c *Client) Shutdown() {
	c.mu.Lock()
	c.state = upstream.Disconnected
	c.lastErr = nil
	c.mu.Unlock()
	c.logger.Info("controller session shut down", slog.String("controller", c.baseURL))
}

// doRequest performs one authenticated request against the controller.
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("X-API-KEY", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", upstream.ErrConnectivity, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: controller rejected API key", upstream.ErrAuthentication)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("controller error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
