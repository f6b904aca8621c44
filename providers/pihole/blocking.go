package pihole

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// blockingResponse is the wire shape of /api/dns/blocking answers. The
// blocking field carries "enabled"/"disabled" while a timer is pending.
type blockingResponse struct {
	Blocking string   `json:"blocking"`
	Timer    *float64 `json:"timer"`
}

// BlockingStatus reports whether whole-network DNS blocking is active on the
// replica.
func (c *Client) BlockingStatus(ctx context.Context) (bool, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/dns/blocking", nil)
	if err != nil {
		return false, fmt.Errorf("querying blocking status: %w", err)
	}

	var result blockingResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return false, fmt.Errorf("parsing blocking status: %w", err)
	}

	return result.Blocking == "enabled", nil
}

// SetBlocking switches whole-network DNS blocking on or off. A non-zero timer
// asks the replica to revert automatically after that duration; the timer is
// only forwarded upstream, never scheduled locally. Returns the acknowledged
// state.
func (c *Client) SetBlocking(ctx context.Context, enabled bool, timer time.Duration) (bool, error) {
	payload := struct {
		Blocking bool     `json:"blocking"`
		Timer    *float64 `json:"timer"`
	}{Blocking: enabled}

	if timer > 0 {
		seconds := timer.Seconds()
		payload.Timer = &seconds
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/api/dns/blocking", payload)
	if err != nil {
		return false, fmt.Errorf("setting blocking status: %w", err)
	}

	var result blockingResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return false, fmt.Errorf("parsing blocking response: %w", err)
	}

	c.logger.Info("changed DNS blocking",
		slog.String("replica", c.baseURL),
		slog.Bool("enabled", enabled),
		slog.Duration("timer", timer))

	return result.Blocking == "enabled", nil
}
