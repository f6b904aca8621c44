package unifi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"gitlab.bluewillows.net/root/netwarden/internal/metrics"
	"gitlab.bluewillows.net/root/netwarden/pkg/upstream"
)

// Rule is one firewall rule as the controller reports it.
type Rule struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// fetchRules pulls the full firewall rule table and indexes it by rule name.
// This is the Cache fetch function: the snapshot is replaced wholesale, and
// the cache guarantees at most one fetch in flight per controller.
func (c *Client) fetchRules(ctx context.Context) (map[string]Rule, error) {
	path := fmt.Sprintf("/proxy/network/api/s/%s/rest/firewallrule", c.cfg.site())
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		metrics.RuleCacheRefreshTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetching firewall rules: %w", err)
	}

	var rules []Rule
	if err := json.Unmarshal(body, &rules); err != nil {
		metrics.RuleCacheRefreshTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("parsing firewall rules: %w", err)
	}

	byName := make(map[string]Rule, len(rules))
	for _, r := range rules {
		byName[r.Name] = r
	}

	metrics.RuleCacheRefreshTotal.WithLabelValues("success").Inc()
	c.logger.Debug("refreshed firewall rule table",
		slog.String("controller", c.baseURL),
		slog.Int("rules", len(byName)))

	return byName, nil
}

// CheckFreshness refreshes the rule table only when the snapshot is older
// than the configured TTL. Every rule read goes through here, which is what
// bounds staleness under real traffic.
func (c *Client) CheckFreshness(ctx context.Context) error {
	return c.rules.EnsureFresh(ctx, c.cfg.ruleTTL())
}

// RefreshRules forces a rule table refresh regardless of age.
func (c *Client) RefreshRules(ctx context.Context) error {
	return c.rules.Refresh(ctx)
}

// RuleStatus reports whether a named firewall rule is enabled.
// Unknown rule names yield ErrUnknownResource. A refresh failure with no
// prior snapshot yields ErrStaleCache so the read path can degrade to
// Unknown instead of failing.
func (c *Client) RuleStatus(ctx context.Context, name string) (bool, error) {
	refreshErr := c.CheckFreshness(ctx)

	table, ok := c.rules.Get()
	if !ok {
		if refreshErr != nil {
			return false, fmt.Errorf("%w: %v", upstream.ErrStaleCache, refreshErr)
		}
		return false, upstream.ErrStaleCache
	}

	rule, ok := table[name]
	if !ok {
		return false, fmt.Errorf("%w: firewall rule %q", upstream.ErrUnknownResource, name)
	}
	return rule.Enabled, nil
}

// SetRule updates the enabled flag of a named firewall rule. The rule id is
// resolved through the cached table; a write fails explicitly when the table
// cannot be established. After a successful update the table is refreshed so
// the next read observes the change.
func (c *Client) SetRule(ctx context.Context, name string, enabled bool) error {
	if err := c.CheckFreshness(ctx); err != nil {
		if _, ok := c.rules.Get(); !ok {
			return fmt.Errorf("%w: %v", upstream.ErrStaleCache, err)
		}
		// Stale table is still usable for id resolution.
	}

	table, ok := c.rules.Get()
	if !ok {
		return upstream.ErrStaleCache
	}

	rule, ok := table[name]
	if !ok {
		return fmt.Errorf("%w: firewall rule %q", upstream.ErrUnknownResource, name)
	}

	rule.Enabled = enabled
	path := fmt.Sprintf("/proxy/network/api/s/%s/rest/firewallrule/%s", c.cfg.site(), rule.ID)
	if _, err := c.doRequest(ctx, http.MethodPut, path, []Rule{rule}); err != nil {
		return fmt.Errorf("updating firewall rule %q: %w", name, err)
	}

	c.logger.Info("changed firewall rule",
		slog.String("rule", name),
		slog.Bool("enabled", enabled))

	if err := c.RefreshRules(ctx); err != nil {
		c.logger.Warn("rule table refresh after update failed",
			slog.String("error", err.Error()))
	}

	return nil
}

// RuleTable returns a copy of the cached rule table snapshot, if one exists.
func (c *Client) RuleTable() (map[string]Rule, bool) {
	table, ok := c.rules.Get()
	if !ok {
		return nil, false
	}
	out := make(map[string]Rule, len(table))
	for name, rule := range table {
		out[name] = rule
	}
	return out, true
}
