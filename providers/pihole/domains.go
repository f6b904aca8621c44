package pihole

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// errNotFound marks a 404 from the replica API. Internal: callers of the
// exported methods see it as "absent", not as an error.
var errNotFound = errors.New("not found")

// ListKind selects which Pi-hole domain list an operation targets.
type ListKind string

const (
	// ListDeny is the blocklist: domains on it stop resolving.
	ListDeny ListKind = "deny"

	// ListAllow is the allowlist: domains on it bypass blocking.
	ListAllow ListKind = "allow"
)

// DomainEntry is one exact-match entry on a deny or allow list.
type DomainEntry struct {
	Domain  string `json:"domain"`
	Enabled bool   `json:"enabled"`
}

// domainsResponse is the wire shape of /api/domains answers.
type domainsResponse struct {
	Domains []DomainEntry `json:"domains"`
}

// AddDomain puts an exact-match domain on the given list, enabled. Adding a
// domain that is already present is a no-op success.
func (c *Client) AddDomain(ctx context.Context, kind ListKind, domain string) error {
	payload := struct {
		Domain  string `json:"domain"`
		Enabled bool   `json:"enabled"`
	}{Domain: domain, Enabled: true}

	path := fmt.Sprintf("/api/domains/%s/exact", kind)
	if _, err := c.doRequest(ctx, http.MethodPost, path, payload); err != nil {
		return fmt.Errorf("adding domain %s to %s list: %w", domain, kind, err)
	}

	c.logger.Debug("added domain",
		slog.String("replica", c.baseURL),
		slog.String("list", string(kind)),
		slog.String("domain", domain))

	return nil
}

// RemoveDomain deletes an exact-match domain from the given list. Removing a
// domain that is not present is a no-op success.
func (c *Client) RemoveDomain(ctx context.Context, kind ListKind, domain string) error {
	path := fmt.Sprintf("/api/domains/%s/exact/%s", kind, url.PathEscape(domain))
	if _, err := c.doRequest(ctx, http.MethodDelete, path, nil); err != nil {
		if errors.Is(err, errNotFound) {
			c.logger.Debug("domain already absent",
				slog.String("replica", c.baseURL),
				slog.String("domain", domain))
			return nil
		}
		return fmt.Errorf("removing domain %s from %s list: %w", domain, kind, err)
	}

	c.logger.Debug("removed domain",
		slog.String("replica", c.baseURL),
		slog.String("list", string(kind)),
		slog.String("domain", domain))

	return nil
}

// DomainStatus reports whether an exact-match domain is present and enabled
// on the given list. Absent domains are (false, false, nil), not an error.
func (c *Client) DomainStatus(ctx context.Context, kind ListKind, domain string) (enabled, present bool, err error) {
	path := fmt.Sprintf("/api/domains/%s/exact/%s", kind, url.PathEscape(domain))
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("querying domain %s on %s list: %w", domain, kind, err)
	}

	var result domainsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return false, false, fmt.Errorf("parsing domain response: %w", err)
	}

	for _, d := range result.Domains {
		if d.Domain == domain {
			return d.Enabled, true, nil
		}
	}
	return false, false, nil
}
