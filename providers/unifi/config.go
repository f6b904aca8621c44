package unifi

import (
	"fmt"
	"strings"
	"time"
)

// Default controller settings.
const (
	// DefaultSite is the UniFi site name used when none is configured.
	DefaultSite = "default"

	// DefaultRuleTTL bounds the staleness of the cached firewall rule table.
	DefaultRuleTTL = 60 * time.Second
)

// Config holds the settings for the network controller client.
type Config struct {
	// Controller is the controller base URL, e.g. "https://192.168.1.1".
	Controller string

	// APIKey authenticates every request via the X-API-KEY header.
	APIKey string

	// Site is the UniFi site name. Defaults to "default".
	Site string

	// RuleTTL is the max age of the cached firewall rule table before a read
	// triggers a refresh. Defaults to 60 seconds.
	RuleTTL time.Duration

	// Timeout bounds every HTTP call to the controller.
	Timeout time.Duration

	// TLSSkipVerify skips certificate verification. Controllers commonly
	// serve self-signed certificates on the LAN.
	TLSSkipVerify bool
}

// Validate checks the configuration for structural problems. A missing API
// key is not a validation error: it surfaces as ErrNoCredentials on connect
// so that a partially configured control plane can still serve the other
// categories.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Controller) == "" {
		return fmt.Errorf("unifi: controller address is required")
	}
	return nil
}

func (c Config) site() string {
	if c.Site == "" {
		return DefaultSite
	}
	return c.Site
}

func (c Config) ruleTTL() time.Duration {
	if c.RuleTTL <= 0 {
		return DefaultRuleTTL
	}
	return c.RuleTTL
}
