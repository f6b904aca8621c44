package pihole

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the settings shared by every Pi-hole replica client.
type Config struct {
	// Replicas is the list of replica base URLs, e.g. "http://192.168.1.100".
	Replicas []string

	// Password is the Pi-hole web interface password, shared by all replicas.
	Password string

	// Timeout bounds every HTTP call to a replica.
	Timeout time.Duration

	// TLSSkipVerify skips certificate verification for replicas served over
	// HTTPS with self-signed certificates.
	TLSSkipVerify bool
}

// Validate checks the configuration for structural problems.
func (c Config) Validate() error {
	if len(c.Replicas) == 0 {
		return fmt.Errorf("pihole: at least one replica is required")
	}
	for _, r := range c.Replicas {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("pihole: empty replica address")
		}
	}
	return nil
}
