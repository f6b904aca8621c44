package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError carries every configuration problem found in one pass, so
// a bad config file is fixed in one edit instead of one failure at a time.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration error: %s", e.Errors[0])
	}
	return fmt.Sprintf("configuration errors:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

var validCategories = map[string]bool{
	"domain-block":  true,
	"domain-allow":  true,
	"firewall-rule": true,
	"device-group":  true,
}

// validateConfig performs cross-field validation on the resolved config.
func validateConfig(cfg *Config) []string {
	var errs []string

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level: invalid value %q (must be debug, info, warn, or error)", cfg.Logging.Level))
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("logging.format: invalid value %q (must be json or text)", cfg.Logging.Format))
	}

	if cfg.Server.HealthPort < 1 || cfg.Server.HealthPort > 65535 {
		errs = append(errs, fmt.Sprintf("server.health_port: must be between 1 and 65535, got %d", cfg.Server.HealthPort))
	}

	needsPihole := false
	needsUnifi := false
	seen := make(map[string]bool, len(cfg.Blocks))
	for i, b := range cfg.Blocks {
		if b.Name == "" {
			errs = append(errs, fmt.Sprintf("blocks[%d]: name is required", i))
			continue
		}
		if seen[b.Name] {
			errs = append(errs, fmt.Sprintf("blocks[%d]: duplicate name %q", i, b.Name))
		}
		seen[b.Name] = true

		if !validCategories[b.Category] {
			errs = append(errs, fmt.Sprintf("block %q: invalid category %q", b.Name, b.Category))
			continue
		}

		switch b.Category {
		case "domain-block", "domain-allow":
			needsPihole = true
			if len(b.Domains) == 0 {
				errs = append(errs, fmt.Sprintf("block %q: domains are required", b.Name))
			}
		case "firewall-rule":
			needsUnifi = true
			if b.Rule == "" {
				errs = append(errs, fmt.Sprintf("block %q: rule is required", b.Name))
			}
		case "device-group":
			needsUnifi = true
			if len(b.MACs) == 0 {
				errs = append(errs, fmt.Sprintf("block %q: macs are required", b.Name))
			}
			for _, mac := range b.MACs {
				if _, err := net.ParseMAC(mac); err != nil {
					errs = append(errs, fmt.Sprintf("block %q: invalid MAC %q", b.Name, mac))
				}
			}
		}
	}

	// Global blocking always needs the replicas, so an empty pool is an
	// error regardless of the block list.
	if len(cfg.Pihole.Replicas) == 0 {
		errs = append(errs, "pihole.replicas: at least one replica is required")
	}
	if needsPihole && cfg.Pihole.Password == "" {
		errs = append(errs, "pihole.password: required (set NETWARDEN_PIHOLE_PASSWORD or pihole.password)")
	}
	if needsUnifi && cfg.Unifi.Controller == "" {
		errs = append(errs, "unifi.controller: required by firewall-rule and device-group blocks")
	}

	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker: required when mqtt is enabled")
	}

	return errs
}
