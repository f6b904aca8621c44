// Package config loads and validates the netwarden configuration file.
// The configuration is read once at startup and handed to the rest of the
// daemon immutably; there is no reload path.
package config

import "time"

// Configuration defaults.
const (
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "json"
	DefaultListenAddr = ":19000"
	DefaultHealthPort = 8080

	DefaultHTTPTimeout = 30 * time.Second
	DefaultRuleTTL     = 60 * time.Second

	DefaultMQTTPort     = 1883
	DefaultMQTTClientID = "netwarden"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	Logging LoggingConfig
	Server  ServerConfig
	Pihole  PiholeConfig
	Unifi   UnifiConfig
	MQTT    MQTTConfig
	Blocks  []BlockConfig
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// ServerConfig holds the control API and health server addresses.
type ServerConfig struct {
	ListenAddr string
	HealthPort int
}

// PiholeConfig holds the replica pool settings.
type PiholeConfig struct {
	Replicas      []string
	Password      string
	Timeout       time.Duration
	TLSSkipVerify bool
}

// UnifiConfig holds the network controller settings.
type UnifiConfig struct {
	Controller    string
	APIKey        string
	Site          string
	RuleTTL       time.Duration
	Timeout       time.Duration
	TLSSkipVerify bool
}

// MQTTConfig holds the status announcer settings. Enabled defaults to true
// when a broker is configured.
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	Port     int
	ClientID string
}

// BlockConfig is one named block as configured. Exactly one of Domains,
// Rule, or MACs is meaningful, matching the category.
type BlockConfig struct {
	Name     string
	Category string // domain-block, domain-allow, firewall-rule, device-group
	Domains  []string
	Rule     string
	MACs     []string
}
