package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config with YAML-friendly types: durations as strings,
// booleans as pointers so unset stays distinguishable from false.
type fileConfig struct {
	Logging *fileLoggingConfig `yaml:"logging,omitempty"`
	Server  *fileServerConfig  `yaml:"server,omitempty"`
	Pihole  *filePiholeConfig  `yaml:"pihole,omitempty"`
	Unifi   *fileUnifiConfig   `yaml:"unifi,omitempty"`
	MQTT    *fileMQTTConfig    `yaml:"mqtt,omitempty"`
	Blocks  []fileBlockConfig  `yaml:"blocks,omitempty"`
}

type fileLoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

type fileServerConfig struct {
	Listen     string `yaml:"listen,omitempty"`
	HealthPort int    `yaml:"health_port,omitempty"`
}

type filePiholeConfig struct {
	Replicas      []string `yaml:"replicas"`
	Password      string   `yaml:"password,omitempty"`
	Timeout       string   `yaml:"timeout,omitempty"`
	TLSSkipVerify *bool    `yaml:"tls_skip_verify,omitempty"`
}

type fileUnifiConfig struct {
	Controller    string `yaml:"controller"`
	APIKey        string `yaml:"api_key,omitempty"`
	Site          string `yaml:"site,omitempty"`
	RuleTTL       string `yaml:"rule_ttl,omitempty"`
	Timeout       string `yaml:"timeout,omitempty"`
	TLSSkipVerify *bool  `yaml:"tls_skip_verify,omitempty"`
}

type fileMQTTConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Broker   string `yaml:"broker,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	ClientID string `yaml:"client_id,omitempty"`
}

type fileBlockConfig struct {
	Name     string   `yaml:"name"`
	Category string   `yaml:"category"`
	Domains  []string `yaml:"domains,omitempty"`
	Rule     string   `yaml:"rule,omitempty"`
	MACs     []string `yaml:"macs,omitempty"`
}

// envVarPattern matches ${VAR} or ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnvVars replaces ${VAR} patterns with environment variable
// values, with ${VAR:-default} fallback syntax.
func InterpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		if value := os.Getenv(groups[1]); value != "" {
			return value
		}
		if len(groups) >= 3 {
			return groups[2]
		}
		return ""
	})
}

// Load reads, interpolates, resolves, and validates the configuration file.
// All validation errors are collected before failing.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var file fileConfig
	if err := yaml.Unmarshal([]byte(InterpolateEnvVars(string(raw))), &file); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg, errs := file.resolve()
	errs = append(errs, validateConfig(cfg)...)
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return cfg, nil
}

// resolve converts the file representation into the runtime Config,
// applying defaults and the secret environment overrides.
func (f *fileConfig) resolve() (*Config, []string) {
	var errs []string
	cfg := &Config{
		Logging: LoggingConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Server:  ServerConfig{ListenAddr: DefaultListenAddr, HealthPort: DefaultHealthPort},
		Pihole:  PiholeConfig{Timeout: DefaultHTTPTimeout},
		Unifi:   UnifiConfig{RuleTTL: DefaultRuleTTL, Timeout: DefaultHTTPTimeout},
		MQTT:    MQTTConfig{Port: DefaultMQTTPort, ClientID: DefaultMQTTClientID},
	}

	if f.Logging != nil {
		if f.Logging.Level != "" {
			cfg.Logging.Level = f.Logging.Level
		}
		if f.Logging.Format != "" {
			cfg.Logging.Format = f.Logging.Format
		}
	}

	if f.Server != nil {
		if f.Server.Listen != "" {
			cfg.Server.ListenAddr = f.Server.Listen
		}
		if f.Server.HealthPort != 0 {
			cfg.Server.HealthPort = f.Server.HealthPort
		}
	}

	if f.Pihole != nil {
		cfg.Pihole.Replicas = f.Pihole.Replicas
		cfg.Pihole.Password = f.Pihole.Password
		if f.Pihole.TLSSkipVerify != nil {
			cfg.Pihole.TLSSkipVerify = *f.Pihole.TLSSkipVerify
		}
		if d, ok := parseDuration("pihole.timeout", f.Pihole.Timeout, &errs); ok {
			cfg.Pihole.Timeout = d
		}
	}
	if v := getEnvOrFile("NETWARDEN_PIHOLE_PASSWORD"); v != "" {
		cfg.Pihole.Password = v
	}

	if f.Unifi != nil {
		cfg.Unifi.Controller = f.Unifi.Controller
		cfg.Unifi.APIKey = f.Unifi.APIKey
		cfg.Unifi.Site = f.Unifi.Site
		if f.Unifi.TLSSkipVerify != nil {
			cfg.Unifi.TLSSkipVerify = *f.Unifi.TLSSkipVerify
		}
		if d, ok := parseDuration("unifi.rule_ttl", f.Unifi.RuleTTL, &errs); ok {
			cfg.Unifi.RuleTTL = d
		}
		if d, ok := parseDuration("unifi.timeout", f.Unifi.Timeout, &errs); ok {
			cfg.Unifi.Timeout = d
		}
	}
	if v := getEnvOrFile("NETWARDEN_UNIFI_API_KEY"); v != "" {
		cfg.Unifi.APIKey = v
	}

	if f.MQTT != nil {
		cfg.MQTT.Broker = f.MQTT.Broker
		if f.MQTT.Port != 0 {
			cfg.MQTT.Port = f.MQTT.Port
		}
		if f.MQTT.ClientID != "" {
			cfg.MQTT.ClientID = f.MQTT.ClientID
		}
		if f.MQTT.Enabled != nil {
			cfg.MQTT.Enabled = *f.MQTT.Enabled
		} else {
			cfg.MQTT.Enabled = f.MQTT.Broker != ""
		}
	}

	for _, b := range f.Blocks {
		cfg.Blocks = append(cfg.Blocks, BlockConfig{
			Name:     b.Name,
			Category: b.Category,
			Domains:  b.Domains,
			Rule:     b.Rule,
			MACs:     b.MACs,
		})
	}

	return cfg, errs
}

func parseDuration(field, raw string, errs *[]string) (time.Duration, bool) {
	if raw == "" {
		return 0, false
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q (use format like 30s, 5m)", field, raw))
		return 0, false
	}
	if d <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %q", field, raw))
		return 0, false
	}
	return d, true
}
