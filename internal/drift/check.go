// Package drift audits the gap between declared state (retained MQTT
// payloads, what the home automations believe) and actual state (what the
// control API answers right now).
package drift

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"gitlab.bluewillows.net/root/netwarden/internal/engine"
	"gitlab.bluewillows.net/root/netwarden/internal/status"
)

// Outcome classifies one finished check.
type Outcome int

const (
	// Match means declared and actual state agree after normalization.
	Match Outcome = iota
	// Drifted means both sides answered but disagree.
	Drifted
	// Errored means at least one side could not be fetched.
	Errored
)

func (o Outcome) String() string {
	switch o {
	case Match:
		return "match"
	case Drifted:
		return "drift"
	case Errored:
		return "error"
	default:
		return "unknown"
	}
}

// Check pairs one retained topic with the API endpoint that answers the same
// question. Declared and Actual are filled in by the runner.
type Check struct {
	Name     string
	Topic    string
	Endpoint string

	Declared    status.Status
	DeclaredErr error
	Actual      status.Status
	ActualErr   error
}

// Outcome classifies the check. Both values pass through the shared
// normalizer first, so a retained "On" never drifts against an API "true".
func (c *Check) Outcome() Outcome {
	if c.DeclaredErr != nil || c.ActualErr != nil {
		return Errored
	}
	if c.Declared == c.Actual {
		return Match
	}
	return Drifted
}

// BuildChecks derives the check list from the configured blocks: one global
// DNS check plus one check per announced block. Device groups carry no
// retained topic and are skipped.
func BuildChecks(defs []engine.BlockDefinition) []Check {
	checks := []Check{{
		Name:     "DNS Master",
		Topic:    engine.GlobalTopic,
		Endpoint: "/alldns/",
	}}

	for _, def := range defs {
		topic := def.Topic()
		if topic == "" {
			continue
		}

		switch def.Category {
		case engine.CategoryDomainBlock:
			checks = append(checks, Check{
				Name:     "Block: " + def.Name,
				Topic:    topic,
				Endpoint: "/pihole/status/" + def.Name,
			})
		case engine.CategoryDomainAllow:
			checks = append(checks, Check{
				Name:     "Allow: " + def.Name,
				Topic:    topic,
				Endpoint: "/pihole/status/" + def.Name,
			})
		case engine.CategoryFirewallRule:
			rule := def.RuleName
			if rule == "" {
				rule = def.Name
			}
			checks = append(checks, Check{
				Name:     "Rule: " + rule,
				Topic:    topic,
				Endpoint: "/ubiquiti/status_rule/" + rule,
			})
		}
	}
	return checks
}

type extraCheck struct {
	Name     string `toml:"name"`
	Topic    string `toml:"topic"`
	Endpoint string `toml:"endpoint"`
}

type extrasFile struct {
	Checks []extraCheck `toml:"checks"`
}

// LoadExtras reads additional checks from a TOML file, for topics outside
// the block configuration (other daemons publishing to the same broker).
func LoadExtras(path string) ([]Check, error) {
	var file extrasFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("reading extra checks %s: %w", path, err)
	}

	checks := make([]Check, 0, len(file.Checks))
	for i, ec := range file.Checks {
		if ec.Topic == "" || ec.Endpoint == "" {
			return nil, fmt.Errorf("extra check %d: topic and endpoint are required", i)
		}
		name := ec.Name
		if name == "" {
			name = ec.Topic
		}
		checks = append(checks, Check{Name: name, Topic: ec.Topic, Endpoint: ec.Endpoint})
	}
	return checks, nil
}
