package engine

import "fmt"

// Category tells which upstream surface a named block controls.
type Category string

const (
	// CategoryDomainBlock puts a set of domains on the replicas' deny list.
	CategoryDomainBlock Category = "domain-block"
	// CategoryDomainAllow puts a set of domains on the replicas' allow list.
	CategoryDomainAllow Category = "domain-allow"
	// CategoryFirewallRule flips the enabled flag of one controller firewall rule.
	CategoryFirewallRule Category = "firewall-rule"
	// CategoryDeviceGroup blocks or unblocks a group of clients by MAC.
	CategoryDeviceGroup Category = "device-group"
)

// GlobalTopic is the retained status topic for whole-network DNS blocking.
const GlobalTopic = "stat/dns_controller/master/status"

// BlockDefinition is one named, controllable thing. Exactly one of the
// category payloads is meaningful: Domains for the domain categories,
// RuleName for firewall rules, MACs for device groups.
type BlockDefinition struct {
	Name     string
	Category Category
	Domains  []string
	RuleName string
	MACs     []string
}

// Validate checks that the definition carries the payload its category needs.
func (d BlockDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("block has no name")
	}

	switch d.Category {
	case CategoryDomainBlock, CategoryDomainAllow:
		if len(d.Domains) == 0 {
			return fmt.Errorf("block %q: no domains configured", d.Name)
		}
	case CategoryFirewallRule:
		if d.RuleName == "" {
			return fmt.Errorf("block %q: no firewall rule name configured", d.Name)
		}
	case CategoryDeviceGroup:
		if len(d.MACs) == 0 {
			return fmt.Errorf("block %q: no device MACs configured", d.Name)
		}
	default:
		return fmt.Errorf("block %q: unknown category %q", d.Name, d.Category)
	}
	return nil
}

// Topic returns the retained MQTT status topic for this block, or "" for
// categories that are not announced.
func (d BlockDefinition) Topic() string {
	switch d.Category {
	case CategoryDomainBlock, CategoryDomainAllow:
		return "stat/dns_controller/media/" + d.Name + "/status"
	case CategoryFirewallRule:
		rule := d.RuleName
		if rule == "" {
			rule = d.Name
		}
		return "stat/router_controller/status/" + rule
	default:
		return ""
	}
}
