package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gitlab.bluewillows.net/root/netwarden/internal/metrics"
	"gitlab.bluewillows.net/root/netwarden/internal/status"
	"gitlab.bluewillows.net/root/netwarden/pkg/upstream"
	"gitlab.bluewillows.net/root/netwarden/providers/pihole"
)

// DNSFilter is the replica-pool surface the engine drives for domain lists
// and whole-network blocking. Implemented by *pihole.Pool.
type DNSFilter interface {
	Addresses() []string
	AddDomains(ctx context.Context, kind pihole.ListKind, domains []string) []upstream.Result
	RemoveDomains(ctx context.Context, kind pihole.ListKind, domains []string) []upstream.Result
	AnyDomainEnabled(ctx context.Context, kind pihole.ListKind, domains []string) (bool, error)
	BlockingStatus(ctx context.Context) (bool, error)
	SetBlocking(ctx context.Context, enabled bool, timer time.Duration) (bool, []upstream.Result)
}

// Controller is the network-controller surface for firewall rules and client
// blocking. Implemented by *unifi.Client.
type Controller interface {
	RuleStatus(ctx context.Context, name string) (bool, error)
	SetRule(ctx context.Context, name string, enabled bool) error
	BlockDevice(ctx context.Context, mac string) error
	UnblockDevice(ctx context.Context, mac string) error
}

// Announcer publishes retained status messages after accepted state changes.
type Announcer interface {
	Announce(ctx context.Context, topic, payload string) error
}

// Engine resolves block names to their upstream surfaces and applies status
// changes. It holds no upstream state of its own except the last direction
// applied to each device group, which the controller offers no query for.
type Engine struct {
	defs   map[string]BlockDefinition
	names  []string
	filter DNSFilter
	ctrl   Controller

	announcer Announcer
	logger    *slog.Logger

	mu          sync.Mutex
	deviceState map[string]status.Status
}

// Option is a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithAnnouncer attaches a retained-status announcer. Announce failures are
// logged and never fail the state change that triggered them.
func WithAnnouncer(a Announcer) Option {
	return func(e *Engine) {
		e.announcer = a
	}
}

// New builds an engine over the given block definitions. Definitions must
// already be validated; duplicate names keep the last definition.
func New(defs []BlockDefinition, filter DNSFilter, ctrl Controller, opts ...Option) *Engine {
	e := &Engine{
		defs:        make(map[string]BlockDefinition, len(defs)),
		filter:      filter,
		ctrl:        ctrl,
		logger:      slog.Default(),
		deviceState: make(map[string]status.Status),
	}
	for _, d := range defs {
		if _, seen := e.defs[d.Name]; !seen {
			e.names = append(e.names, d.Name)
		}
		e.defs[d.Name] = d
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Definitions returns the configured blocks in configuration order.
func (e *Engine) Definitions() []BlockDefinition {
	defs := make([]BlockDefinition, 0, len(e.names))
	for _, name := range e.names {
		defs = append(defs, e.defs[name])
	}
	return defs
}

// Lookup returns the definition for a name, if configured.
func (e *Engine) Lookup(name string) (BlockDefinition, bool) {
	d, ok := e.defs[name]
	return d, ok
}

// LookupRule finds the firewall-rule block controlling the given upstream
// rule name, falling back to a match on the block name itself.
func (e *Engine) LookupRule(name string) (BlockDefinition, bool) {
	for _, n := range e.names {
		d := e.defs[n]
		if d.Category != CategoryFirewallRule {
			continue
		}
		if d.RuleName == name || d.Name == name {
			return d, true
		}
	}
	return BlockDefinition{}, false
}

// ParseDirection maps a requested direction string onto an enable flag.
// Unrecognized directions return ErrInvalidOperation.
func ParseDirection(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "enable", "enabled", "on", "true", "1":
		return true, nil
	case "disable", "disabled", "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("direction %q: %w", raw, upstream.ErrInvalidOperation)
	}
}

// ParseDeviceState maps a device-group state string onto an enable flag:
// "offline" blocks the group, "online" unblocks it.
func ParseDeviceState(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "offline":
		return true, nil
	case "online":
		return false, nil
	default:
		return false, fmt.Errorf("device state %q: %w", raw, upstream.ErrInvalidOperation)
	}
}

// Get answers the current status of a named block. Unconfigured names get the
// opaque sentinel, never an error. Upstream failure on a configured name
// degrades to Unknown instead of raising: a status read must keep answering
// even when no target does. Only structurally invalid requests return an
// error.
func (e *Engine) Get(ctx context.Context, name string) (status.Status, error) {
	def, ok := e.defs[name]
	if !ok {
		metrics.StatusQueriesTotal.WithLabelValues("none", "sentinel").Inc()
		return status.Status(status.Sentinel), nil
	}

	st, err := e.get(ctx, def)
	if err != nil {
		if errors.Is(err, upstream.ErrInvalidOperation) {
			metrics.StatusQueriesTotal.WithLabelValues(string(def.Category), "error").Inc()
			return st, err
		}
		metrics.StatusQueriesTotal.WithLabelValues(string(def.Category), "degraded").Inc()
		e.logger.Warn("status read degraded to unknown",
			slog.String("block", name),
			slog.String("error", err.Error()))
		return status.Unknown, nil
	}
	metrics.StatusQueriesTotal.WithLabelValues(string(def.Category), "ok").Inc()
	return st, nil
}

func (e *Engine) get(ctx context.Context, def BlockDefinition) (status.Status, error) {
	switch def.Category {
	case CategoryDomainBlock:
		return e.domainStatus(ctx, pihole.ListDeny, def.Domains)
	case CategoryDomainAllow:
		return e.domainStatus(ctx, pihole.ListAllow, def.Domains)
	case CategoryFirewallRule:
		enabled, err := e.ctrl.RuleStatus(ctx, def.RuleName)
		if err != nil {
			return status.Unknown, fmt.Errorf("rule %q: %w", def.RuleName, err)
		}
		return status.FromBool(enabled), nil
	case CategoryDeviceGroup:
		e.mu.Lock()
		defer e.mu.Unlock()
		if st, ok := e.deviceState[def.Name]; ok {
			return st, nil
		}
		return status.Unknown, nil
	default:
		return status.Unknown, fmt.Errorf("block %q: %w", def.Name, upstream.ErrInvalidOperation)
	}
}

func (e *Engine) domainStatus(ctx context.Context, kind pihole.ListKind, domains []string) (status.Status, error) {
	enabled, err := e.filter.AnyDomainEnabled(ctx, kind, domains)
	if err != nil {
		return status.Unknown, err
	}
	return status.FromBool(enabled), nil
}

// Enable applies the "on" direction to a named block.
func (e *Engine) Enable(ctx context.Context, name string) error {
	return e.apply(ctx, name, true)
}

// Disable applies the "off" direction to a named block.
func (e *Engine) Disable(ctx context.Context, name string) error {
	return e.apply(ctx, name, false)
}

// Apply routes a parsed direction to the block's upstream surface. Fan-out
// categories succeed when at least one target accepted the change; the
// overall error is non-nil only when every target failed.
func (e *Engine) Apply(ctx context.Context, name string, enable bool) error {
	return e.apply(ctx, name, enable)
}

func (e *Engine) apply(ctx context.Context, name string, enable bool) error {
	def, ok := e.defs[name]
	if !ok {
		return fmt.Errorf("block %q: %w", name, upstream.ErrUnknownResource)
	}

	var err error
	switch def.Category {
	case CategoryDomainBlock:
		err = e.applyDomains(ctx, def, pihole.ListDeny, enable)
	case CategoryDomainAllow:
		err = e.applyDomains(ctx, def, pihole.ListAllow, enable)
	case CategoryFirewallRule:
		err = e.applyRule(ctx, def, enable)
	case CategoryDeviceGroup:
		err = e.applyDevices(ctx, def, enable)
	default:
		err = fmt.Errorf("block %q: %w", def.Name, upstream.ErrInvalidOperation)
	}

	metrics.ApplyTotal.WithLabelValues(string(def.Category), directionLabel(enable), outcomeLabel(err)).Inc()
	if err != nil {
		return err
	}

	e.announce(ctx, def.Topic(), status.FromBool(enable))
	return nil
}

func (e *Engine) applyDomains(ctx context.Context, def BlockDefinition, kind pihole.ListKind, enable bool) error {
	var results []upstream.Result
	if enable {
		results = e.filter.AddDomains(ctx, kind, def.Domains)
	} else {
		results = e.filter.RemoveDomains(ctx, kind, def.Domains)
	}
	return e.settle(def.Name, results)
}

func (e *Engine) applyRule(ctx context.Context, def BlockDefinition, enable bool) error {
	if err := e.ctrl.SetRule(ctx, def.RuleName, enable); err != nil {
		return fmt.Errorf("rule %q: %w", def.RuleName, err)
	}
	return nil
}

func (e *Engine) applyDevices(ctx context.Context, def BlockDefinition, block bool) error {
	results := upstream.ApplyToAll(ctx, def.MACs, func(ctx context.Context, mac string) error {
		if block {
			return e.ctrl.BlockDevice(ctx, mac)
		}
		return e.ctrl.UnblockDevice(ctx, mac)
	})
	if err := e.settle(def.Name, results); err != nil {
		return err
	}

	e.mu.Lock()
	e.deviceState[def.Name] = status.FromBool(block)
	e.mu.Unlock()
	return nil
}

// settle logs and counts per-target failures. Partial success is success;
// only a clean sweep of failures becomes the caller's error.
func (e *Engine) settle(name string, results []upstream.Result) error {
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		metrics.ApplyTargetFailures.WithLabelValues(r.Target).Inc()
		e.logger.Warn("target failed to apply",
			slog.String("block", name),
			slog.String("target", r.Target),
			slog.String("error", r.Err.Error()))
	}

	if !upstream.AnySucceeded(results) {
		return fmt.Errorf("block %q: all targets failed: %w", name, upstream.FirstError(results))
	}
	return nil
}

// GlobalStatus answers whole-network DNS blocking. It degrades to Unknown
// when no replica answers, like every other status read.
func (e *Engine) GlobalStatus(ctx context.Context) (status.Status, error) {
	enabled, err := e.filter.BlockingStatus(ctx)
	if err != nil {
		metrics.StatusQueriesTotal.WithLabelValues("global", "degraded").Inc()
		e.logger.Warn("global status read degraded to unknown",
			slog.String("error", err.Error()))
		return status.Unknown, nil
	}
	metrics.StatusQueriesTotal.WithLabelValues("global", "ok").Inc()
	return status.FromBool(enabled), nil
}

// SetGlobal switches whole-network DNS blocking on every replica. A timer
// greater than zero asks the replicas to revert on their own after it
// elapses. Returns the status the successful replicas acknowledged.
func (e *Engine) SetGlobal(ctx context.Context, enable bool, timer time.Duration) (status.Status, error) {
	acked, results := e.filter.SetBlocking(ctx, enable, timer)
	err := e.settle("alldns", results)
	metrics.ApplyTotal.WithLabelValues("global", directionLabel(enable), outcomeLabel(err)).Inc()
	if err != nil {
		return status.Unknown, err
	}

	st := status.FromBool(acked)
	e.announce(ctx, GlobalTopic, st)
	return st, nil
}

func (e *Engine) announce(ctx context.Context, topic string, st status.Status) {
	if e.announcer == nil || topic == "" {
		return
	}
	if err := e.announcer.Announce(ctx, topic, st.String()); err != nil {
		e.logger.Warn("status announce failed",
			slog.String("topic", topic),
			slog.String("error", err.Error()))
	}
}

func directionLabel(enable bool) string {
	if enable {
		return "enable"
	}
	return "disable"
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
