package health

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gitlab.bluewillows.net/root/netwarden/pkg/upstream"
)

// Pinger verifies connectivity to an upstream.
type Pinger interface {
	Ping(ctx context.Context) error
}

// UpstreamChecker adapts a Pinger into a readiness checker.
func UpstreamChecker(p Pinger) Checker {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// StateReporter exposes per-target connection states.
type StateReporter interface {
	States() map[string]upstream.State
}

// DegradedReplicas reports degraded when some replicas are failed but the
// pool as a whole still works. All replicas down is the Ping checker's
// problem, not a degradation.
func DegradedReplicas(r StateReporter) DegradedChecker {
	return func(_ context.Context) (bool, string) {
		states := r.States()
		var failed []string
		for addr, state := range states {
			if state == upstream.Failed {
				failed = append(failed, addr)
			}
		}
		if len(failed) == 0 || len(failed) == len(states) {
			return false, ""
		}
		sort.Strings(failed)
		return true, fmt.Sprintf("replicas unavailable: %s", strings.Join(failed, ", "))
	}
}
