// Package upstream provides the shared primitives for talking to enforcement
// targets: a connection state model, best-effort multi-target fan-out, and a
// TTL-bounded snapshot cache with single-flight refresh.
package upstream

// State is the connection state of one target session.
type State int

const (
	// Disconnected means no session has been established yet, or the session
	// was torn down on shutdown.
	Disconnected State = iota

	// Connected means the session authenticated and is usable.
	Connected

	// Failed means the last connect attempt did not succeed.
	Failed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "disconnected"
	}
}
