// Package status defines the logical on/off status shared by the control
// engine and the drift checker. Both sides must normalize raw values through
// the same function so that normalization disagreements never show up as
// false drift.
package status

import "strings"

// Status is the normalized logical state of a block.
//
// The three canonical values are True, False, and Unknown. Any other string
// is an opaque pass-through value: Normalize folds its case but does not
// coerce it, so category-specific sentinels survive a round trip.
type Status string

const (
	// True means the block is enforced.
	True Status = "true"

	// False means the block is not enforced.
	False Status = "false"

	// Unknown means no authoritative answer could be produced: the name is
	// not configured, or every target failed to answer. It is never silently
	// folded into False.
	Unknown Status = ""
)

// Sentinel is the opaque value reported for names that are not configured.
// It normalizes to "unknown", which stays distinct from the empty Unknown
// state.
const Sentinel = "Unknown"

// Normalize maps a raw status token to its logical Status. Matching is
// case-insensitive and whitespace-trimmed. Unrecognized tokens are returned
// case-folded but otherwise unchanged. Normalize is total and idempotent.
func Normalize(raw string) Status {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "true", "on", "1", "enabled":
		return True
	case "false", "off", "0", "disabled":
		return False
	case "":
		return Unknown
	default:
		return Status(v)
	}
}

// FromBool converts an upstream boolean answer to a Status.
func FromBool(b bool) Status {
	if b {
		return True
	}
	return False
}

// String returns the status token. Unknown renders as "unknown" so callers
// can embed it in payloads without special-casing the empty string.
func (s Status) String() string {
	if s == Unknown {
		return "unknown"
	}
	return string(s)
}
