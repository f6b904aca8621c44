package upstream

import (
	"errors"
	"fmt"
)

// Common errors for upstream operations.
var (
	// ErrUnknownResource indicates a block name is not present in the
	// configuration. Never fatal: reads surface the opaque sentinel, writes
	// reject the request.
	ErrUnknownResource = errors.New("unknown resource")

	// ErrNoCredentials indicates credentials for a target are missing.
	ErrNoCredentials = errors.New("no credentials configured")

	// ErrAuthentication indicates a target rejected the supplied credentials.
	ErrAuthentication = errors.New("authentication failed")

	// ErrConnectivity indicates a target could not be reached.
	ErrConnectivity = errors.New("target unreachable")

	// ErrInvalidOperation indicates the caller requested a direction outside
	// the recognized set. Rejected before any upstream call.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrStaleCache indicates a refresh failed and no prior snapshot exists.
	ErrStaleCache = errors.New("cache refresh failed with no prior snapshot")
)

// TargetError wraps an error with the target it occurred against.
type TargetError struct {
	Target    string
	Operation string
	Err       error
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("target %s: %s: %v", e.Target, e.Operation, e.Err)
}

func (e *TargetError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with target context.
func WrapError(target, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &TargetError{
		Target:    target,
		Operation: operation,
		Err:       err,
	}
}

// IsUnknownResource returns true if the error indicates an unconfigured name.
func IsUnknownResource(err error) bool {
	return errors.Is(err, ErrUnknownResource)
}

// IsNoCredentials returns true if the error indicates missing credentials.
func IsNoCredentials(err error) bool {
	return errors.Is(err, ErrNoCredentials)
}

// IsAuthentication returns true if the error indicates rejected credentials.
func IsAuthentication(err error) bool {
	return errors.Is(err, ErrAuthentication)
}

// IsConnectivity returns true if the error indicates an unreachable target.
func IsConnectivity(err error) bool {
	return errors.Is(err, ErrConnectivity)
}

// IsInvalidOperation returns true if the error indicates an unrecognized
// direction or value.
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}
