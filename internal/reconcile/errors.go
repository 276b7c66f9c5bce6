package reconcile

import (
	"errors"
	"fmt"
)

// ParseError reports a malformed desired state value. It is never retried.
type ParseError struct {
	Field string
	// Value is the offending input; empty for secret fields.
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("reconcile: invalid %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("reconcile: invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ControlPlaneError reports a failed interface operation.
type ControlPlaneError struct {
	Op  string
	Err error
}

func (e *ControlPlaneError) Error() string {
	return fmt.Sprintf("reconcile: %s: %v", e.Op, e.Err)
}

func (e *ControlPlaneError) Unwrap() error { return e.Err }

// IsTransient reports whether err may succeed on retry. Only control plane
// failures qualify; parse errors and cancellation do not.
func IsTransient(err error) bool {
	var cpErr *ControlPlaneError
	return errors.As(err, &cpErr)
}
