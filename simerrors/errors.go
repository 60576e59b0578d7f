// Package simerrors provides the structured error kinds used across the
// simulator. Errors preserve their chain via Unwrap so callers can use
// errors.Is/errors.As, the way the teacher's tool-error type does.
package simerrors

import (
	"errors"
	"fmt"
)

// Kind classifies a simulator error behaviorally, independent of its
// message text. See spec §7.
type Kind int

const (
	// Internal marks an assertion failure inside the engine itself.
	// Fatal: the loop stops with state FAILED.
	Internal Kind = iota
	// InvalidArgument marks a bad caller-supplied value (bad time value,
	// bad placeholder target, unknown folder, ...). Not fatal.
	InvalidArgument
	// NotFound marks a reference to an entity that does not exist
	// (event ID, app, tool, record). Not fatal.
	NotFound
	// PermissionDenied marks a tool invoked in a context where it is not
	// allowed. Not fatal.
	PermissionDenied
	// ValidationFailure marks an unmet milestone at deadline, a fired
	// minefield, an agent-action validator timeout, or a surviving
	// validation event at final check. Fatal.
	ValidationFailure
	// ToolFailureInjection marks the random fault-injection path tripping.
	// Indistinguishable from a genuine tool failure to the caller.
	ToolFailureInjection
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case NotFound:
		return "not_found"
	case PermissionDenied:
		return "permission_denied"
	case ValidationFailure:
		return "validation_failure"
	case ToolFailureInjection:
		return "tool_failure_injection"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Fatal reports whether an error of this kind must stop the event loop.
func (k Kind) Fatal() bool {
	return k == ValidationFailure || k == Internal
}

// Error is a structured simulator error: a Kind plus a message, optionally
// wrapping a cause so error chains survive through errors.Is/errors.As.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New constructs an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error of the given kind around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, with ok
// reporting whether one was found.
func KindOf(err error) (Kind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// Is reports whether err is a simulator error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
