// Package errors provides standardized error handling for the rclgo core.
// Every failure surfaced by the client carries a closed Kind so callers can
// handle it programmatically, plus enough structured detail (character index,
// prior state, attempted event) to act on it without parsing messages.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies errors surfaced by the client core
type Kind int

const (
	// KindInvalidHandle indicates use of a destroyed or uninitialized entity
	KindInvalidHandle Kind = iota
	// KindCapacityExceeded indicates a wait set kind capacity overflow
	KindCapacityExceeded
	// KindInvalidStateTransition indicates an illegal goal lifecycle event
	KindInvalidStateTransition
	// KindClockError indicates an unavailable time source or an illegal
	// set-time on a non-simulated clock
	KindClockError
	// KindValidationError indicates a malformed topic, namespace or node name
	KindValidationError
	// KindUnsupportedType indicates an unknown QoS policy or event value,
	// typically from a newer protocol revision
	KindUnsupportedType
	// KindTransport indicates an opaque failure from the transport layer,
	// forwarded unchanged
	KindTransport
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindInvalidHandle:
		return "invalid_handle"
	case KindCapacityExceeded:
		return "capacity_exceeded"
	case KindInvalidStateTransition:
		return "invalid_state_transition"
	case KindClockError:
		return "clock_error"
	case KindValidationError:
		return "validation_error"
	case KindUnsupportedType:
		return "unsupported_type"
	case KindTransport:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Error is the structured error type shared by all rclgo packages.
// Component and Operation identify where the failure originated; Err holds
// the optional nested cause.
type Error struct {
	Kind      Kind
	Component string
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Component != "" && e.Operation != "" {
		return fmt.Sprintf("%s: [%s.%s] %s", e.Kind, e.Component, e.Operation, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the nested cause, if any
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error by Kind.
// This enables errors.Is() comparisons against kind-only sentinel values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates a new Error with the given kind and context
func New(kind Kind, component, operation, message string) *Error {
	return &Error{
		Kind:      kind,
		Component: component,
		Operation: operation,
		Message:   message,
	}
}

// Newf creates a new Error with a formatted message
func Newf(kind Kind, component, operation, format string, args ...any) *Error {
	return New(kind, component, operation, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with a kind and context, preserving the
// cause for errors.Is / errors.As chains
func Wrap(kind Kind, err error, component, operation, message string) *Error {
	return &Error{
		Kind:      kind,
		Component: component,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// WrapTransport forwards a transport-layer failure unchanged.
// The cause is never interpreted, only carried.
func WrapTransport(err error, component, operation string) *Error {
	return Wrap(KindTransport, err, component, operation, "")
}

// KindOf returns the Kind of err if it is (or wraps) an *Error
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsInvalidHandle reports whether err is a destroyed-handle error
func IsInvalidHandle(err error) bool { return is(err, KindInvalidHandle) }

// IsCapacityExceeded reports whether err is a wait set overflow error
func IsCapacityExceeded(err error) bool { return is(err, KindCapacityExceeded) }

// IsInvalidStateTransition reports whether err is an illegal goal event error
func IsInvalidStateTransition(err error) bool { return is(err, KindInvalidStateTransition) }

// IsClockError reports whether err is a clock failure
func IsClockError(err error) bool { return is(err, KindClockError) }

// IsValidationError reports whether err is a malformed-name error
func IsValidationError(err error) bool { return is(err, KindValidationError) }

// IsUnsupportedType reports whether err is an unknown-value error
func IsUnsupportedType(err error) bool { return is(err, KindUnsupportedType) }

// IsTransport reports whether err is a forwarded transport failure
func IsTransport(err error) bool { return is(err, KindTransport) }

// ValidationError describes a malformed name. Malformed input is an
// expected, recoverable case: validators return it as a value, never panic.
type ValidationError struct {
	// Message is a human-readable description of the first violation
	Message string
	// Index is the position of the first invalid character in the input
	Index int
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return fmt.Sprintf("%s (at index %d)", v.Message, v.Index)
}

// WrapValidation converts a ValidationError into the shared *Error form,
// keeping the original (and its index) available through Unwrap
func WrapValidation(v *ValidationError, component, operation string) *Error {
	return Wrap(KindValidationError, v, component, operation, v.Message)
}

// TransitionError records a rejected goal lifecycle event: the state the
// goal was in and the event that was not legal from it.
type TransitionError struct {
	From  string
	Event string
}

// Error implements the error interface
func (t *TransitionError) Error() string {
	return fmt.Sprintf("event %s not valid from state %s", t.Event, t.From)
}

// NewTransition creates the standard invalid-state-transition error
func NewTransition(component, from, event string) *Error {
	cause := &TransitionError{From: from, Event: event}
	return Wrap(KindInvalidStateTransition, cause, component, "Transition", cause.Error())
}
