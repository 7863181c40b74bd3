package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindInvalidHandle, "invalid_handle"},
		{KindCapacityExceeded, "capacity_exceeded"},
		{KindInvalidStateTransition, "invalid_state_transition"},
		{KindClockError, "clock_error"},
		{KindValidationError, "validation_error"},
		{KindUnsupportedType, "unsupported_type"},
		{KindTransport, "transport_error"},
		{Kind(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			if got := test.kind.String(); got != test.expected {
				t.Errorf("expected %s, got %s", test.expected, got)
			}
		})
	}
}

func TestError_Error(t *testing.T) {
	err := New(KindInvalidHandle, "Subscription", "Take", "subscription already closed")
	want := "invalid_handle: [Subscription.Take] subscription already closed"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}

	bare := New(KindClockError, "", "", "time source unavailable")
	if bare.Error() != "clock_error: time source unavailable" {
		t.Errorf("unexpected bare message: %q", bare.Error())
	}
}

func TestError_MessageFallsBackToCause(t *testing.T) {
	cause := fmt.Errorf("nats: connection refused")
	err := WrapTransport(cause, "Transport", "Publish")
	if got := err.Error(); got != "transport_error: [Transport.Publish] nats: connection refused" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	err := Wrap(KindTransport, cause, "Transport", "Request", "request failed")

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to match the wrapped cause")
	}
	if errors.Unwrap(err) != cause {
		t.Error("expected Unwrap to return the cause")
	}
}

func TestIs_MatchesByKind(t *testing.T) {
	a := New(KindCapacityExceeded, "WaitSet", "AddSubscription", "no room")
	b := New(KindCapacityExceeded, "WaitSet", "AddTimer", "no room either")
	c := New(KindInvalidHandle, "WaitSet", "AddTimer", "closed")

	if !errors.Is(a, b) {
		t.Error("errors with the same kind should match")
	}
	if errors.Is(a, c) {
		t.Error("errors with different kinds should not match")
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"invalid handle", New(KindInvalidHandle, "c", "o", "m"), IsInvalidHandle, true},
		{"capacity", New(KindCapacityExceeded, "c", "o", "m"), IsCapacityExceeded, true},
		{"transition", NewTransition("GoalHandle", "ACCEPTED", "SUCCEED"), IsInvalidStateTransition, true},
		{"clock", New(KindClockError, "c", "o", "m"), IsClockError, true},
		{"validation", WrapValidation(&ValidationError{Message: "empty", Index: 0}, "c", "o"), IsValidationError, true},
		{"unsupported", New(KindUnsupportedType, "c", "o", "m"), IsUnsupportedType, true},
		{"transport", WrapTransport(fmt.Errorf("x"), "c", "o"), IsTransport, true},
		{"wrapped deeper", fmt.Errorf("outer: %w", New(KindClockError, "c", "o", "m")), IsClockError, true},
		{"plain error", fmt.Errorf("plain"), IsInvalidHandle, false},
		{"nil", nil, IsTransport, false},
		{"kind mismatch", New(KindClockError, "c", "o", "m"), IsTransport, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.check(test.err); got != test.want {
				t.Errorf("expected %v, got %v for %v", test.want, got, test.err)
			}
		})
	}
}

func TestValidationError_Detail(t *testing.T) {
	ve := &ValidationError{Message: "topic name must not contain characters other than alphanumerics", Index: 7}
	wrapped := WrapValidation(ve, "Names", "ValidateTopicName")

	var out *ValidationError
	if !errors.As(wrapped, &out) {
		t.Fatal("expected errors.As to recover the ValidationError")
	}
	if out.Index != 7 {
		t.Errorf("expected index 7, got %d", out.Index)
	}
}

func TestTransitionError_Detail(t *testing.T) {
	err := NewTransition("GoalHandle", "EXECUTING", "EXECUTE")

	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatal("expected errors.As to recover the TransitionError")
	}
	if te.From != "EXECUTING" || te.Event != "EXECUTE" {
		t.Errorf("unexpected detail: %+v", te)
	}
}

func TestKindOf(t *testing.T) {
	if _, ok := KindOf(fmt.Errorf("plain")); ok {
		t.Error("plain errors have no kind")
	}
	k, ok := KindOf(Wrap(KindUnsupportedType, fmt.Errorf("value 42"), "QoS", "CheckCompatible", ""))
	if !ok || k != KindUnsupportedType {
		t.Errorf("expected KindUnsupportedType, got %v (ok=%v)", k, ok)
	}
}
