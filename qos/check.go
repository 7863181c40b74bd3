package qos

import (
	"fmt"
	"strings"

	"github.com/XiandiShan/rclgo/errors"
)

// Compatibility is the outcome of a profile comparison
type Compatibility int32

const (
	// CompatibilityOK means every dimension is definitively compatible
	CompatibilityOK Compatibility = iota
	// CompatibilityWarning means at least one dimension cannot be statically
	// verified, typically because one side uses a system default
	CompatibilityWarning
	// CompatibilityError means communication would never succeed
	CompatibilityError
)

// String returns the string representation of Compatibility
func (c Compatibility) String() string {
	switch c {
	case CompatibilityOK:
		return "ok"
	case CompatibilityWarning:
		return "warning"
	case CompatibilityError:
		return "error"
	default:
		return "invalid"
	}
}

// Result reports whether an offered profile can serve a requested one.
// Reason enumerates every incompatible or uncertain dimension and is empty
// when the result is OK.
type Result struct {
	Compatibility Compatibility
	Reason        string
}

// checkState accumulates per-dimension findings. ERROR dominates WARNING
// regardless of the order dimensions are evaluated in.
type checkState struct {
	compatibility Compatibility
	reasons       []string
}

func (s *checkState) errorf(format string, args ...any) {
	s.compatibility = CompatibilityError
	s.reasons = append(s.reasons, "ERROR: "+fmt.Sprintf(format, args...))
}

func (s *checkState) warnf(format string, args ...any) {
	if s.compatibility != CompatibilityError {
		s.compatibility = CompatibilityWarning
	}
	s.reasons = append(s.reasons, "WARNING: "+fmt.Sprintf(format, args...))
}

// CheckCompatible checks whether the offered profile of a publisher-side
// endpoint is compatible with the requested profile of a subscriber-side
// endpoint. It is pure and deterministic.
//
// Each dimension is evaluated independently; the aggregate is ERROR if any
// dimension is definitively incompatible, WARNING if any dimension cannot be
// verified statically, and OK only when every dimension passes. Values
// outside the closed policy sets fail with an unsupported-type error.
func CheckCompatible(offered, requested Profile) (Result, error) {
	if err := validatePolicies(offered, "offered"); err != nil {
		return Result{}, err
	}
	if err := validatePolicies(requested, "requested"); err != nil {
		return Result{}, err
	}

	var state checkState
	checkReliability(&state, offered.Reliability, requested.Reliability)
	checkDurability(&state, offered.Durability, requested.Durability)
	checkDeadline(&state, offered.Deadline, requested.Deadline)
	checkLiveliness(&state, offered.Liveliness, requested.Liveliness)
	checkLease(&state, offered.LivelinessLeaseDuration, requested.LivelinessLeaseDuration)

	return Result{
		Compatibility: state.compatibility,
		Reason:        strings.Join(state.reasons, "; "),
	}, nil
}

func validatePolicies(p Profile, side string) error {
	if p.Reliability < ReliabilitySystemDefault || p.Reliability > ReliabilityUnknown {
		return errors.Newf(errors.KindUnsupportedType, "QoS", "CheckCompatible",
			"%s profile has unsupported reliability value %d", side, p.Reliability)
	}
	if p.Durability < DurabilitySystemDefault || p.Durability > DurabilityUnknown {
		return errors.Newf(errors.KindUnsupportedType, "QoS", "CheckCompatible",
			"%s profile has unsupported durability value %d", side, p.Durability)
	}
	if p.Liveliness < LivelinessSystemDefault || p.Liveliness > LivelinessUnknown {
		return errors.Newf(errors.KindUnsupportedType, "QoS", "CheckCompatible",
			"%s profile has unsupported liveliness value %d", side, p.Liveliness)
	}
	if p.History < HistorySystemDefault || p.History > HistoryUnknown {
		return errors.Newf(errors.KindUnsupportedType, "QoS", "CheckCompatible",
			"%s profile has unsupported history value %d", side, p.History)
	}
	return nil
}

func checkReliability(s *checkState, offered, requested Reliability) {
	switch {
	case offered == ReliabilityBestEffort && requested == ReliabilityReliable:
		s.errorf("best effort offered reliability is incompatible with reliable requested reliability")
	case offered == ReliabilitySystemDefault || requested == ReliabilitySystemDefault:
		s.warnf("reliability uses a system default and cannot be verified before discovery")
	case offered == ReliabilityUnknown || requested == ReliabilityUnknown:
		s.warnf("reliability is unknown on at least one side")
	}
}

func checkDurability(s *checkState, offered, requested Durability) {
	switch {
	case offered == DurabilityVolatile && requested == DurabilityTransientLocal:
		s.errorf("volatile offered durability is incompatible with transient local requested durability")
	case offered == DurabilitySystemDefault || requested == DurabilitySystemDefault:
		s.warnf("durability uses a system default and cannot be verified before discovery")
	case offered == DurabilityUnknown || requested == DurabilityUnknown:
		s.warnf("durability is unknown on at least one side")
	}
}

func checkDeadline(s *checkState, offered, requested Duration) {
	if requested.IsUnspecified() {
		return
	}
	switch {
	case offered.IsUnspecified():
		s.errorf("no deadline offered but a deadline of %dns was requested", requested)
	case offered > requested:
		s.errorf("offered deadline %dns is larger than requested deadline %dns", offered, requested)
	}
}

// livelinessStrictness orders the kinds an offerer can satisfy: a stricter
// offered kind satisfies any equal-or-looser request.
func livelinessStrictness(l Liveliness) int {
	switch l {
	case LivelinessAutomatic:
		return 1
	case LivelinessManualByNode:
		return 2
	case LivelinessManualByTopic:
		return 3
	default:
		return 0
	}
}

func checkLiveliness(s *checkState, offered, requested Liveliness) {
	switch {
	case offered == LivelinessSystemDefault || requested == LivelinessSystemDefault:
		s.warnf("liveliness uses a system default and cannot be verified before discovery")
	case offered == LivelinessUnknown || requested == LivelinessUnknown:
		s.warnf("liveliness is unknown on at least one side")
	case livelinessStrictness(offered) < livelinessStrictness(requested):
		s.errorf("%s offered liveliness is incompatible with %s requested liveliness", offered, requested)
	}
}

func checkLease(s *checkState, offered, requested Duration) {
	if requested.IsUnspecified() {
		return
	}
	switch {
	case offered.IsUnspecified():
		s.errorf("no liveliness lease duration offered but %dns was requested", requested)
	case offered > requested:
		s.errorf("offered liveliness lease duration %dns is larger than requested %dns", offered, requested)
	}
}
