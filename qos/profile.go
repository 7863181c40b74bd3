// Package qos defines Quality of Service profiles and the compatibility
// checker used to decide whether an offered profile can communicate with a
// requested one.
//
// Profiles are immutable value types: they are compared pairwise and never
// mutated. The checker is a pure function with no side effects.
package qos

import (
	"math"
	"time"
)

// Reliability controls message delivery guarantees
type Reliability int32

const (
	// ReliabilitySystemDefault defers to the middleware default; the concrete
	// value is unknown until discovery
	ReliabilitySystemDefault Reliability = iota
	// ReliabilityReliable retransmits lost messages
	ReliabilityReliable
	// ReliabilityBestEffort delivers messages without retransmission
	ReliabilityBestEffort
	// ReliabilityUnknown is reported for endpoints whose policy could not be
	// determined
	ReliabilityUnknown
)

// String returns the string representation of Reliability
func (r Reliability) String() string {
	switch r {
	case ReliabilitySystemDefault:
		return "system_default"
	case ReliabilityReliable:
		return "reliable"
	case ReliabilityBestEffort:
		return "best_effort"
	case ReliabilityUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Durability controls whether late-joining subscribers see past messages
type Durability int32

const (
	// DurabilitySystemDefault defers to the middleware default
	DurabilitySystemDefault Durability = iota
	// DurabilityTransientLocal delivers cached messages to late joiners
	DurabilityTransientLocal
	// DurabilityVolatile only delivers messages published after subscription
	DurabilityVolatile
	// DurabilityUnknown is reported for undetermined endpoints
	DurabilityUnknown
)

// String returns the string representation of Durability
func (d Durability) String() string {
	switch d {
	case DurabilitySystemDefault:
		return "system_default"
	case DurabilityTransientLocal:
		return "transient_local"
	case DurabilityVolatile:
		return "volatile"
	case DurabilityUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// History controls how many messages are kept for delivery
type History int32

const (
	// HistorySystemDefault defers to the middleware default
	HistorySystemDefault History = iota
	// HistoryKeepLast keeps only the last Depth messages
	HistoryKeepLast
	// HistoryKeepAll keeps all messages, limited by system resources
	HistoryKeepAll
	// HistoryUnknown is reported for undetermined endpoints
	HistoryUnknown
)

// String returns the string representation of History
func (h History) String() string {
	switch h {
	case HistorySystemDefault:
		return "system_default"
	case HistoryKeepLast:
		return "keep_last"
	case HistoryKeepAll:
		return "keep_all"
	case HistoryUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Liveliness controls how endpoint liveliness is asserted
type Liveliness int32

const (
	// LivelinessSystemDefault defers to the middleware default
	LivelinessSystemDefault Liveliness = iota
	// LivelinessAutomatic asserts liveliness automatically
	LivelinessAutomatic
	// LivelinessManualByNode requires manual assertion per node.
	// Deprecated in ROS 2 but still seen on the wire.
	LivelinessManualByNode
	// LivelinessManualByTopic requires manual assertion per topic
	LivelinessManualByTopic
	// LivelinessUnknown is reported for undetermined endpoints
	LivelinessUnknown
)

// String returns the string representation of Liveliness
func (l Liveliness) String() string {
	switch l {
	case LivelinessSystemDefault:
		return "system_default"
	case LivelinessAutomatic:
		return "automatic"
	case LivelinessManualByNode:
		return "manual_by_node"
	case LivelinessManualByTopic:
		return "manual_by_topic"
	case LivelinessUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Duration is a QoS time constraint in nanoseconds
type Duration int64

const (
	// DurationUnspecified means no constraint was set; for deadlines and
	// lease durations this is the profile default
	DurationUnspecified Duration = 0
	// DurationInfinite is the maximum representable constraint
	DurationInfinite Duration = math.MaxInt64
)

// IsUnspecified reports whether the constraint was left unset
func (d Duration) IsUnspecified() bool {
	return d == DurationUnspecified
}

// AsTimeDuration converts to a time.Duration
func (d Duration) AsTimeDuration() time.Duration {
	return time.Duration(d)
}

// Profile contains all QoS settings for a publisher, subscription, service
// or action endpoint
type Profile struct {
	Reliability             Reliability
	Durability              Durability
	History                 History
	Depth                   int
	Deadline                Duration
	Lifespan                Duration
	Liveliness              Liveliness
	LivelinessLeaseDuration Duration
}

// ProfileDefault returns the default profile (reliable, volatile, keep last 10)
func ProfileDefault() Profile {
	return Profile{
		Reliability: ReliabilityReliable,
		Durability:  DurabilityVolatile,
		History:     HistoryKeepLast,
		Depth:       10,
		Liveliness:  LivelinessAutomatic,
	}
}

// ProfileSensorData returns a profile for high-rate sensor streams
// (best effort, volatile, keep last 5)
func ProfileSensorData() Profile {
	p := ProfileDefault()
	p.Reliability = ReliabilityBestEffort
	p.Depth = 5
	return p
}

// ProfileServicesDefault returns the default profile for services
func ProfileServicesDefault() Profile {
	return ProfileDefault()
}

// ProfileParameterEvents returns the profile used for parameter event topics
// (reliable, volatile, keep last 1000)
func ProfileParameterEvents() Profile {
	p := ProfileDefault()
	p.Depth = 1000
	return p
}

// ProfileSystemDefault returns a profile that defers every policy to the
// middleware; compatibility with it can only ever be verified at discovery
func ProfileSystemDefault() Profile {
	return Profile{
		Reliability: ReliabilitySystemDefault,
		Durability:  DurabilitySystemDefault,
		History:     HistorySystemDefault,
		Liveliness:  LivelinessSystemDefault,
	}
}

// ProfileActionStatus returns the profile for action status topics
// (reliable, transient local, keep last 1) so late-joining clients observe
// the current goal status immediately
func ProfileActionStatus() Profile {
	p := ProfileDefault()
	p.Durability = DurabilityTransientLocal
	p.Depth = 1
	return p
}
