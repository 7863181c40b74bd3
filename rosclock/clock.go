// Package rosclock provides the client's time sources: a simulated ROS time
// that can be set and toggled explicitly, wall-clock system time, and a
// monotonic steady time.
//
// Discontinuous simulated time is what makes deterministic replay of
// time-dependent logic possible. Jump callbacks let dependents such as
// timers re-anchor themselves around a discontinuity without racing it: all
// pre hooks run strictly before the new time is committed and all post hooks
// strictly after, on the goroutine performing the jump.
package rosclock

import (
	"sync"
	"time"

	"github.com/XiandiShan/rclgo/errors"
)

// ClockType selects the time source of a Clock
type ClockType int32

const (
	// ClockTypeUninitialized is a clock with no usable time source
	ClockTypeUninitialized ClockType = iota
	// ClockTypeROSTime reports simulated time while the override is active
	// and wall-clock time otherwise
	ClockTypeROSTime
	// ClockTypeSystemTime always reports wall-clock time
	ClockTypeSystemTime
	// ClockTypeSteadyTime reports monotonic time anchored at clock creation
	ClockTypeSteadyTime
)

// String returns the string representation of ClockType
func (t ClockType) String() string {
	switch t {
	case ClockTypeUninitialized:
		return "uninitialized"
	case ClockTypeROSTime:
		return "ros_time"
	case ClockTypeSystemTime:
		return "system_time"
	case ClockTypeSteadyTime:
		return "steady_time"
	default:
		return "unknown"
	}
}

// ClockChange describes how a clock's source changed across a jump
type ClockChange int32

const (
	// ROSTimeNoChange means simulated time is active and stays active
	ROSTimeNoChange ClockChange = iota + 1
	// ROSTimeActivated means simulated time is being activated
	ROSTimeActivated
	// ROSTimeDeactivated means simulated time is being deactivated; the
	// clock reports wall-clock time after the jump, so consumers must treat
	// time as discontinuous across this event
	ROSTimeDeactivated
	// SystemTimeNoChange means simulated time is inactive and stays inactive
	SystemTimeNoChange
)

// String returns the string representation of ClockChange
func (c ClockChange) String() string {
	switch c {
	case ROSTimeNoChange:
		return "ros_time_no_change"
	case ROSTimeActivated:
		return "ros_time_activated"
	case ROSTimeDeactivated:
		return "ros_time_deactivated"
	case SystemTimeNoChange:
		return "system_time_no_change"
	default:
		return "unknown"
	}
}

// Time is a timestamp read from a specific clock source
type Time struct {
	// Nanoseconds since the epoch appropriate to the source: the Unix epoch
	// for ROS and system time, clock creation for steady time
	Nanoseconds int64
	// Type is the source the timestamp was read from
	Type ClockType
}

// AsTime converts a ROS or system timestamp to a time.Time
func (t Time) AsTime() time.Time {
	return time.Unix(0, t.Nanoseconds)
}

// TimeJump describes a single discontinuity passed to jump callbacks
type TimeJump struct {
	// Kind is the clock change that caused the jump
	Kind ClockChange
	// Delta is the instantaneous change in reported time
	Delta time.Duration
}

// JumpHandler receives a jump notification. Handlers run synchronously on
// the jumping goroutine; long-running work blocks the jump and should be
// avoided.
type JumpHandler func(TimeJump)

type jumpCallback struct {
	id        int
	threshold time.Duration
	pre       JumpHandler
	post      JumpHandler
}

// Clock produces timestamps from a selectable time source and notifies
// registered callbacks around discontinuous changes in reported time.
type Clock struct {
	typ         ClockType
	steadyStart time.Time

	// jumpMu serializes jumps end to end so pre hooks, the commit and post
	// hooks of concurrent jumps never interleave.
	jumpMu sync.Mutex

	// stateMu guards the override fields for readers.
	stateMu       sync.Mutex
	rosTimeActive bool
	rosTimeNS     int64

	// cbMu guards the callback list separately from jump execution, so a
	// handler may remove callbacks without deadlocking.
	cbMu      sync.Mutex
	callbacks []jumpCallback
	nextCBID  int
}

// New creates a clock for the given source
func New(typ ClockType) *Clock {
	return &Clock{
		typ:         typ,
		steadyStart: time.Now(),
	}
}

// Type returns the clock's time source
func (c *Clock) Type() ClockType {
	return c.typ
}

// Now returns the current time for the clock's active source
func (c *Clock) Now() (Time, error) {
	switch c.typ {
	case ClockTypeROSTime:
		c.stateMu.Lock()
		defer c.stateMu.Unlock()
		if c.rosTimeActive {
			return Time{Nanoseconds: c.rosTimeNS, Type: c.typ}, nil
		}
		return Time{Nanoseconds: time.Now().UnixNano(), Type: c.typ}, nil
	case ClockTypeSystemTime:
		return Time{Nanoseconds: time.Now().UnixNano(), Type: c.typ}, nil
	case ClockTypeSteadyTime:
		return Time{Nanoseconds: time.Since(c.steadyStart).Nanoseconds(), Type: c.typ}, nil
	default:
		return Time{}, errors.New(errors.KindClockError, "Clock", "Now",
			"clock is uninitialized, no time source available")
	}
}

// ROSTimeActive reports whether the simulated time override is active
func (c *Clock) ROSTimeActive() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.rosTimeActive
}

// SetROSTimeOverride sets the simulated time. It is legal only on a
// ClockTypeROSTime clock. While the override is active the change is a time
// jump: callbacks whose threshold the jump magnitude meets or exceeds are
// notified around the commit. While inactive the value is stored silently
// for the next activation.
func (c *Clock) SetROSTimeOverride(nanoseconds int64) error {
	if c.typ != ClockTypeROSTime {
		return errors.Newf(errors.KindClockError, "Clock", "SetROSTimeOverride",
			"cannot set time on a %s clock, only ros_time supports a time override", c.typ)
	}

	c.jumpMu.Lock()
	defer c.jumpMu.Unlock()

	c.stateMu.Lock()
	active := c.rosTimeActive
	old := c.rosTimeNS
	c.stateMu.Unlock()

	if !active {
		c.stateMu.Lock()
		c.rosTimeNS = nanoseconds
		c.stateMu.Unlock()
		return nil
	}

	jump := TimeJump{
		Kind:  ROSTimeNoChange,
		Delta: time.Duration(nanoseconds - old),
	}
	c.fireJump(jump, true, func() {
		c.stateMu.Lock()
		c.rosTimeNS = nanoseconds
		c.stateMu.Unlock()
	})
	return nil
}

// SetROSTimeOverrideActive activates or deactivates the simulated time
// source and returns the resulting clock change. Activation and
// deactivation notify every registered callback regardless of threshold;
// a no-change call notifies none.
func (c *Clock) SetROSTimeOverrideActive(active bool) (ClockChange, error) {
	if c.typ != ClockTypeROSTime {
		return 0, errors.Newf(errors.KindClockError, "Clock", "SetROSTimeOverrideActive",
			"cannot toggle the time override on a %s clock", c.typ)
	}

	c.jumpMu.Lock()
	defer c.jumpMu.Unlock()

	c.stateMu.Lock()
	was := c.rosTimeActive
	oldReported := c.rosTimeNS
	if !was {
		oldReported = time.Now().UnixNano()
	}
	newReported := c.rosTimeNS
	if !active {
		newReported = time.Now().UnixNano()
	}
	c.stateMu.Unlock()

	var kind ClockChange
	switch {
	case active && !was:
		kind = ROSTimeActivated
	case !active && was:
		kind = ROSTimeDeactivated
	case active && was:
		kind = ROSTimeNoChange
	default:
		kind = SystemTimeNoChange
	}

	if kind == ROSTimeNoChange || kind == SystemTimeNoChange {
		return kind, nil
	}

	jump := TimeJump{
		Kind:  kind,
		Delta: time.Duration(newReported - oldReported),
	}
	c.fireJump(jump, false, func() {
		c.stateMu.Lock()
		c.rosTimeActive = active
		c.stateMu.Unlock()
	})
	return kind, nil
}

// fireJump runs pre hooks, commits the change, then runs post hooks.
// Callbacks are invoked over a snapshot taken under cbMu, so handlers may
// add or remove callbacks reentrantly; thresholdGated restricts delivery to
// callbacks whose threshold the jump magnitude meets.
func (c *Clock) fireJump(jump TimeJump, thresholdGated bool, commit func()) {
	c.cbMu.Lock()
	snapshot := make([]jumpCallback, len(c.callbacks))
	copy(snapshot, c.callbacks)
	c.cbMu.Unlock()

	magnitude := jump.Delta
	if magnitude < 0 {
		magnitude = -magnitude
	}

	deliver := func(cb jumpCallback) bool {
		if !thresholdGated {
			return true
		}
		return magnitude >= cb.threshold
	}

	for _, cb := range snapshot {
		if cb.pre != nil && deliver(cb) {
			cb.pre(jump)
		}
	}
	commit()
	for _, cb := range snapshot {
		if cb.post != nil && deliver(cb) {
			cb.post(jump)
		}
	}
}

// AddJumpCallback registers pre and post hooks for time jumps whose
// magnitude meets or exceeds threshold. Source activation and deactivation
// always notify. Either hook may be nil. The returned id removes the
// registration.
func (c *Clock) AddJumpCallback(threshold time.Duration, pre, post JumpHandler) int {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.nextCBID++
	id := c.nextCBID
	c.callbacks = append(c.callbacks, jumpCallback{
		id:        id,
		threshold: threshold,
		pre:       pre,
		post:      post,
	})
	return id
}

// RemoveJumpCallback removes a registration by id. Removing an unknown id
// is a no-op. Safe to call from within a jump handler.
func (c *Clock) RemoveJumpCallback(id int) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	for i, cb := range c.callbacks {
		if cb.id == id {
			c.callbacks = append(c.callbacks[:i], c.callbacks[i+1:]...)
			return
		}
	}
}
