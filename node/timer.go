package node

import (
	"sync"
	"time"

	"github.com/XiandiShan/rclgo/errors"
	"github.com/XiandiShan/rclgo/rosclock"
	"github.com/XiandiShan/rclgo/waitset"
)

// Timer becomes ready when its deadline passes on the node's clock. A
// clock rewind or time source change re-anchors the deadline relative to
// the post-jump time, so the timer is never left armed in the far future.
type Timer struct {
	*waitset.Base

	clock    *rosclock.Clock
	period   time.Duration
	callback func()

	mu       sync.Mutex
	next     int64
	canceled bool
	jumpID   int
}

// CreateTimer creates a periodic timer on the node's clock. The callback
// may be nil; it runs on the goroutine that invokes Call.
func (n *Node) CreateTimer(period time.Duration, callback func()) (*Timer, error) {
	if err := n.checkOpen("create_timer"); err != nil {
		return nil, err
	}
	if period <= 0 {
		return nil, errors.Newf(errors.KindValidationError, "node", "create_timer",
			"period must be positive, got %v", period)
	}

	now, err := n.clock.Now()
	if err != nil {
		return nil, err
	}

	t := &Timer{
		Base:     waitset.NewBase(waitset.KindTimer),
		clock:    n.clock,
		period:   period,
		callback: callback,
		next:     now.Nanoseconds + int64(period),
	}
	t.jumpID = n.clock.AddJumpCallback(0, nil, t.onJump)

	n.track(t)
	return t, nil
}

// Period returns the timer period
func (t *Timer) Period() time.Duration {
	return t.period
}

// onJump re-anchors the deadline after a rewind or a source change.
// Forward jumps keep the deadline; the notify lets a blocked waitset
// re-evaluate readiness against the new time.
func (t *Timer) onJump(jump rosclock.TimeJump) {
	if jump.Kind == rosclock.ROSTimeNoChange && jump.Delta >= 0 {
		t.Notify()
		return
	}
	now, err := t.clock.Now()
	if err != nil {
		return
	}
	t.mu.Lock()
	t.next = now.Nanoseconds + int64(t.period)
	t.mu.Unlock()
	t.Notify()
}

// Ready reports whether the deadline has passed
func (t *Timer) Ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.canceled {
		return false
	}
	now, err := t.clock.Now()
	if err != nil {
		return false
	}
	return now.Nanoseconds >= t.next
}

// TimeUntilTrigger returns the remaining time before the deadline; the
// second return is false when the timer is canceled
func (t *Timer) TimeUntilTrigger() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.canceled || !t.Valid() {
		return 0, false
	}
	now, err := t.clock.Now()
	if err != nil {
		return 0, false
	}
	remaining := time.Duration(t.next - now.Nanoseconds)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Call runs the callback and advances the deadline one period past now.
// Calling before the deadline fails.
func (t *Timer) Call() error {
	t.mu.Lock()
	if !t.Valid() {
		t.mu.Unlock()
		return errors.New(errors.KindInvalidHandle, "node", "timer_call", "timer destroyed")
	}
	if t.canceled {
		t.mu.Unlock()
		return errors.New(errors.KindInvalidHandle, "node", "timer_call", "timer canceled")
	}
	now, err := t.clock.Now()
	if err != nil {
		t.mu.Unlock()
		return err
	}
	if now.Nanoseconds < t.next {
		t.mu.Unlock()
		return errors.New(errors.KindInvalidStateTransition, "node", "timer_call",
			"timer is not ready")
	}
	t.next = now.Nanoseconds + int64(t.period)
	callback := t.callback
	t.mu.Unlock()

	if callback != nil {
		callback()
	}
	return nil
}

// Reset re-arms the timer one period from now and clears a cancel
func (t *Timer) Reset() error {
	now, err := t.clock.Now()
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.canceled = false
	t.next = now.Nanoseconds + int64(t.period)
	t.mu.Unlock()
	return nil
}

// Cancel disarms the timer without destroying it
func (t *Timer) Cancel() {
	t.mu.Lock()
	t.canceled = true
	t.mu.Unlock()
}

// Canceled reports whether the timer is disarmed
func (t *Timer) Canceled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canceled
}

// Close destroys the timer and detaches its clock hook. Idempotent.
func (t *Timer) Close() error {
	if !t.Valid() {
		return nil
	}
	t.clock.RemoveJumpCallback(t.jumpID)
	return t.Base.Close()
}
