package waitset

import (
	"sync"

	"github.com/XiandiShan/rclgo/errors"
)

// GuardCondition is a manually triggerable entity used for cross-goroutine
// wakeup and cancellation. Trigger is safe to call from any goroutine
// without holding the waiting goroutine's lock; triggers before a wait are
// retained, and several triggers collapse to a single wakeup.
type GuardCondition struct {
	*Base

	mu        sync.Mutex
	triggered bool
}

// NewGuardCondition creates an untriggered guard condition
func NewGuardCondition() *GuardCondition {
	return &GuardCondition{Base: NewBase(KindGuardCondition)}
}

// Trigger marks the guard condition ready and wakes attached waiters
func (g *GuardCondition) Trigger() error {
	if !g.Valid() {
		return errors.New(errors.KindInvalidHandle, "GuardCondition", "Trigger",
			"guard condition already destroyed")
	}
	g.mu.Lock()
	g.triggered = true
	g.mu.Unlock()
	g.Notify()
	return nil
}

// Ready reports whether the guard condition has a pending trigger
func (g *GuardCondition) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.triggered
}

// TakeReady reports a pending trigger and clears it, so one trigger wakes
// exactly one wait cycle
func (g *GuardCondition) TakeReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	was := g.triggered
	g.triggered = false
	return was
}
