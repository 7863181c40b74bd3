// Package waitset provides the readiness multiplexer of the client: a
// bounded, single-use collection of waitable entities that blocks the
// calling goroutine until at least one entity is ready, a timeout elapses,
// or a guard condition is triggered from another goroutine.
//
// The wakeup signal is a buffered channel owned by the waiting goroutine;
// triggering before the wait and triggering during the wait both reliably
// wake the waiter, and multiple triggers before a single wait collapse to
// one wakeup.
package waitset

import (
	"sync"
)

// EntityKind identifies the kind of a waitable entity
type EntityKind int

const (
	// KindSubscription is a topic subscription with a message queue
	KindSubscription EntityKind = iota
	// KindGuardCondition is a manually triggerable wakeup signal
	KindGuardCondition
	// KindTimer is a clock-driven deadline
	KindTimer
	// KindClient is a service client awaiting responses
	KindClient
	// KindService is a service server awaiting requests
	KindService
	// KindAction is an action server or client endpoint
	KindAction
)

// String returns the string representation of EntityKind
func (k EntityKind) String() string {
	switch k {
	case KindSubscription:
		return "subscription"
	case KindGuardCondition:
		return "guard_condition"
	case KindTimer:
		return "timer"
	case KindClient:
		return "client"
	case KindService:
		return "service"
	case KindAction:
		return "action"
	default:
		return "unknown"
	}
}

// Entity is a waitable handle. Implementations embed *Base for identity,
// validity and waiter bookkeeping, and add their own readiness predicate.
// A WaitSet holds only non-owning references; the owner controls the
// entity's lifetime.
type Entity interface {
	// Kind returns the entity kind
	Kind() EntityKind
	// Valid reports whether the entity has not been destroyed
	Valid() bool
	// Ready reports whether the entity has work for the caller
	Ready() bool

	attach(w *waiter)
	detach(w *waiter)
}

// Latched is implemented by entities whose readiness is consumed by being
// observed, such as guard conditions: collecting readiness resets the latch.
type Latched interface {
	// TakeReady reports readiness and clears it
	TakeReady() bool
}

// waiter is the wakeup signal shared between one Wait call and the entities
// it watches. The one-slot buffer makes a trigger-before-wait stick and
// collapses concurrent triggers into a single wakeup.
type waiter struct {
	ch chan struct{}
}

func newWaiter() *waiter {
	return &waiter{ch: make(chan struct{}, 1)}
}

func (w *waiter) notify() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// Base carries the bookkeeping shared by every entity implementation:
// kind, a validity flag checked by every operation, and the set of waiters
// to notify on readiness changes.
type Base struct {
	kind EntityKind

	mu      sync.Mutex
	waiters map[*waiter]struct{}
	closed  bool
}

// NewBase creates the embedded entity core for the given kind
func NewBase(kind EntityKind) *Base {
	return &Base{
		kind:    kind,
		waiters: make(map[*waiter]struct{}),
	}
}

// Kind returns the entity kind
func (b *Base) Kind() EntityKind {
	return b.kind
}

// Valid reports whether the entity has not been destroyed
func (b *Base) Valid() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed
}

// Close marks the entity destroyed and wakes any attached waiters so a
// blocked Wait can observe the change. Idempotent.
func (b *Base) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	waiters := make([]*waiter, 0, len(b.waiters))
	for w := range b.waiters {
		waiters = append(waiters, w)
	}
	b.mu.Unlock()

	for _, w := range waiters {
		w.notify()
	}
	return nil
}

// Notify wakes every attached waiter. Entity implementations call it when
// their readiness predicate flips to true.
func (b *Base) Notify() {
	b.mu.Lock()
	waiters := make([]*waiter, 0, len(b.waiters))
	for w := range b.waiters {
		waiters = append(waiters, w)
	}
	b.mu.Unlock()

	for _, w := range waiters {
		w.notify()
	}
}

func (b *Base) attach(w *waiter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.waiters[w] = struct{}{}
}

func (b *Base) detach(w *waiter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.waiters, w)
}
