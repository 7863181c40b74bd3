package waitset

import (
	"sync"
	"time"

	"github.com/XiandiShan/rclgo/errors"
	"github.com/XiandiShan/rclgo/metric"
)

// DeadlineEntity is implemented by timers: entities that become ready at a
// known instant. Wait uses the earliest due time to bound its sleep so a
// timer firing inside the wait window wakes the caller promptly.
type DeadlineEntity interface {
	// TimeUntilTrigger returns the time remaining until readiness; ok is
	// false when the entity is canceled and will not become ready on its own
	TimeUntilTrigger() (time.Duration, bool)
}

// Capacities declares per-kind storage for a WaitSet. Capacity must be
// declared before entities are added; adding beyond a kind's capacity fails.
type Capacities struct {
	Subscriptions   int
	GuardConditions int
	Timers          int
	Clients         int
	Services        int
	Actions         int
}

func (c Capacities) forKind(kind EntityKind) int {
	switch kind {
	case KindSubscription:
		return c.Subscriptions
	case KindGuardCondition:
		return c.GuardConditions
	case KindTimer:
		return c.Timers
	case KindClient:
		return c.Clients
	case KindService:
		return c.Services
	case KindAction:
		return c.Actions
	default:
		return 0
	}
}

// Result is the subset of entities observed ready by one Wait call.
// Readiness carries no ordering guarantee between kinds or between entities
// of the same kind. An empty result means the wait timed out, which is not
// an error.
type Result struct {
	Subscriptions   []Entity
	GuardConditions []Entity
	Timers          []Entity
	Clients         []Entity
	Services        []Entity
	Actions         []Entity
}

// Empty reports whether nothing was ready
func (r Result) Empty() bool {
	return len(r.Subscriptions) == 0 &&
		len(r.GuardConditions) == 0 &&
		len(r.Timers) == 0 &&
		len(r.Clients) == 0 &&
		len(r.Services) == 0 &&
		len(r.Actions) == 0
}

// All returns every ready entity in a single slice
func (r Result) All() []Entity {
	out := make([]Entity, 0,
		len(r.Subscriptions)+len(r.GuardConditions)+len(r.Timers)+
			len(r.Clients)+len(r.Services)+len(r.Actions))
	out = append(out, r.Subscriptions...)
	out = append(out, r.GuardConditions...)
	out = append(out, r.Timers...)
	out = append(out, r.Clients...)
	out = append(out, r.Services...)
	out = append(out, r.Actions...)
	return out
}

func (r *Result) add(e Entity) {
	switch e.Kind() {
	case KindSubscription:
		r.Subscriptions = append(r.Subscriptions, e)
	case KindGuardCondition:
		r.GuardConditions = append(r.GuardConditions, e)
	case KindTimer:
		r.Timers = append(r.Timers, e)
	case KindClient:
		r.Clients = append(r.Clients, e)
	case KindService:
		r.Services = append(r.Services, e)
	case KindAction:
		r.Actions = append(r.Actions, e)
	}
}

// WaitSet aggregates a bounded collection of entities and blocks until one
// or more are ready or a timeout elapses. A WaitSet is single-use per wait
// cycle: Wait consumes the added entities, and they must be re-added before
// the next Wait. This prevents stale-handle reuse between cycles.
type WaitSet struct {
	mu       sync.Mutex
	caps     Capacities
	entities []Entity
	counts   map[EntityKind]int
	closed   bool
	metrics  *metric.Metrics
}

// Option configures a WaitSet
type Option func(*WaitSet)

// WithMetrics records wait cycle outcomes, durations and per-kind
// readiness counts through the given collectors
func WithMetrics(m *metric.Metrics) Option {
	return func(ws *WaitSet) {
		ws.metrics = m
	}
}

// New allocates a wait set with the given per-kind capacities
func New(caps Capacities, opts ...Option) *WaitSet {
	ws := &WaitSet{
		caps:   caps,
		counts: make(map[EntityKind]int),
	}
	for _, opt := range opts {
		opt(ws)
	}
	return ws
}

// Add adds an entity for the next wait cycle. It fails with a capacity
// error when the entity's kind is full and with an invalid-handle error
// when the entity was already destroyed.
func (ws *WaitSet) Add(e Entity) error {
	if e == nil {
		return errors.New(errors.KindInvalidHandle, "WaitSet", "Add", "entity is nil")
	}
	if !e.Valid() {
		return errors.Newf(errors.KindInvalidHandle, "WaitSet", "Add",
			"%s entity already destroyed", e.Kind())
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return errors.New(errors.KindInvalidHandle, "WaitSet", "Add", "wait set already destroyed")
	}
	kind := e.Kind()
	if ws.counts[kind] >= ws.caps.forKind(kind) {
		return errors.Newf(errors.KindCapacityExceeded, "WaitSet", "Add",
			"capacity for kind %s is %d", kind, ws.caps.forKind(kind))
	}
	ws.entities = append(ws.entities, e)
	ws.counts[kind]++
	return nil
}

// Len returns the number of entities added for the next wait cycle
func (ws *WaitSet) Len() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.entities)
}

// Close destroys the wait set. Idempotent; subsequent operations fail with
// an invalid-handle error.
func (ws *WaitSet) Close() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.closed = true
	ws.entities = nil
	ws.counts = make(map[EntityKind]int)
	return nil
}

// Wait blocks until at least one added entity is ready, timeout elapses, or
// an added guard condition is triggered from another goroutine.
//
// A zero timeout polls once and returns immediately; a negative timeout
// blocks indefinitely. The added entities are consumed whether or not any
// became ready.
func (ws *WaitSet) Wait(timeout time.Duration) (Result, error) {
	start := time.Now()
	res, err := ws.wait(timeout)
	if m := ws.metrics; m != nil && err == nil {
		m.WaitDuration.Observe(time.Since(start).Seconds())
		outcome := "ready"
		if res.Empty() {
			outcome = "timeout"
		}
		m.WaitCycles.WithLabelValues(outcome).Inc()
		for _, e := range res.All() {
			m.EntitiesReady.WithLabelValues(e.Kind().String()).Inc()
		}
	}
	return res, err
}

func (ws *WaitSet) wait(timeout time.Duration) (Result, error) {
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		return Result{}, errors.New(errors.KindInvalidHandle, "WaitSet", "Wait",
			"wait set already destroyed")
	}
	entities := ws.entities
	ws.entities = nil
	ws.counts = make(map[EntityKind]int)
	ws.mu.Unlock()

	w := newWaiter()
	for _, e := range entities {
		e.attach(w)
	}
	defer func() {
		for _, e := range entities {
			e.detach(w)
		}
	}()

	infinite := timeout < 0
	var deadline time.Time
	if !infinite {
		deadline = time.Now().Add(timeout)
	}

	for {
		if res := collect(entities); !res.Empty() {
			return res, nil
		}

		sleep := time.Duration(-1)
		if !infinite {
			sleep = time.Until(deadline)
			if sleep <= 0 {
				return Result{}, nil
			}
		}
		if due, ok := earliestDeadline(entities); ok {
			if due < 0 {
				due = 0
			}
			if sleep < 0 || due < sleep {
				sleep = due
			}
		}

		if sleep < 0 {
			<-w.ch
			continue
		}
		t := time.NewTimer(sleep)
		select {
		case <-w.ch:
			t.Stop()
		case <-t.C:
		}
	}
}

// collect gathers the ready subset. Latched entities (guard conditions)
// consume their readiness when collected; destroyed entities are skipped.
func collect(entities []Entity) Result {
	var res Result
	for _, e := range entities {
		if !e.Valid() {
			continue
		}
		ready := false
		if l, ok := e.(Latched); ok {
			ready = l.TakeReady()
		} else {
			ready = e.Ready()
		}
		if ready {
			res.add(e)
		}
	}
	return res
}

func earliestDeadline(entities []Entity) (time.Duration, bool) {
	var min time.Duration
	found := false
	for _, e := range entities {
		d, ok := e.(DeadlineEntity)
		if !ok || !e.Valid() {
			continue
		}
		due, active := d.TimeUntilTrigger()
		if !active {
			continue
		}
		if !found || due < min {
			min = due
			found = true
		}
	}
	return min, found
}
