package health

import (
	"sort"
	"sync"
	"time"
)

// Checker produces a current status on demand. Components that can be
// polled, such as a transport connection, register one instead of pushing
// updates.
type Checker func() Status

// Monitor tracks the health of named components. Components either push
// statuses with Update or register a Checker that is polled on read.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
	checkers map[string]Checker
}

// NewMonitor creates an empty monitor
func NewMonitor() *Monitor {
	return &Monitor{
		statuses: make(map[string]Status),
		checkers: make(map[string]Checker),
	}
}

// Update records a pushed status for a component
func (m *Monitor) Update(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	m.statuses[name] = status
}

// RegisterChecker registers a polled component, replacing any previous
// checker or pushed status under the same name
func (m *Monitor) RegisterChecker(name string, check Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, name)
	m.checkers[name] = check
}

// Remove stops tracking a component
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, name)
	delete(m.checkers, name)
}

// Snapshot returns the current status of every tracked component, polling
// registered checkers, ordered by component name.
func (m *Monitor) Snapshot() []Status {
	m.mu.RLock()
	statuses := make([]Status, 0, len(m.statuses)+len(m.checkers))
	for _, s := range m.statuses {
		statuses = append(statuses, s)
	}
	checkers := make(map[string]Checker, len(m.checkers))
	for name, check := range m.checkers {
		checkers[name] = check
	}
	m.mu.RUnlock()

	// Checkers run outside the lock so a slow one cannot block updates.
	for name, check := range checkers {
		s := check()
		s.Component = name
		if s.Timestamp.IsZero() {
			s.Timestamp = time.Now()
		}
		statuses = append(statuses, s)
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Component < statuses[j].Component
	})
	return statuses
}

// System returns the aggregated status for the whole process
func (m *Monitor) System(name string) Status {
	return Aggregate(name, m.Snapshot())
}
