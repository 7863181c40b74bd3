// Package action implements the goal lifecycle shared by action servers and
// clients: a per-goal state machine driven by explicit events, with an
// append-only transition log for introspection.
package action

import (
	"sync"

	"github.com/google/uuid"

	"github.com/XiandiShan/rclgo/errors"
	"github.com/XiandiShan/rclgo/rosclock"
)

// State is the lifecycle state of one goal
type State int

const (
	// StateAccepted means the goal was accepted but execution has not begun
	StateAccepted State = iota
	// StateExecuting means the goal is being worked on
	StateExecuting
	// StateCanceling means a cancel request was acknowledged
	StateCanceling
	// StateSucceeded is terminal: the goal completed successfully
	StateSucceeded
	// StateCanceled is terminal: the goal was canceled before completion
	StateCanceled
	// StateAborted is terminal: the goal failed
	StateAborted
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateAccepted:
		return "ACCEPTED"
	case StateExecuting:
		return "EXECUTING"
	case StateCanceling:
		return "CANCELING"
	case StateSucceeded:
		return "SUCCEEDED"
	case StateCanceled:
		return "CANCELED"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions are accepted from s
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateCanceled, StateAborted:
		return true
	default:
		return false
	}
}

// Event drives a goal state transition
type Event int

const (
	// EventExecute begins execution of an accepted goal
	EventExecute Event = iota
	// EventCancelGoal acknowledges a cancel request
	EventCancelGoal
	// EventSucceed marks the goal completed successfully
	EventSucceed
	// EventAbort marks the goal failed
	EventAbort
	// EventCanceled confirms a cancel completed
	EventCanceled
)

// String returns the string representation of Event
func (e Event) String() string {
	switch e {
	case EventExecute:
		return "EXECUTE"
	case EventCancelGoal:
		return "CANCEL_GOAL"
	case EventSucceed:
		return "SUCCEED"
	case EventAbort:
		return "ABORT"
	case EventCanceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

type transitionKey struct {
	from  State
	event Event
}

// transitions is the closed goal lifecycle table. An event absent for the
// current state is an invalid transition.
var transitions = map[transitionKey]State{
	{StateAccepted, EventExecute}:     StateExecuting,
	{StateAccepted, EventCancelGoal}:  StateCanceling,
	{StateExecuting, EventCancelGoal}: StateCanceling,
	{StateExecuting, EventSucceed}:    StateSucceeded,
	{StateExecuting, EventAbort}:      StateAborted,
	{StateCanceling, EventSucceed}:    StateSucceeded,
	{StateCanceling, EventAbort}:      StateAborted,
	{StateCanceling, EventCanceled}:   StateCanceled,
}

// Transition is one applied event in a goal's history
type Transition struct {
	Event Event
	From  State
	To    State
	Stamp rosclock.Time
}

// GoalHandle is the state-machine-backed representation of one accepted
// goal. State changes only through Apply; each handle has its own lock so
// transitions on different goals never contend.
type GoalHandle struct {
	id uuid.UUID

	mu      sync.Mutex
	state   State
	log     []Transition
	request []byte
	result  []byte
	hasRes  bool
}

func newGoalHandle(id uuid.UUID) *GoalHandle {
	return &GoalHandle{id: id, state: StateAccepted}
}

// ID returns the goal's unique identifier
func (g *GoalHandle) ID() uuid.UUID {
	return g.id
}

// State returns the goal's current lifecycle state
func (g *GoalHandle) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SetRequest stores the goal payload carried by the send-goal request
func (g *GoalHandle) SetRequest(data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.request = data
}

// Request returns the goal payload stored at acceptance time
func (g *GoalHandle) Request() []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.request
}

// SetResult stores the result payload produced by the execute callback
func (g *GoalHandle) SetResult(data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.result = data
	g.hasRes = true
}

// Result returns the stored result payload, if one was set
func (g *GoalHandle) Result() ([]byte, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.result, g.hasRes
}

// Log returns a copy of the goal's transition history
func (g *GoalHandle) Log() []Transition {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Transition, len(g.log))
	copy(out, g.log)
	return out
}

// Apply drives the goal through one event. An event not defined for the
// current state fails with InvalidStateTransition and leaves both the state
// and the transition log unchanged.
func (g *GoalHandle) Apply(event Event, stamp rosclock.Time) (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	next, ok := transitions[transitionKey{g.state, event}]
	if !ok {
		return g.state, errors.NewTransition("action", g.state.String(), event.String())
	}
	g.log = append(g.log, Transition{
		Event: event,
		From:  g.state,
		To:    next,
		Stamp: stamp,
	})
	g.state = next
	return next, nil
}
