package action

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/XiandiShan/rclgo/errors"
	"github.com/XiandiShan/rclgo/waitset"
)

// Wire-level status codes as they appear in status messages
const (
	statusCodeUnknown   int8 = 0
	statusCodeAccepted  int8 = 1
	statusCodeExecuting int8 = 2
	statusCodeCanceling int8 = 3
	statusCodeSucceeded int8 = 4
	statusCodeCanceled  int8 = 5
	statusCodeAborted   int8 = 6
)

// StateFromCode maps a wire status code to a State. A code from a newer
// protocol revision fails with UnsupportedType.
func StateFromCode(code int8) (State, error) {
	switch code {
	case statusCodeAccepted:
		return StateAccepted, nil
	case statusCodeExecuting:
		return StateExecuting, nil
	case statusCodeCanceling:
		return StateCanceling, nil
	case statusCodeSucceeded:
		return StateSucceeded, nil
	case statusCodeCanceled:
		return StateCanceled, nil
	case statusCodeAborted:
		return StateAborted, nil
	default:
		return 0, errors.Newf(errors.KindUnsupportedType, "action", "status",
			"unknown goal status code %d", code)
	}
}

// Code maps a State back to its wire status code
func (s State) Code() int8 {
	switch s {
	case StateAccepted:
		return statusCodeAccepted
	case StateExecuting:
		return statusCodeExecuting
	case StateCanceling:
		return statusCodeCanceling
	case StateSucceeded:
		return statusCodeSucceeded
	case StateCanceled:
		return statusCodeCanceled
	case StateAborted:
		return statusCodeAborted
	default:
		return statusCodeUnknown
	}
}

// Client mirrors the goal states of a remote action server from the status
// updates it receives. It is a waitable entity that becomes ready on every
// status change; readiness is consumed by the observing wait cycle.
type Client struct {
	*waitset.Base

	name   string
	logger *slog.Logger

	mu      sync.Mutex
	goals   map[uuid.UUID]State
	pending bool
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithClientLogger sets the structured logger
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates an action client for the named action
func NewClient(name string, opts ...ClientOption) *Client {
	c := &Client{
		Base:   waitset.NewBase(waitset.KindAction),
		name:   name,
		logger: slog.Default(),
		goals:  make(map[uuid.UUID]State),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the action name
func (c *Client) Name() string {
	return c.name
}

// Ready reports whether an unobserved status change exists
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// TakeReady reports readiness and clears it
func (c *Client) TakeReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	was := c.pending
	c.pending = false
	return was
}

// UpdateStatus records one remote status update and wakes any waiters
func (c *Client) UpdateStatus(status GoalStatus) error {
	if !c.Valid() {
		return errors.New(errors.KindInvalidHandle, "action", "update_status", "client destroyed")
	}

	c.mu.Lock()
	prev, known := c.goals[status.GoalID]
	c.goals[status.GoalID] = status.State
	changed := !known || prev != status.State
	if changed {
		c.pending = true
	}
	c.mu.Unlock()

	if changed {
		c.logger.Debug("remote goal status",
			"action", c.name, "goal_id", status.GoalID, "state", status.State.String())
		c.Notify()
	}
	return nil
}

// UpdateStatusCode records a wire-level status update, rejecting unknown
// codes before any state is touched
func (c *Client) UpdateStatusCode(goalID uuid.UUID, code int8) error {
	state, err := StateFromCode(code)
	if err != nil {
		return err
	}
	return c.UpdateStatus(GoalStatus{GoalID: goalID, State: state})
}

// GoalState returns the last observed state of the identified remote goal
func (c *Client) GoalState(goalID uuid.UUID) (State, error) {
	if !c.Valid() {
		return 0, errors.New(errors.KindInvalidHandle, "action", "goal_state", "client destroyed")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.goals[goalID]
	if !ok {
		return 0, errors.Newf(errors.KindInvalidHandle, "action", "goal_state", "unknown goal %s", goalID)
	}
	return state, nil
}

// GoalsByState returns the IDs of tracked remote goals last seen in the
// given state
func (c *Client) GoalsByState(state State) []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []uuid.UUID
	for id, s := range c.goals {
		if s == state {
			out = append(out, id)
		}
	}
	return out
}

// Forget drops a terminal remote goal from tracking
func (c *Client) Forget(goalID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.goals[goalID]
	if !ok {
		return errors.Newf(errors.KindInvalidHandle, "action", "forget", "unknown goal %s", goalID)
	}
	if !state.Terminal() {
		return errors.Newf(errors.KindInvalidStateTransition, "action", "forget",
			"goal %s is %s, not terminal", goalID, state)
	}
	delete(c.goals, goalID)
	return nil
}
