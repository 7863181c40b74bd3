package action

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/XiandiShan/rclgo/errors"
	"github.com/XiandiShan/rclgo/metric"
	"github.com/XiandiShan/rclgo/pkg/worker"
	"github.com/XiandiShan/rclgo/rosclock"
	"github.com/XiandiShan/rclgo/waitset"
)

// GoalStatus is one status update emitted when a goal changes state
type GoalStatus struct {
	GoalID uuid.UUID     `json:"goal_id"`
	State  State         `json:"state"`
	Stamp  rosclock.Time `json:"stamp"`
}

// StatusFunc receives a status update for every applied transition.
// Publication to a status topic hangs off this hook.
type StatusFunc func(GoalStatus)

// ExecuteFunc runs the work for one executing goal. A nil return succeeds
// the goal, a non-nil return aborts it, unless the goal reached a terminal
// state through another path first.
type ExecuteFunc func(context.Context, *GoalHandle) error

// Server manages the goals of one action endpoint. It is a waitable
// entity: it becomes ready whenever a goal changes state, and readiness is
// consumed by the observing wait cycle.
type Server struct {
	*waitset.Base

	name    string
	clock   *rosclock.Clock
	logger  *slog.Logger
	execute ExecuteFunc
	status  []StatusFunc
	workers int
	pool    *worker.Pool[executeWork]
	metrics *metric.Metrics

	mu       sync.Mutex
	goals    map[uuid.UUID]*GoalHandle
	released map[uuid.UUID]struct{}
	pending  bool
}

type executeWork struct {
	server *Server
	goal   *GoalHandle
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithClock sets the clock used to stamp transitions
func WithClock(clock *rosclock.Clock) ServerOption {
	return func(s *Server) { s.clock = clock }
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithStatusFunc adds a hook invoked on every goal transition. Hooks run
// in registration order on the goroutine applying the transition.
func WithStatusFunc(fn StatusFunc) ServerOption {
	return func(s *Server) {
		if fn != nil {
			s.status = append(s.status, fn)
		}
	}
}

// WithMetrics counts goal transitions and tracks the number of live
// non-terminal goals through the given collectors
func WithMetrics(m *metric.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithWorkers sets the size of the goal execution pool
func WithWorkers(n int) ServerOption {
	return func(s *Server) { s.workers = n }
}

// NewServer creates an action server with the given name and execute
// callback. The callback runs on an internal worker pool, one invocation
// per executing goal.
func NewServer(name string, execute ExecuteFunc, opts ...ServerOption) *Server {
	s := &Server{
		Base:     waitset.NewBase(waitset.KindAction),
		name:     name,
		clock:    rosclock.New(rosclock.ClockTypeSystemTime),
		logger:   slog.Default(),
		execute:  execute,
		workers:  4,
		goals:    make(map[uuid.UUID]*GoalHandle),
		released: make(map[uuid.UUID]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pool = worker.NewPool(s.workers, 8*s.workers, runExecuteWork)
	return s
}

func runExecuteWork(ctx context.Context, w executeWork) error {
	return w.server.runGoal(ctx, w.goal)
}

// Start launches the execution pool
func (s *Server) Start(ctx context.Context) error {
	return s.pool.Start(ctx)
}

// Stop drains the execution pool and destroys the server entity
func (s *Server) Stop(timeout time.Duration) error {
	err := s.pool.Stop(timeout)
	if cerr := s.Base.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Name returns the action name
func (s *Server) Name() string {
	return s.name
}

// Ready reports whether an unobserved status change exists
func (s *Server) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// TakeReady reports readiness and clears it
func (s *Server) TakeReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.pending
	s.pending = false
	return was
}

// Accept registers a new goal in the ACCEPTED state. A goal ID already
// known or already released is rejected.
func (s *Server) Accept(goalID uuid.UUID) (*GoalHandle, error) {
	if !s.Valid() {
		return nil, errors.New(errors.KindInvalidHandle, "action", "accept", "server destroyed")
	}
	stamp := s.stamp()

	s.mu.Lock()
	if _, ok := s.goals[goalID]; ok {
		s.mu.Unlock()
		return nil, errors.Newf(errors.KindInvalidHandle, "action", "accept", "goal %s already accepted", goalID)
	}
	if _, ok := s.released[goalID]; ok {
		s.mu.Unlock()
		return nil, errors.Newf(errors.KindInvalidHandle, "action", "accept", "goal %s already released", goalID)
	}
	goal := newGoalHandle(goalID)
	s.goals[goalID] = goal
	s.pending = true
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.GoalTransitions.WithLabelValues(StateAccepted.String()).Inc()
		s.metrics.GoalsActive.Inc()
	}
	s.logger.Debug("goal accepted", "action", s.name, "goal_id", goalID)
	s.emit(GoalStatus{GoalID: goalID, State: StateAccepted, Stamp: stamp})
	s.Notify()
	return goal, nil
}

// Transition drives the identified goal through one event and returns the
// new state. An unknown or released goal ID fails with InvalidHandle.
func (s *Server) Transition(goalID uuid.UUID, event Event) (State, error) {
	goal, err := s.goal("transition", goalID)
	if err != nil {
		return 0, err
	}
	stamp := s.stamp()

	next, err := goal.Apply(event, stamp)
	if err != nil {
		return next, err
	}

	s.mu.Lock()
	s.pending = true
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.GoalTransitions.WithLabelValues(next.String()).Inc()
		if next.Terminal() {
			s.metrics.GoalsActive.Dec()
		}
	}
	s.logger.Debug("goal transition",
		"action", s.name, "goal_id", goalID, "event", event.String(), "state", next.String())
	s.emit(GoalStatus{GoalID: goalID, State: next, Stamp: stamp})
	s.Notify()
	return next, nil
}

// Execute moves an accepted goal to EXECUTING and schedules its callback
// on the execution pool. A goal that cannot be scheduled is aborted rather
// than left executing with no worker.
func (s *Server) Execute(goalID uuid.UUID) error {
	goal, err := s.goal("execute", goalID)
	if err != nil {
		return err
	}
	if _, err := s.Transition(goalID, EventExecute); err != nil {
		return err
	}
	if err := s.pool.Submit(executeWork{server: s, goal: goal}); err != nil {
		if _, terr := s.Transition(goalID, EventAbort); terr != nil {
			s.logger.Warn("failed to abort unscheduled goal",
				"action", s.name, "goal_id", goalID, "error", terr)
		}
		return errors.Wrap(errors.KindCapacityExceeded, err, "action", "execute",
			"goal could not be scheduled")
	}
	return nil
}

func (s *Server) runGoal(ctx context.Context, goal *GoalHandle) error {
	var execErr error
	if s.execute != nil {
		execErr = s.execute(ctx, goal)
	}
	if goal.State().Terminal() {
		// The callback or a concurrent cancel already finished the goal.
		return execErr
	}
	outcome := EventSucceed
	if execErr != nil {
		outcome = EventAbort
		s.logger.Warn("goal execution failed",
			"action", s.name, "goal_id", goal.ID(), "error", execErr)
	}
	if _, err := s.Transition(goal.ID(), outcome); err != nil {
		return err
	}
	return execErr
}

// GoalsByState returns the IDs of all live goals currently in the given
// state
func (s *Server) GoalsByState(state State) []uuid.UUID {
	s.mu.Lock()
	goals := make([]*GoalHandle, 0, len(s.goals))
	for _, g := range s.goals {
		goals = append(goals, g)
	}
	s.mu.Unlock()

	var out []uuid.UUID
	for _, g := range goals {
		if g.State() == state {
			out = append(out, g.ID())
		}
	}
	return out
}

// Statuses returns a snapshot of every live goal's current state
func (s *Server) Statuses() []GoalStatus {
	stamp := s.stamp()
	s.mu.Lock()
	goals := make([]*GoalHandle, 0, len(s.goals))
	for _, g := range s.goals {
		goals = append(goals, g)
	}
	s.mu.Unlock()

	out := make([]GoalStatus, 0, len(goals))
	for _, g := range goals {
		out = append(out, GoalStatus{GoalID: g.ID(), State: g.State(), Stamp: stamp})
	}
	return out
}

// Get returns the live goal with the given ID
func (s *Server) Get(goalID uuid.UUID) (*GoalHandle, error) {
	return s.goal("get", goalID)
}

// Result returns the stored result payload and terminal state of the
// identified goal. It fails with InvalidStateTransition while the goal is
// still live.
func (s *Server) Result(goalID uuid.UUID) ([]byte, State, error) {
	goal, err := s.goal("result", goalID)
	if err != nil {
		return nil, 0, err
	}
	state := goal.State()
	if !state.Terminal() {
		return nil, state, errors.Newf(errors.KindInvalidStateTransition, "action", "result",
			"goal %s is %s, not terminal", goalID, state)
	}
	result, _ := goal.Result()
	return result, state, nil
}

// Release removes a goal that has reached a terminal state. Releasing a
// live goal fails with InvalidStateTransition.
func (s *Server) Release(goalID uuid.UUID) error {
	goal, err := s.goal("release", goalID)
	if err != nil {
		return err
	}
	if !goal.State().Terminal() {
		return errors.Newf(errors.KindInvalidStateTransition, "action", "release",
			"goal %s is %s, not terminal", goalID, goal.State())
	}

	s.mu.Lock()
	delete(s.goals, goalID)
	s.released[goalID] = struct{}{}
	s.mu.Unlock()

	s.logger.Debug("goal released", "action", s.name, "goal_id", goalID)
	return nil
}

func (s *Server) goal(operation string, goalID uuid.UUID) (*GoalHandle, error) {
	if !s.Valid() {
		return nil, errors.New(errors.KindInvalidHandle, "action", operation, "server destroyed")
	}
	s.mu.Lock()
	goal, ok := s.goals[goalID]
	s.mu.Unlock()
	if !ok {
		return nil, errors.Newf(errors.KindInvalidHandle, "action", operation, "unknown goal %s", goalID)
	}
	return goal, nil
}

func (s *Server) stamp() rosclock.Time {
	now, err := s.clock.Now()
	if err != nil {
		return rosclock.Time{}
	}
	return now
}

func (s *Server) emit(status GoalStatus) {
	for _, fn := range s.status {
		fn(status)
	}
}
