package node

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiandiShan/rclgo/action"
	"github.com/XiandiShan/rclgo/errors"
	"github.com/XiandiShan/rclgo/transport"
)

const fibonacciType = "example_interfaces/action/Fibonacci"

func TestAction_GoalToResult(t *testing.T) {
	bus := transport.NewBus()
	server := newTestNode(t, "action_server", WithTransport(bus))
	client := newTestNode(t, "action_client", WithTransport(bus))

	as, err := server.CreateActionServer("fibonacci", fibonacciType,
		func(_ context.Context, goal *action.GoalHandle) error {
			assert.JSONEq(t, `{"order":3}`, string(goal.Request()))
			goal.SetResult([]byte(`{"sequence":[0,1,1]}`))
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, "/fibonacci", as.Name())

	ac, err := client.CreateActionClient("fibonacci", fibonacciType)
	require.NoError(t, err)

	id, err := ac.SendGoal([]byte(`{"order":3}`))
	require.NoError(t, err)

	result, state, err := ac.Result(id)
	require.NoError(t, err)
	assert.Equal(t, action.StateSucceeded, state)
	assert.JSONEq(t, `{"sequence":[0,1,1]}`, string(result))

	require.Eventually(t, func() bool {
		st, err := ac.GoalState(id)
		return err == nil && st == action.StateSucceeded
	}, time.Second, 5*time.Millisecond, "status topic must mirror the terminal state")
}

func TestAction_DuplicateGoalIDRejected(t *testing.T) {
	bus := transport.NewBus()
	server := newTestNode(t, "action_server", WithTransport(bus))
	client := newTestNode(t, "action_client", WithTransport(bus))

	_, err := server.CreateActionServer("fibonacci", fibonacciType,
		func(context.Context, *action.GoalHandle) error { return nil })
	require.NoError(t, err)

	ac, err := client.CreateActionClient("fibonacci", fibonacciType)
	require.NoError(t, err)

	id := uuid.New()
	require.NoError(t, ac.SendGoalWithID(id, []byte(`{}`)))
	err = ac.SendGoalWithID(id, []byte(`{}`))
	assert.True(t, errors.IsInvalidStateTransition(err), "reusing a goal ID must be rejected")
}

func TestAction_CancelGoal(t *testing.T) {
	bus := transport.NewBus()
	server := newTestNode(t, "action_server", WithTransport(bus))
	client := newTestNode(t, "action_client", WithTransport(bus))

	var as *ActionServer
	as, err := server.CreateActionServer("countdown", fibonacciType,
		func(ctx context.Context, goal *action.GoalHandle) error {
			for goal.State() != action.StateCanceling {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(2 * time.Millisecond):
				}
			}
			goal.SetResult([]byte(`{}`))
			_, terr := as.Transition(goal.ID(), action.EventCanceled)
			return terr
		})
	require.NoError(t, err)

	ac, err := client.CreateActionClient("countdown", fibonacciType)
	require.NoError(t, err)

	id, err := ac.SendGoal([]byte(`{}`))
	require.NoError(t, err)

	require.NoError(t, ac.CancelGoal(id))

	_, state, err := ac.Result(id)
	require.NoError(t, err)
	assert.Equal(t, action.StateCanceled, state)
}

func TestAction_CancelUnknownGoalRejected(t *testing.T) {
	bus := transport.NewBus()
	server := newTestNode(t, "action_server", WithTransport(bus))
	client := newTestNode(t, "action_client", WithTransport(bus))

	_, err := server.CreateActionServer("fibonacci", fibonacciType,
		func(context.Context, *action.GoalHandle) error { return nil })
	require.NoError(t, err)

	ac, err := client.CreateActionClient("fibonacci", fibonacciType)
	require.NoError(t, err)

	err = ac.CancelGoal(uuid.New())
	assert.True(t, errors.IsInvalidStateTransition(err))
}
