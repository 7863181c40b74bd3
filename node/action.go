package node

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/XiandiShan/rclgo/action"
	"github.com/XiandiShan/rclgo/errors"
	"github.com/XiandiShan/rclgo/message"
	"github.com/XiandiShan/rclgo/qos"
	"github.com/XiandiShan/rclgo/transport"
)

// Hidden sub-names carried by every action endpoint
const (
	actionStatusSuffix   = "/_action/status"
	actionSendGoalSuffix = "/_action/send_goal"
	actionCancelSuffix   = "/_action/cancel_goal"
	actionResultSuffix   = "/_action/get_result"

	statusArrayType = "action_msgs/msg/GoalStatusArray"
)

// Wire shapes of the three action services and the status topic
type sendGoalRequest struct {
	GoalID uuid.UUID       `json:"goal_id"`
	Goal   json.RawMessage `json:"goal"`
}

type sendGoalReply struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}

type cancelGoalRequest struct {
	GoalID uuid.UUID `json:"goal_id"`
}

type cancelGoalReply struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}

type getResultRequest struct {
	GoalID uuid.UUID `json:"goal_id"`
}

type getResultReply struct {
	Status  int8            `json:"status"`
	Result  json.RawMessage `json:"result,omitempty"`
	Message string          `json:"message,omitempty"`
}

type goalStatusEntry struct {
	GoalID uuid.UUID `json:"goal_id"`
	Status int8      `json:"status"`
}

type goalStatusArray struct {
	StatusList []goalStatusEntry `json:"status_list"`
}

// ActionServer exposes one action over the node's transport: a latched
// status topic plus the send-goal, cancel-goal and get-result services.
// Goal lifecycle and execution live on the embedded action.Server.
type ActionServer struct {
	*action.Server

	node     *Node
	typeName string
	status   *Publisher
	services []transport.Service
}

// CreateActionServer creates an action server on the resolved name. The
// execute callback runs once per accepted goal; its result payload is what
// get-result returns after the goal finishes.
func (n *Node) CreateActionServer(name, typeName string, execute action.ExecuteFunc, opts ...action.ServerOption) (*ActionServer, error) {
	if err := n.checkOpen("create_action_server"); err != nil {
		return nil, err
	}
	resolved, err := n.ResolveTopicName(name)
	if err != nil {
		return nil, err
	}

	status, err := n.CreatePublisher(resolved+actionStatusSuffix, statusArrayType, qos.ProfileActionStatus())
	if err != nil {
		return nil, err
	}

	as := &ActionServer{
		node:     n,
		typeName: typeName,
		status:   status,
	}

	srvOpts := []action.ServerOption{
		action.WithClock(n.clock),
		action.WithLogger(n.logger),
	}
	if n.metrics != nil {
		srvOpts = append(srvOpts, action.WithMetrics(n.metrics))
	}
	srvOpts = append(srvOpts, opts...)
	srvOpts = append(srvOpts, action.WithStatusFunc(as.publishStatus))
	as.Server = action.NewServer(resolved, execute, srvOpts...)

	if err := as.Server.Start(context.Background()); err != nil {
		_ = status.Close()
		return nil, err
	}

	endpoints := []struct {
		suffix   string
		typeName string
		handler  func([]byte) []byte
	}{
		{actionSendGoalSuffix, typeName + "_SendGoal", as.handleSendGoal},
		{actionCancelSuffix, typeName + "_CancelGoal", as.handleCancelGoal},
		{actionResultSuffix, typeName + "_GetResult", as.handleGetResult},
	}
	for _, ep := range endpoints {
		ts, err := n.transport.CreateService(transport.EndpointInfo{
			Node:     n.fqn,
			Name:     resolved + ep.suffix,
			TypeName: ep.typeName,
			QoS:      qos.ProfileServicesDefault(),
		}, ep.handler)
		if err != nil {
			_ = as.Close()
			return nil, err
		}
		as.services = append(as.services, ts)
	}

	n.track(as)
	n.logger.Debug("action server created", "action", resolved, "type", typeName)
	return as, nil
}

// TypeName returns the action type
func (as *ActionServer) TypeName() string { return as.typeName }

// publishStatus runs as a status hook on every transition and republishes
// the full status array of live goals
func (as *ActionServer) publishStatus(action.GoalStatus) {
	var arr goalStatusArray
	for _, st := range as.Server.Statuses() {
		arr.StatusList = append(arr.StatusList, goalStatusEntry{
			GoalID: st.GoalID,
			Status: st.State.Code(),
		})
	}
	payload, err := json.Marshal(arr)
	if err != nil {
		as.node.logger.Warn("failed to encode goal status array",
			"action", as.Name(), "error", err)
		return
	}
	if err := as.status.Publish(&message.Raw{Type: statusArrayType, Data: payload}); err != nil {
		as.node.logger.Warn("failed to publish goal status",
			"action", as.Name(), "error", err)
	}
}

func (as *ActionServer) handleSendGoal(data []byte) []byte {
	var req sendGoalRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return mustMarshal(sendGoalReply{Message: "malformed goal request"})
	}
	if req.GoalID == uuid.Nil {
		return mustMarshal(sendGoalReply{Message: "goal_id is required"})
	}

	goal, err := as.Server.Accept(req.GoalID)
	if err != nil {
		return mustMarshal(sendGoalReply{Message: err.Error()})
	}
	goal.SetRequest(req.Goal)

	if err := as.Server.Execute(req.GoalID); err != nil {
		return mustMarshal(sendGoalReply{Message: err.Error()})
	}
	return mustMarshal(sendGoalReply{Accepted: true})
}

func (as *ActionServer) handleCancelGoal(data []byte) []byte {
	var req cancelGoalRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return mustMarshal(cancelGoalReply{Message: "malformed cancel request"})
	}
	if _, err := as.Server.Transition(req.GoalID, action.EventCancelGoal); err != nil {
		return mustMarshal(cancelGoalReply{Message: err.Error()})
	}
	return mustMarshal(cancelGoalReply{Accepted: true})
}

// handleGetResult blocks on the transport's delivery goroutine until the
// goal reaches a terminal state, mirroring the deferred result response of
// a real action server
func (as *ActionServer) handleGetResult(data []byte) []byte {
	var req getResultRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return mustMarshal(getResultReply{Message: "malformed result request"})
	}

	deadline := time.Now().Add(responseWindow)
	for {
		result, state, err := as.Server.Result(req.GoalID)
		if err == nil {
			return mustMarshal(getResultReply{Status: state.Code(), Result: result})
		}
		if !errors.IsInvalidStateTransition(err) {
			return mustMarshal(getResultReply{Message: err.Error()})
		}
		if time.Now().After(deadline) {
			return mustMarshal(getResultReply{Message: "goal still live"})
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Close tears down the services, the status publisher and the goal server.
// Idempotent.
func (as *ActionServer) Close() error {
	var errs []error
	for _, ts := range as.services {
		if err := ts.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	as.services = nil
	if err := as.status.Close(); err != nil {
		errs = append(errs, err)
	}
	if as.Server.Valid() {
		if err := as.Server.Stop(5 * time.Second); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrs(errs)
}

// ActionClient drives goals on a remote action server: it mirrors the
// status topic into the embedded action.Client and calls the three goal
// services.
type ActionClient struct {
	*action.Client

	node      *Node
	typeName  string
	timeout   time.Duration
	statusSub transport.Subscription
	sendGoal  transport.Client
	cancel    transport.Client
	result    transport.Client
}

// CreateActionClient creates an action client on the resolved name
func (n *Node) CreateActionClient(name, typeName string) (*ActionClient, error) {
	if err := n.checkOpen("create_action_client"); err != nil {
		return nil, err
	}
	resolved, err := n.ResolveTopicName(name)
	if err != nil {
		return nil, err
	}

	timeout := n.cfg.NATS.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ac := &ActionClient{
		Client:   action.NewClient(resolved, action.WithClientLogger(n.logger)),
		node:     n,
		typeName: typeName,
		timeout:  timeout,
	}

	sub, err := n.transport.CreateSubscription(transport.EndpointInfo{
		Node:     n.fqn,
		Name:     resolved + actionStatusSuffix,
		TypeName: statusArrayType,
		QoS:      qos.ProfileActionStatus(),
	}, ac.onStatus)
	if err != nil {
		return nil, err
	}
	ac.statusSub = sub

	endpoints := []struct {
		suffix   string
		typeName string
		dst      *transport.Client
	}{
		{actionSendGoalSuffix, typeName + "_SendGoal", &ac.sendGoal},
		{actionCancelSuffix, typeName + "_CancelGoal", &ac.cancel},
		{actionResultSuffix, typeName + "_GetResult", &ac.result},
	}
	for _, ep := range endpoints {
		tc, err := n.transport.CreateClient(transport.EndpointInfo{
			Node:     n.fqn,
			Name:     resolved + ep.suffix,
			TypeName: ep.typeName,
			QoS:      qos.ProfileServicesDefault(),
		})
		if err != nil {
			_ = ac.Close()
			return nil, err
		}
		*ep.dst = tc
	}

	n.track(ac)
	n.logger.Debug("action client created", "action", resolved, "type", typeName)
	return ac, nil
}

// TypeName returns the action type
func (ac *ActionClient) TypeName() string { return ac.typeName }

// onStatus runs on the transport's delivery goroutine for every status
// array published by the remote server
func (ac *ActionClient) onStatus(data []byte) {
	raw, _, err := ac.node.codec.DecodeRaw(data)
	if err != nil {
		ac.node.logger.Warn("malformed status envelope", "action", ac.Name(), "error", err)
		return
	}
	var arr goalStatusArray
	if err := json.Unmarshal(raw.Data, &arr); err != nil {
		ac.node.logger.Warn("malformed status array", "action", ac.Name(), "error", err)
		return
	}
	for _, entry := range arr.StatusList {
		if err := ac.Client.UpdateStatusCode(entry.GoalID, entry.Status); err != nil {
			ac.node.logger.Warn("rejected status update",
				"action", ac.Name(), "goal_id", entry.GoalID, "error", err)
		}
	}
}

// SendGoal submits a goal under a fresh ID and returns that ID once the
// server accepts it
func (ac *ActionClient) SendGoal(goal []byte) (uuid.UUID, error) {
	id := uuid.New()
	return id, ac.SendGoalWithID(id, goal)
}

// SendGoalWithID submits a goal under a caller-chosen ID. A rejection by
// the server fails with InvalidStateTransition carrying the server's
// reason.
func (ac *ActionClient) SendGoalWithID(goalID uuid.UUID, goal []byte) error {
	if !ac.Valid() {
		return errors.New(errors.KindInvalidHandle, "node", "send_goal", "action client destroyed")
	}
	payload, err := json.Marshal(sendGoalRequest{GoalID: goalID, Goal: goal})
	if err != nil {
		return errors.Wrap(errors.KindUnsupportedType, err, "node", "send_goal", "encode goal request")
	}

	data, err := ac.sendGoal.Call(payload, ac.timeout)
	if err != nil {
		return err
	}
	var reply sendGoalReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return errors.Wrap(errors.KindUnsupportedType, err, "node", "send_goal", "decode goal reply")
	}
	if !reply.Accepted {
		return errors.Newf(errors.KindInvalidStateTransition, "node", "send_goal",
			"goal %s rejected: %s", goalID, reply.Message)
	}
	return ac.Client.UpdateStatus(action.GoalStatus{GoalID: goalID, State: action.StateAccepted})
}

// CancelGoal asks the server to cancel the identified goal
func (ac *ActionClient) CancelGoal(goalID uuid.UUID) error {
	if !ac.Valid() {
		return errors.New(errors.KindInvalidHandle, "node", "cancel_goal", "action client destroyed")
	}
	payload, err := json.Marshal(cancelGoalRequest{GoalID: goalID})
	if err != nil {
		return errors.Wrap(errors.KindUnsupportedType, err, "node", "cancel_goal", "encode cancel request")
	}

	data, err := ac.cancel.Call(payload, ac.timeout)
	if err != nil {
		return err
	}
	var reply cancelGoalReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return errors.Wrap(errors.KindUnsupportedType, err, "node", "cancel_goal", "decode cancel reply")
	}
	if !reply.Accepted {
		return errors.Newf(errors.KindInvalidStateTransition, "node", "cancel_goal",
			"cancel of goal %s rejected: %s", goalID, reply.Message)
	}
	return nil
}

// Result blocks until the identified goal reaches a terminal state on the
// server and returns its result payload and terminal state
func (ac *ActionClient) Result(goalID uuid.UUID) ([]byte, action.State, error) {
	if !ac.Valid() {
		return nil, 0, errors.New(errors.KindInvalidHandle, "node", "get_result", "action client destroyed")
	}
	payload, err := json.Marshal(getResultRequest{GoalID: goalID})
	if err != nil {
		return nil, 0, errors.Wrap(errors.KindUnsupportedType, err, "node", "get_result", "encode result request")
	}

	data, err := ac.result.Call(payload, ac.timeout)
	if err != nil {
		return nil, 0, err
	}
	var reply getResultReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, 0, errors.Wrap(errors.KindUnsupportedType, err, "node", "get_result", "decode result reply")
	}
	if reply.Message != "" {
		return nil, 0, errors.Newf(errors.KindInvalidStateTransition, "node", "get_result",
			"result of goal %s unavailable: %s", goalID, reply.Message)
	}
	state, err := action.StateFromCode(reply.Status)
	if err != nil {
		return nil, 0, err
	}
	return reply.Result, state, nil
}

// Close tears down the subscription, the service clients and the goal
// tracker. Idempotent.
func (ac *ActionClient) Close() error {
	var errs []error
	if ac.statusSub != nil {
		if err := ac.statusSub.Close(); err != nil {
			errs = append(errs, err)
		}
		ac.statusSub = nil
	}
	for _, tc := range []transport.Client{ac.sendGoal, ac.cancel, ac.result} {
		if tc == nil {
			continue
		}
		if err := tc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	ac.sendGoal, ac.cancel, ac.result = nil, nil, nil
	if ac.Client.Valid() {
		if err := ac.Client.Base.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrs(errs)
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func joinErrs(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return stderrors.Join(errs...)
	}
}
