package node

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiandiShan/rclgo/config"
	"github.com/XiandiShan/rclgo/errors"
	"github.com/XiandiShan/rclgo/message"
	"github.com/XiandiShan/rclgo/metric"
	"github.com/XiandiShan/rclgo/names"
	"github.com/XiandiShan/rclgo/qos"
	"github.com/XiandiShan/rclgo/rosclock"
	"github.com/XiandiShan/rclgo/transport"
	"github.com/XiandiShan/rclgo/waitset"
)

type stringMsg struct {
	Data string `json:"data"`
}

func (m *stringMsg) TypeName() string { return "std_msgs/msg/String" }

func (m *stringMsg) MarshalPayload() ([]byte, error) { return json.Marshal(m) }

func (m *stringMsg) UnmarshalPayload(data []byte) error { return json.Unmarshal(data, m) }

const stringType = "std_msgs/msg/String"

func newTestNode(t *testing.T, name string, opts ...Option) *Node {
	t.Helper()
	codec := message.NewCodec()
	codec.Register(stringType, func() message.Message { return &stringMsg{} })
	n, err := New(name, append([]Option{WithCodec(codec)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func TestNew_Validation(t *testing.T) {
	_, err := New("")
	assert.True(t, errors.IsValidationError(err))

	_, err = New("bad/name")
	assert.True(t, errors.IsValidationError(err))

	_, err = New("talker", WithNamespace("no_leading_slash//"))
	assert.True(t, errors.IsValidationError(err))
}

func TestNew_FullyQualifiedName(t *testing.T) {
	n := newTestNode(t, "talker", WithNamespace("/demo"))
	assert.Equal(t, "talker", n.Name())
	assert.Equal(t, "/demo", n.Namespace())
	assert.Equal(t, "/demo/talker", n.FullyQualifiedName())

	root := newTestNode(t, "talker2")
	assert.Equal(t, "/talker2", root.FullyQualifiedName())
}

func TestNode_PublishSubscribe(t *testing.T) {
	bus := transport.NewBus()
	pubNode := newTestNode(t, "talker", WithTransport(bus))
	subNode := newTestNode(t, "listener", WithTransport(bus))

	sub, err := subNode.CreateSubscription("chatter", stringType, qos.ProfileDefault())
	require.NoError(t, err)
	pub, err := pubNode.CreatePublisher("chatter", stringType, qos.ProfileDefault())
	require.NoError(t, err)

	assert.Equal(t, "/chatter", pub.Topic())
	assert.False(t, sub.Ready())

	require.NoError(t, pub.Publish(&stringMsg{Data: "hello"}))
	require.True(t, sub.Ready())

	msg, env, err := sub.Take()
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.(*stringMsg).Data)
	assert.Equal(t, "/talker", env.Publisher)

	_, _, err = sub.Take()
	assert.ErrorIs(t, err, ErrTakeEmpty)
}

func TestNode_PublishWrongTypeRejected(t *testing.T) {
	n := newTestNode(t, "talker")
	pub, err := n.CreatePublisher("chatter", "std_msgs/msg/Int32", qos.ProfileDefault())
	require.NoError(t, err)

	err = pub.Publish(&stringMsg{Data: "x"})
	assert.True(t, errors.IsUnsupportedType(err))
}

func TestSubscription_KeepLastDropsOldest(t *testing.T) {
	bus := transport.NewBus()
	pubNode := newTestNode(t, "talker", WithTransport(bus))
	subNode := newTestNode(t, "listener", WithTransport(bus))

	profile := qos.ProfileDefault()
	profile.Depth = 2
	sub, err := subNode.CreateSubscription("chatter", stringType, profile)
	require.NoError(t, err)
	pub, err := pubNode.CreatePublisher("chatter", stringType, profile)
	require.NoError(t, err)

	for _, s := range []string{"one", "two", "three"} {
		require.NoError(t, pub.Publish(&stringMsg{Data: s}))
	}

	assert.Equal(t, 2, sub.Pending())
	msg, _, err := sub.Take()
	require.NoError(t, err)
	assert.Equal(t, "two", msg.(*stringMsg).Data)
}

func TestSubscription_KeepAllRetainsHistory(t *testing.T) {
	bus := transport.NewBus()
	pubNode := newTestNode(t, "talker", WithTransport(bus))
	subNode := newTestNode(t, "listener", WithTransport(bus))

	profile := qos.ProfileDefault()
	profile.History = qos.HistoryKeepAll
	profile.Depth = 2
	sub, err := subNode.CreateSubscription("chatter", stringType, profile)
	require.NoError(t, err)
	pub, err := pubNode.CreatePublisher("chatter", stringType, profile)
	require.NoError(t, err)

	for _, s := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, pub.Publish(&stringMsg{Data: s}))
	}

	assert.Equal(t, 5, sub.Pending())
	msg, _, err := sub.Take()
	require.NoError(t, err)
	assert.Equal(t, "a", msg.(*stringMsg).Data)
}

func TestSubscription_SystemDefaultHonorsDepth(t *testing.T) {
	bus := transport.NewBus()
	pubNode := newTestNode(t, "talker", WithTransport(bus))
	subNode := newTestNode(t, "listener", WithTransport(bus))

	profile := qos.ProfileDefault()
	profile.History = qos.HistorySystemDefault
	profile.Depth = 3
	sub, err := subNode.CreateSubscription("chatter", stringType, profile)
	require.NoError(t, err)
	pub, err := pubNode.CreatePublisher("chatter", stringType, profile)
	require.NoError(t, err)

	for _, s := range []string{"a", "b", "c", "d"} {
		require.NoError(t, pub.Publish(&stringMsg{Data: s}))
	}

	assert.Equal(t, 3, sub.Pending())
	msg, _, err := sub.Take()
	require.NoError(t, err)
	assert.Equal(t, "b", msg.(*stringMsg).Data)
}

func TestSubscription_WaitSetIntegration(t *testing.T) {
	bus := transport.NewBus()
	pubNode := newTestNode(t, "talker", WithTransport(bus))
	subNode := newTestNode(t, "listener", WithTransport(bus))

	sub, err := subNode.CreateSubscription("chatter", stringType, qos.ProfileDefault())
	require.NoError(t, err)
	pub, err := pubNode.CreatePublisher("chatter", stringType, qos.ProfileDefault())
	require.NoError(t, err)

	ws := waitset.New(waitset.Capacities{Subscriptions: 1})
	require.NoError(t, ws.Add(sub))

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = pub.Publish(&stringMsg{Data: "wake"})
	}()

	res, err := ws.Wait(time.Second)
	require.NoError(t, err)
	require.Len(t, res.Subscriptions, 1)
	assert.Same(t, sub, res.Subscriptions[0])
}

func TestNode_ServiceClient(t *testing.T) {
	bus := transport.NewBus()
	srvNode := newTestNode(t, "adder", WithTransport(bus))
	cliNode := newTestNode(t, "caller", WithTransport(bus))

	svc, err := srvNode.CreateService("add_two_ints", "example_interfaces/srv/AddTwoInts", qos.ProfileServicesDefault())
	require.NoError(t, err)
	cli, err := cliNode.CreateClient("add_two_ints", "example_interfaces/srv/AddTwoInts", qos.ProfileServicesDefault())
	require.NoError(t, err)

	// Answer the first pending request from a server goroutine.
	go func() {
		ws := waitset.New(waitset.Capacities{Services: 1})
		if err := ws.Add(svc); err != nil {
			return
		}
		if _, err := ws.Wait(time.Second); err != nil {
			return
		}
		req, err := svc.TakeRequest()
		if err != nil {
			return
		}
		_ = req.SendResponse(append([]byte("sum:"), req.Data...))
	}()

	seq, err := cli.SendRequest([]byte("1+2"))
	require.NoError(t, err)

	ws := waitset.New(waitset.Capacities{Clients: 1})
	require.NoError(t, ws.Add(cli))
	_, err = ws.Wait(2 * time.Second)
	require.NoError(t, err)

	resp, err := cli.TakeResponse()
	require.NoError(t, err)
	require.NoError(t, resp.Err)
	assert.Equal(t, seq, resp.Sequence)
	assert.Equal(t, "sum:1+2", string(resp.Data))
}

func TestRequest_DoubleResponseRejected(t *testing.T) {
	req := &Request{Data: []byte("x"), reply: make(chan []byte, 1)}
	require.NoError(t, req.SendResponse([]byte("a")))
	err := req.SendResponse([]byte("b"))
	assert.True(t, errors.IsInvalidStateTransition(err))
}

func TestNode_RemapRulesApply(t *testing.T) {
	cfg := config.Default()
	cfg.RemapRules = []names.RemapRule{{From: "/chatter", To: "/conversation"}}

	n := newTestNode(t, "talker", WithConfig(cfg))
	pub, err := n.CreatePublisher("chatter", stringType, qos.ProfileDefault())
	require.NoError(t, err)
	assert.Equal(t, "/conversation", pub.Topic())
}

func TestNode_GraphQueries(t *testing.T) {
	bus := transport.NewBus()
	pubNode := newTestNode(t, "talker", WithTransport(bus))
	subNode := newTestNode(t, "listener", WithTransport(bus))

	_, err := pubNode.CreatePublisher("chatter", stringType, qos.ProfileDefault())
	require.NoError(t, err)
	_, err = subNode.CreateSubscription("chatter", stringType, qos.ProfileDefault())
	require.NoError(t, err)

	topics := pubNode.TopicNamesAndTypes()
	assert.Equal(t, []string{stringType}, topics["/chatter"])

	pubs, err := subNode.PublishersInfoByTopic("chatter")
	require.NoError(t, err)
	require.Len(t, pubs, 1)
	assert.Equal(t, "/talker", pubs[0].Node)
}

func TestNode_CloseInvalidatesEndpoints(t *testing.T) {
	n := newTestNode(t, "talker")
	pub, err := n.CreatePublisher("chatter", stringType, qos.ProfileDefault())
	require.NoError(t, err)

	require.NoError(t, n.Close())
	require.NoError(t, n.Close())

	err = pub.Publish(&stringMsg{Data: "x"})
	assert.True(t, errors.IsInvalidHandle(err))

	_, err = n.CreatePublisher("other", stringType, qos.ProfileDefault())
	assert.True(t, errors.IsInvalidHandle(err))
}

func TestNode_MetricsCountClockJumps(t *testing.T) {
	m := metric.NewMetrics()
	clk := rosclock.New(rosclock.ClockTypeROSTime)
	n, err := New("jumper", WithClock(clk), WithMetrics(m))
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })

	_, err = clk.SetROSTimeOverrideActive(true)
	require.NoError(t, err)
	require.NoError(t, clk.SetROSTimeOverride(12_345))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClockJumps.WithLabelValues("ros_time_activated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClockJumps.WithLabelValues("ros_time_no_change")))

	require.NoError(t, n.Close())
	require.NoError(t, clk.SetROSTimeOverride(99_999))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClockJumps.WithLabelValues("ros_time_no_change")),
		"closed node must stop counting jumps")
}
