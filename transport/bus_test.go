package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiandiShan/rclgo/errors"
	"github.com/XiandiShan/rclgo/qos"
)

func chatterInfo(node string) EndpointInfo {
	return EndpointInfo{
		Node:     node,
		Name:     "/chatter",
		TypeName: "std_msgs/msg/String",
		QoS:      qos.ProfileDefault(),
	}
}

func TestBus_PublishDeliversToSubscribers(t *testing.T) {
	bus := NewBus()

	var got [][]byte
	_, err := bus.CreateSubscription(chatterInfo("/listener"), func(data []byte) {
		got = append(got, data)
	})
	require.NoError(t, err)

	pub, err := bus.CreatePublisher(chatterInfo("/talker"))
	require.NoError(t, err)

	require.NoError(t, pub.Publish([]byte("one")))
	require.NoError(t, pub.Publish([]byte("two")))

	require.Len(t, got, 2)
	assert.Equal(t, "one", string(got[0]))
	assert.Equal(t, "two", string(got[1]))
}

func TestBus_ClosedSubscriptionStopsReceiving(t *testing.T) {
	bus := NewBus()

	var count int
	sub, err := bus.CreateSubscription(chatterInfo("/listener"), func([]byte) { count++ })
	require.NoError(t, err)
	pub, err := bus.CreatePublisher(chatterInfo("/talker"))
	require.NoError(t, err)

	require.NoError(t, pub.Publish([]byte("x")))
	require.NoError(t, sub.Close())
	require.NoError(t, pub.Publish([]byte("y")))

	assert.Equal(t, 1, count)
}

func TestBus_ClosedPublisherRejectsPublish(t *testing.T) {
	bus := NewBus()
	pub, err := bus.CreatePublisher(chatterInfo("/talker"))
	require.NoError(t, err)
	require.NoError(t, pub.Close())

	err = pub.Publish([]byte("x"))
	assert.True(t, errors.IsInvalidHandle(err))
}

func TestBus_ServiceCall(t *testing.T) {
	bus := NewBus()

	info := EndpointInfo{
		Node:     "/adder",
		Name:     "/add_two_ints",
		TypeName: "example_interfaces/srv/AddTwoInts",
		QoS:      qos.ProfileServicesDefault(),
	}
	_, err := bus.CreateService(info, func(req []byte) []byte {
		return append([]byte("ack:"), req...)
	})
	require.NoError(t, err)

	client, err := bus.CreateClient(info)
	require.NoError(t, err)

	resp, err := client.Call([]byte("1+2"), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ack:1+2", string(resp))
}

func TestBus_SecondResponderRejected(t *testing.T) {
	bus := NewBus()
	info := EndpointInfo{Node: "/a", Name: "/srv", TypeName: "t", QoS: qos.ProfileServicesDefault()}

	_, err := bus.CreateService(info, func(b []byte) []byte { return b })
	require.NoError(t, err)
	_, err = bus.CreateService(info, func(b []byte) []byte { return b })
	assert.True(t, errors.IsTransport(err))
}

func TestBus_CallWithoutResponderTimesOut(t *testing.T) {
	bus := NewBus()
	client, err := bus.CreateClient(EndpointInfo{Name: "/missing"})
	require.NoError(t, err)

	start := time.Now()
	_, err = client.Call([]byte("x"), 20*time.Millisecond)
	assert.True(t, errors.IsTransport(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestBus_GraphQueries(t *testing.T) {
	bus := NewBus()

	_, err := bus.CreatePublisher(chatterInfo("/talker"))
	require.NoError(t, err)
	_, err = bus.CreateSubscription(chatterInfo("/listener"), func([]byte) {})
	require.NoError(t, err)
	_, err = bus.CreateService(EndpointInfo{
		Node: "/adder", Name: "/add_two_ints",
		TypeName: "example_interfaces/srv/AddTwoInts",
	}, func(b []byte) []byte { return b })
	require.NoError(t, err)

	topics := bus.TopicNamesAndTypes()
	require.Contains(t, topics, "/chatter")
	assert.Equal(t, []string{"std_msgs/msg/String"}, topics["/chatter"])

	pubs := bus.PublishersInfoByTopic("/chatter")
	require.Len(t, pubs, 1)
	assert.Equal(t, "/talker", pubs[0].Node)

	subs := bus.SubscriptionsInfoByTopic("/chatter")
	require.Len(t, subs, 1)
	assert.Equal(t, "/listener", subs[0].Node)

	services := bus.ServiceNamesAndTypes()
	assert.Equal(t, []string{"example_interfaces/srv/AddTwoInts"}, services["/add_two_ints"])
}

func TestBus_CloseInvalidatesCreates(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Close(context.Background()))

	_, err := bus.CreatePublisher(chatterInfo("/talker"))
	assert.True(t, errors.IsInvalidHandle(err))
}

func TestSubjectMapping(t *testing.T) {
	assert.Equal(t, "ros.0.chatter", Subject(0, "/chatter"))
	assert.Equal(t, "ros.42.ns.deep.topic", Subject(42, "/ns/deep/topic"))
	assert.Equal(t, "ros.0.srv.add_two_ints", ServiceSubject(0, "/add_two_ints"))
	assert.Equal(t, "ros-7-ns-chatter", StreamName(7, "/ns/chatter"))
}
