package node

import (
	"sync"

	"github.com/XiandiShan/rclgo/errors"
	"github.com/XiandiShan/rclgo/message"
	"github.com/XiandiShan/rclgo/qos"
	"github.com/XiandiShan/rclgo/transport"
	"github.com/XiandiShan/rclgo/waitset"
)

// Subscription receives typed messages on one topic. Incoming messages
// queue up to the QoS history depth; with KEEP_LAST the oldest message is
// dropped when the queue is full. It is a waitable entity whose readiness
// means the queue is non-empty.
type Subscription struct {
	*waitset.Base

	node     *Node
	topic    string
	typeName string
	profile  qos.Profile
	ts       transport.Subscription

	mu    sync.Mutex
	queue [][]byte
}

// CreateSubscription creates a subscription on the resolved topic name
func (n *Node) CreateSubscription(topic, typeName string, profile qos.Profile) (*Subscription, error) {
	if err := n.checkOpen("create_subscription"); err != nil {
		return nil, err
	}
	resolved, err := n.ResolveTopicName(topic)
	if err != nil {
		return nil, err
	}

	s := &Subscription{
		Base:     waitset.NewBase(waitset.KindSubscription),
		node:     n,
		topic:    resolved,
		typeName: typeName,
		profile:  profile,
	}

	ts, err := n.transport.CreateSubscription(transport.EndpointInfo{
		Node:     n.fqn,
		Name:     resolved,
		TypeName: typeName,
		QoS:      profile,
	}, s.push)
	if err != nil {
		return nil, err
	}
	s.ts = ts

	n.track(s)
	n.logger.Debug("subscription created", "topic", resolved, "type", typeName)
	return s, nil
}

// Topic returns the resolved topic name
func (s *Subscription) Topic() string { return s.topic }

// TypeName returns the subscribed message type
func (s *Subscription) TypeName() string { return s.typeName }

// QoS returns the profile the subscription was created with
func (s *Subscription) QoS() qos.Profile { return s.profile }

func (s *Subscription) push(data []byte) {
	if !s.Valid() {
		return
	}

	// KEEP_ALL retains everything, bounded only by resources. The other
	// policies honor Depth, falling back to 1 when it is unset.
	depth := s.profile.Depth
	if s.profile.History == qos.HistoryKeepAll {
		depth = 0
	} else if depth <= 0 {
		depth = 1
	}

	s.mu.Lock()
	dropped := false
	if depth > 0 && len(s.queue) >= depth {
		s.queue = s.queue[1:]
		dropped = true
	}
	s.queue = append(s.queue, data)
	s.mu.Unlock()

	if m := s.node.metrics; m != nil {
		m.MessagesReceived.WithLabelValues(s.topic).Inc()
		if dropped {
			m.MessagesDropped.WithLabelValues(s.topic).Inc()
		}
	}
	s.Notify()
}

// Ready reports whether a message is queued
func (s *Subscription) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) > 0
}

// Pending returns the number of queued messages
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Take pops the oldest queued message, decoded through the node's codec.
// An empty queue returns ErrTakeEmpty.
func (s *Subscription) Take() (message.Message, *message.Envelope, error) {
	if !s.Valid() {
		return nil, nil, errors.New(errors.KindInvalidHandle, "node", "take", "subscription destroyed")
	}

	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return nil, nil, ErrTakeEmpty
	}
	data := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()

	return s.node.codec.Decode(data)
}

// TakeRaw pops the oldest queued message without decoding the payload
func (s *Subscription) TakeRaw() (*message.Raw, *message.Envelope, error) {
	if !s.Valid() {
		return nil, nil, errors.New(errors.KindInvalidHandle, "node", "take_raw", "subscription destroyed")
	}

	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return nil, nil, ErrTakeEmpty
	}
	data := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()

	return s.node.codec.DecodeRaw(data)
}

// Close destroys the subscription. Idempotent.
func (s *Subscription) Close() error {
	if !s.Valid() {
		return nil
	}
	err := s.ts.Close()
	if cerr := s.Base.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
