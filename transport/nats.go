package transport

import (
	"context"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/XiandiShan/rclgo/errors"
	"github.com/XiandiShan/rclgo/natsclient"
	"github.com/XiandiShan/rclgo/qos"
)

// NATS is the networked transport: topics and services map onto NATS
// subjects scoped by domain ID, and topics offered with TRANSIENT_LOCAL
// durability are backed by a JetStream stream so late subscribers replay
// history.
//
// Graph queries reflect only endpoints created through this transport
// instance; remote endpoint discovery is out of scope.
type NATS struct {
	client   *natsclient.Client
	domainID int

	mu       sync.RWMutex
	closed   bool
	pubs     map[string][]EndpointInfo
	subs     map[string][]EndpointInfo
	services map[string][]EndpointInfo
}

// NewNATS wraps a connected client as a transport for the given domain
func NewNATS(client *natsclient.Client, domainID int) *NATS {
	return &NATS{
		client:   client,
		domainID: domainID,
		pubs:     make(map[string][]EndpointInfo),
		subs:     make(map[string][]EndpointInfo),
		services: make(map[string][]EndpointInfo),
	}
}

// usesJetStream reports whether a profile's durability requires JetStream
// retention rather than plain core NATS delivery
func usesJetStream(p qos.Profile) bool {
	return p.Durability == qos.DurabilityTransientLocal
}

// streamConfig builds the stream backing a durable topic. Depth bounds the
// retained history per subject, with a floor of one message.
func streamConfig(domainID int, topic string, p qos.Profile) jetstream.StreamConfig {
	depth := int64(p.Depth)
	if depth <= 0 {
		depth = 1
	}
	return jetstream.StreamConfig{
		Name:              StreamName(domainID, topic),
		Subjects:          []string{Subject(domainID, topic)},
		Retention:         jetstream.LimitsPolicy,
		MaxMsgsPerSubject: depth,
	}
}

type natsPublisher struct {
	t       *NATS
	info    EndpointInfo
	subject string
	durable bool
	mu      sync.Mutex
	closed  bool
}

type natsSubscription struct {
	t      *NATS
	info   EndpointInfo
	sub    *nats.Subscription
	cc     jetstream.ConsumeContext
	mu     sync.Mutex
	closed bool
}

type natsService struct {
	t      *NATS
	info   EndpointInfo
	sub    *nats.Subscription
	mu     sync.Mutex
	closed bool
}

type natsClientEndpoint struct {
	t       *NATS
	info    EndpointInfo
	subject string
	mu      sync.Mutex
	closed  bool
}

func (t *NATS) checkOpen(operation string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return errors.New(errors.KindInvalidHandle, "transport", operation, "transport closed")
	}
	return nil
}

// CreatePublisher creates a publisher; TRANSIENT_LOCAL durability ensures
// the backing stream exists before the first publish
func (t *NATS) CreatePublisher(info EndpointInfo) (Publisher, error) {
	if err := t.checkOpen("create_publisher"); err != nil {
		return nil, err
	}

	p := &natsPublisher{
		t:       t,
		info:    info,
		subject: Subject(t.domainID, info.Name),
		durable: usesJetStream(info.QoS),
	}
	if p.durable {
		_, err := t.client.CreateStream(context.Background(),
			streamConfig(t.domainID, info.Name, info.QoS))
		if err != nil {
			return nil, err
		}
	}

	t.mu.Lock()
	t.pubs[info.Name] = append(t.pubs[info.Name], info)
	t.mu.Unlock()
	return p, nil
}

// CreateSubscription creates a subscription; a TRANSIENT_LOCAL request
// attaches a JetStream consumer so retained history replays first
func (t *NATS) CreateSubscription(info EndpointInfo, handler func([]byte)) (Subscription, error) {
	if err := t.checkOpen("create_subscription"); err != nil {
		return nil, err
	}

	s := &natsSubscription{t: t, info: info}
	subject := Subject(t.domainID, info.Name)

	if usesJetStream(info.QoS) {
		cc, err := t.client.ConsumeStream(context.Background(),
			StreamName(t.domainID, info.Name), subject, handler)
		if err != nil {
			return nil, err
		}
		s.cc = cc
	} else {
		sub, err := t.client.Subscribe(subject, handler)
		if err != nil {
			return nil, err
		}
		s.sub = sub
	}

	t.mu.Lock()
	t.subs[info.Name] = append(t.subs[info.Name], info)
	t.mu.Unlock()
	return s, nil
}

// CreateService registers a responder on the service's request subject
func (t *NATS) CreateService(info EndpointInfo, handler func([]byte) []byte) (Service, error) {
	if err := t.checkOpen("create_service"); err != nil {
		return nil, err
	}

	sub, err := t.client.SubscribeRequest(ServiceSubject(t.domainID, info.Name), handler)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.services[info.Name] = append(t.services[info.Name], info)
	t.mu.Unlock()
	return &natsService{t: t, info: info, sub: sub}, nil
}

// CreateClient creates a request-reply client for a service
func (t *NATS) CreateClient(info EndpointInfo) (Client, error) {
	if err := t.checkOpen("create_client"); err != nil {
		return nil, err
	}
	return &natsClientEndpoint{
		t:       t,
		info:    info,
		subject: ServiceSubject(t.domainID, info.Name),
	}, nil
}

// Close marks the transport closed. The underlying client is owned by the
// caller and stays open.
func (t *NATS) Close(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// TopicNamesAndTypes maps locally created topics to their types
func (t *NATS) TopicNamesAndTypes() map[string][]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string][]string)
	add := func(topic, typeName string) {
		for _, existing := range out[topic] {
			if existing == typeName {
				return
			}
		}
		out[topic] = append(out[topic], typeName)
	}
	for topic, infos := range t.pubs {
		for _, info := range infos {
			add(topic, info.TypeName)
		}
	}
	for topic, infos := range t.subs {
		for _, info := range infos {
			add(topic, info.TypeName)
		}
	}
	return out
}

// PublishersInfoByTopic lists locally created publishers on a topic
func (t *NATS) PublishersInfoByTopic(topic string) []EndpointInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]EndpointInfo(nil), t.pubs[topic]...)
}

// SubscriptionsInfoByTopic lists locally created subscriptions on a topic
func (t *NATS) SubscriptionsInfoByTopic(topic string) []EndpointInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]EndpointInfo(nil), t.subs[topic]...)
}

// ServiceNamesAndTypes maps locally created services to their types
func (t *NATS) ServiceNamesAndTypes() map[string][]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string][]string)
	for name, infos := range t.services {
		for _, info := range infos {
			out[name] = append(out[name], info.TypeName)
		}
	}
	return out
}

func (p *natsPublisher) Publish(data []byte) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.New(errors.KindInvalidHandle, "transport", "publish", "publisher closed")
	}
	p.mu.Unlock()

	if p.durable {
		return p.t.client.PublishToStream(context.Background(), p.subject, data)
	}
	return p.t.client.Publish(p.subject, data)
}

func (p *natsPublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.t.mu.Lock()
	defer p.t.mu.Unlock()
	p.t.pubs[p.info.Name] = removeInfo(p.t.pubs[p.info.Name], p.info)
	return nil
}

func (s *natsSubscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.cc != nil {
		s.cc.Stop()
	}
	var err error
	if s.sub != nil {
		err = s.sub.Unsubscribe()
	}

	s.t.mu.Lock()
	s.t.subs[s.info.Name] = removeInfo(s.t.subs[s.info.Name], s.info)
	s.t.mu.Unlock()

	if err != nil {
		return errors.WrapTransport(err, "transport", "close_subscription")
	}
	return nil
}

func (s *natsService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.sub.Unsubscribe()

	s.t.mu.Lock()
	s.t.services[s.info.Name] = removeInfo(s.t.services[s.info.Name], s.info)
	s.t.mu.Unlock()

	if err != nil {
		return errors.WrapTransport(err, "transport", "close_service")
	}
	return nil
}

func (c *natsClientEndpoint) Call(data []byte, timeout time.Duration) ([]byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.New(errors.KindInvalidHandle, "transport", "call", "client closed")
	}
	c.mu.Unlock()
	return c.t.client.Request(c.subject, data, timeout)
}

func (c *natsClientEndpoint) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func removeInfo(list []EndpointInfo, target EndpointInfo) []EndpointInfo {
	for i, v := range list {
		if v == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
