package transport

import (
	"context"
	"sync"
	"time"

	"github.com/XiandiShan/rclgo/errors"
)

// Bus is an in-process transport. Delivery is synchronous: Publish invokes
// every live subscription handler on the calling goroutine. It backs tests
// and single-process graphs.
type Bus struct {
	mu       sync.RWMutex
	closed   bool
	pubs     map[string][]*busPublisher
	subs     map[string][]*busSubscription
	services map[string]*busService
}

// NewBus creates an empty in-process transport
func NewBus() *Bus {
	return &Bus{
		pubs:     make(map[string][]*busPublisher),
		subs:     make(map[string][]*busSubscription),
		services: make(map[string]*busService),
	}
}

type busPublisher struct {
	bus    *Bus
	info   EndpointInfo
	mu     sync.Mutex
	closed bool
}

type busSubscription struct {
	bus     *Bus
	info    EndpointInfo
	handler func([]byte)
	mu      sync.Mutex
	closed  bool
}

type busService struct {
	bus     *Bus
	info    EndpointInfo
	handler func([]byte) []byte
	mu      sync.Mutex
	closed  bool
}

type busClient struct {
	bus    *Bus
	info   EndpointInfo
	mu     sync.Mutex
	closed bool
}

// CreatePublisher registers a publisher endpoint on a topic
func (b *Bus) CreatePublisher(info EndpointInfo) (Publisher, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New(errors.KindInvalidHandle, "transport", "create_publisher", "bus closed")
	}
	p := &busPublisher{bus: b, info: info}
	b.pubs[info.Name] = append(b.pubs[info.Name], p)
	return p, nil
}

// CreateSubscription registers a subscription endpoint on a topic
func (b *Bus) CreateSubscription(info EndpointInfo, handler func([]byte)) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New(errors.KindInvalidHandle, "transport", "create_subscription", "bus closed")
	}
	s := &busSubscription{bus: b, info: info, handler: handler}
	b.subs[info.Name] = append(b.subs[info.Name], s)
	return s, nil
}

// CreateService registers the single responder for a service name
func (b *Bus) CreateService(info EndpointInfo, handler func([]byte) []byte) (Service, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New(errors.KindInvalidHandle, "transport", "create_service", "bus closed")
	}
	if _, ok := b.services[info.Name]; ok {
		return nil, errors.Newf(errors.KindTransport, "transport", "create_service",
			"service %s already has a responder", info.Name)
	}
	s := &busService{bus: b, info: info, handler: handler}
	b.services[info.Name] = s
	return s, nil
}

// CreateClient registers a client endpoint for a service name
func (b *Bus) CreateClient(info EndpointInfo) (Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New(errors.KindInvalidHandle, "transport", "create_client", "bus closed")
	}
	return &busClient{bus: b, info: info}, nil
}

// Close tears down every endpoint
func (b *Bus) Close(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.pubs = make(map[string][]*busPublisher)
	b.subs = make(map[string][]*busSubscription)
	b.services = make(map[string]*busService)
	return nil
}

// TopicNamesAndTypes maps each topic with at least one endpoint to its
// advertised types
func (b *Bus) TopicNamesAndTypes() map[string][]string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string][]string)
	add := func(topic, typeName string) {
		for _, t := range out[topic] {
			if t == typeName {
				return
			}
		}
		out[topic] = append(out[topic], typeName)
	}
	for topic, pubs := range b.pubs {
		for _, p := range pubs {
			add(topic, p.info.TypeName)
		}
	}
	for topic, subs := range b.subs {
		for _, s := range subs {
			add(topic, s.info.TypeName)
		}
	}
	return out
}

// PublishersInfoByTopic lists the publishers on a topic
func (b *Bus) PublishersInfoByTopic(topic string) []EndpointInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []EndpointInfo
	for _, p := range b.pubs[topic] {
		out = append(out, p.info)
	}
	return out
}

// SubscriptionsInfoByTopic lists the subscriptions on a topic
func (b *Bus) SubscriptionsInfoByTopic(topic string) []EndpointInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []EndpointInfo
	for _, s := range b.subs[topic] {
		out = append(out, s.info)
	}
	return out
}

// ServiceNamesAndTypes maps each service with a responder to its type
func (b *Bus) ServiceNamesAndTypes() map[string][]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string][]string)
	for name, s := range b.services {
		out[name] = []string{s.info.TypeName}
	}
	return out
}

// Publish delivers data synchronously to every live subscription on the
// publisher's topic
func (p *busPublisher) Publish(data []byte) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.New(errors.KindInvalidHandle, "transport", "publish", "publisher closed")
	}
	p.mu.Unlock()

	p.bus.mu.RLock()
	subs := make([]*busSubscription, len(p.bus.subs[p.info.Name]))
	copy(subs, p.bus.subs[p.info.Name])
	p.bus.mu.RUnlock()

	for _, s := range subs {
		s.deliver(data)
	}
	return nil
}

func (p *busPublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	p.bus.pubs[p.info.Name] = removeEndpoint(p.bus.pubs[p.info.Name], p)
	return nil
}

func (s *busSubscription) deliver(data []byte) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if !closed {
		s.handler(data)
	}
}

func (s *busSubscription) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.bus.subs[s.info.Name] = removeEndpoint(s.bus.subs[s.info.Name], s)
	return nil
}

func (s *busService) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.bus.services[s.info.Name] == s {
		delete(s.bus.services, s.info.Name)
	}
	return nil
}

// Call invokes the registered responder synchronously. The timeout only
// bounds waiting for a responder to exist, mirroring a networked call.
func (c *busClient) Call(data []byte, timeout time.Duration) ([]byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.New(errors.KindInvalidHandle, "transport", "call", "client closed")
	}
	c.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for {
		c.bus.mu.RLock()
		svc := c.bus.services[c.info.Name]
		c.bus.mu.RUnlock()
		if svc != nil {
			return svc.handler(data), nil
		}
		if timeout >= 0 && !time.Now().Before(deadline) {
			return nil, errors.Newf(errors.KindTransport, "transport", "call",
				"no responder for service %s", c.info.Name)
		}
		time.Sleep(time.Millisecond)
	}
}

func (c *busClient) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func removeEndpoint[T comparable](list []T, target T) []T {
	for i, v := range list {
		if v == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
