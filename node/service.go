package node

import (
	"sync"
	"time"

	"github.com/XiandiShan/rclgo/errors"
	"github.com/XiandiShan/rclgo/qos"
	"github.com/XiandiShan/rclgo/transport"
	"github.com/XiandiShan/rclgo/waitset"
)

// responseWindow bounds how long a transport handler waits for the
// application to answer a taken request
const responseWindow = 30 * time.Second

// Request is one pending service request. The application answers it with
// SendResponse exactly once.
type Request struct {
	Data []byte

	mu        sync.Mutex
	reply     chan []byte
	responded bool
}

// SendResponse completes the request. A second call fails.
func (r *Request) SendResponse(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.responded {
		return errors.New(errors.KindInvalidStateTransition, "node", "send_response",
			"request already answered")
	}
	r.responded = true
	r.reply <- data
	return nil
}

// Service answers requests on one service name. It is a waitable entity
// whose readiness means at least one request is pending.
type Service struct {
	*waitset.Base

	node     *Node
	name     string
	typeName string
	profile  qos.Profile
	ts       transport.Service

	mu      sync.Mutex
	pending []*Request
}

// CreateService creates a service on the resolved name
func (n *Node) CreateService(name, typeName string, profile qos.Profile) (*Service, error) {
	if err := n.checkOpen("create_service"); err != nil {
		return nil, err
	}
	resolved, err := n.ResolveTopicName(name)
	if err != nil {
		return nil, err
	}

	s := &Service{
		Base:     waitset.NewBase(waitset.KindService),
		node:     n,
		name:     resolved,
		typeName: typeName,
		profile:  profile,
	}

	ts, err := n.transport.CreateService(transport.EndpointInfo{
		Node:     n.fqn,
		Name:     resolved,
		TypeName: typeName,
		QoS:      profile,
	}, s.handle)
	if err != nil {
		return nil, err
	}
	s.ts = ts

	n.track(s)
	n.logger.Debug("service created", "service", resolved, "type", typeName)
	return s, nil
}

// Name returns the resolved service name
func (s *Service) Name() string { return s.name }

// TypeName returns the service type
func (s *Service) TypeName() string { return s.typeName }

// handle runs on the transport's delivery goroutine: it parks the request
// for the application and blocks until SendResponse or the window expires
func (s *Service) handle(data []byte) []byte {
	if !s.Valid() {
		return nil
	}

	req := &Request{Data: data, reply: make(chan []byte, 1)}

	s.mu.Lock()
	s.pending = append(s.pending, req)
	s.mu.Unlock()
	s.Notify()

	if m := s.node.metrics; m != nil {
		m.ServiceRequests.WithLabelValues(s.name).Inc()
	}

	timer := time.NewTimer(responseWindow)
	defer timer.Stop()
	select {
	case resp := <-req.reply:
		return resp
	case <-timer.C:
		s.node.logger.Warn("service response window expired", "service", s.name)
		return nil
	}
}

// Ready reports whether a request is pending
func (s *Service) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) > 0
}

// TakeRequest pops the oldest pending request. An empty queue returns
// ErrTakeEmpty.
func (s *Service) TakeRequest() (*Request, error) {
	if !s.Valid() {
		return nil, errors.New(errors.KindInvalidHandle, "node", "take_request", "service destroyed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil, ErrTakeEmpty
	}
	req := s.pending[0]
	s.pending = s.pending[1:]
	return req, nil
}

// Close destroys the service. Idempotent.
func (s *Service) Close() error {
	if !s.Valid() {
		return nil
	}
	err := s.ts.Close()
	if cerr := s.Base.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
