package node

import (
	"sync"
	"time"

	"github.com/XiandiShan/rclgo/errors"
	"github.com/XiandiShan/rclgo/qos"
	"github.com/XiandiShan/rclgo/transport"
	"github.com/XiandiShan/rclgo/waitset"
)

// Response is one completed service call
type Response struct {
	Sequence int64
	Data     []byte
	Err      error
}

// Client issues requests to one service. Calls run in the background; the
// client becomes ready when a response arrives and TakeResponse retrieves
// it.
type Client struct {
	*waitset.Base

	node     *Node
	name     string
	typeName string
	profile  qos.Profile
	timeout  time.Duration
	tc       transport.Client

	mu        sync.Mutex
	sequence  int64
	responses []Response
}

// CreateClient creates a service client on the resolved name
func (n *Node) CreateClient(name, typeName string, profile qos.Profile) (*Client, error) {
	if err := n.checkOpen("create_client"); err != nil {
		return nil, err
	}
	resolved, err := n.ResolveTopicName(name)
	if err != nil {
		return nil, err
	}

	tc, err := n.transport.CreateClient(transport.EndpointInfo{
		Node:     n.fqn,
		Name:     resolved,
		TypeName: typeName,
		QoS:      profile,
	})
	if err != nil {
		return nil, err
	}

	timeout := n.cfg.NATS.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	c := &Client{
		Base:     waitset.NewBase(waitset.KindClient),
		node:     n,
		name:     resolved,
		typeName: typeName,
		profile:  profile,
		timeout:  timeout,
		tc:       tc,
	}
	n.track(c)
	n.logger.Debug("client created", "service", resolved, "type", typeName)
	return c, nil
}

// ServiceName returns the resolved service name
func (c *Client) ServiceName() string { return c.name }

// TypeName returns the service type
func (c *Client) TypeName() string { return c.typeName }

// SendRequest issues a call in the background and returns its sequence
// number; the matching Response carries the same number
func (c *Client) SendRequest(data []byte) (int64, error) {
	if !c.Valid() {
		return 0, errors.New(errors.KindInvalidHandle, "node", "send_request", "client destroyed")
	}

	c.mu.Lock()
	c.sequence++
	seq := c.sequence
	c.mu.Unlock()

	go func() {
		resp, err := c.tc.Call(data, c.timeout)
		if !c.Valid() {
			return
		}
		c.mu.Lock()
		c.responses = append(c.responses, Response{Sequence: seq, Data: resp, Err: err})
		c.mu.Unlock()
		c.Notify()
	}()
	return seq, nil
}

// Call issues a request and blocks for its response
func (c *Client) Call(data []byte) ([]byte, error) {
	if !c.Valid() {
		return nil, errors.New(errors.KindInvalidHandle, "node", "call", "client destroyed")
	}
	return c.tc.Call(data, c.timeout)
}

// Ready reports whether a response is pending
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.responses) > 0
}

// TakeResponse pops the oldest completed response. An empty queue returns
// ErrTakeEmpty.
func (c *Client) TakeResponse() (Response, error) {
	if !c.Valid() {
		return Response{}, errors.New(errors.KindInvalidHandle, "node", "take_response", "client destroyed")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.responses) == 0 {
		return Response{}, ErrTakeEmpty
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}

// Close destroys the client. Idempotent.
func (c *Client) Close() error {
	if !c.Valid() {
		return nil
	}
	err := c.tc.Close()
	if cerr := c.Base.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
