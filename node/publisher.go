package node

import (
	"sync"

	"github.com/XiandiShan/rclgo/errors"
	"github.com/XiandiShan/rclgo/message"
	"github.com/XiandiShan/rclgo/qos"
	"github.com/XiandiShan/rclgo/transport"
)

// Publisher sends typed messages on one topic
type Publisher struct {
	node     *Node
	topic    string
	typeName string
	profile  qos.Profile
	tp       transport.Publisher

	mu     sync.Mutex
	closed bool
}

// CreatePublisher creates a publisher on the resolved topic name
func (n *Node) CreatePublisher(topic, typeName string, profile qos.Profile) (*Publisher, error) {
	if err := n.checkOpen("create_publisher"); err != nil {
		return nil, err
	}
	resolved, err := n.ResolveTopicName(topic)
	if err != nil {
		return nil, err
	}

	tp, err := n.transport.CreatePublisher(transport.EndpointInfo{
		Node:     n.fqn,
		Name:     resolved,
		TypeName: typeName,
		QoS:      profile,
	})
	if err != nil {
		return nil, err
	}

	p := &Publisher{
		node:     n,
		topic:    resolved,
		typeName: typeName,
		profile:  profile,
		tp:       tp,
	}
	n.track(p)
	n.logger.Debug("publisher created", "topic", resolved, "type", typeName)
	return p, nil
}

// Topic returns the resolved topic name
func (p *Publisher) Topic() string { return p.topic }

// TypeName returns the advertised message type
func (p *Publisher) TypeName() string { return p.typeName }

// QoS returns the profile the publisher was created with
func (p *Publisher) QoS() qos.Profile { return p.profile }

// Publish encodes and sends one message
func (p *Publisher) Publish(msg message.Message) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.New(errors.KindInvalidHandle, "node", "publish", "publisher destroyed")
	}
	p.mu.Unlock()

	if msg.TypeName() != p.typeName {
		return errors.Newf(errors.KindUnsupportedType, "node", "publish",
			"message type %s does not match publisher type %s", msg.TypeName(), p.typeName)
	}

	data, err := p.node.codec.Encode(msg, p.node.fqn, p.node.now().AsTime())
	if err != nil {
		return err
	}
	if err := p.tp.Publish(data); err != nil {
		return err
	}
	if m := p.node.metrics; m != nil {
		m.MessagesPublished.WithLabelValues(p.topic).Inc()
	}
	return nil
}

// Close destroys the publisher. Idempotent.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	return p.tp.Close()
}
