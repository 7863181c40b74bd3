// Package node ties the core pieces together: a Node owns its endpoints
// (publishers, subscriptions, services, clients, timers, guard conditions),
// resolves their names at creation, and hands readiness off to wait sets.
package node

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/XiandiShan/rclgo/config"
	"github.com/XiandiShan/rclgo/errors"
	"github.com/XiandiShan/rclgo/message"
	"github.com/XiandiShan/rclgo/metric"
	"github.com/XiandiShan/rclgo/names"
	"github.com/XiandiShan/rclgo/rosclock"
	"github.com/XiandiShan/rclgo/transport"
	"github.com/XiandiShan/rclgo/waitset"
)

// ErrTakeEmpty is returned when taking from an entity with nothing pending
var ErrTakeEmpty = stderrors.New("nothing to take")

// Node is a participant in the graph. Every endpoint it creates resolves
// its name against the node's namespace and the process remap rules, and
// is torn down when the node closes.
type Node struct {
	name      string
	namespace string
	fqn       string

	cfg           *config.Config
	transport     transport.Transport
	ownsTransport bool
	clock         *rosclock.Clock
	logger        *slog.Logger
	metrics       *metric.Metrics
	codec         *message.Codec

	jumpCB int

	mu      sync.Mutex
	closed  bool
	closers []interface{ Close() error }
}

// Option configures a Node
type Option func(*Node)

// WithNamespace sets the node's namespace; defaults to the configured
// default namespace
func WithNamespace(ns string) Option {
	return func(n *Node) { n.namespace = ns }
}

// WithConfig supplies the process configuration
func WithConfig(cfg *config.Config) Option {
	return func(n *Node) { n.cfg = cfg }
}

// WithTransport supplies the transport; the caller keeps ownership
func WithTransport(t transport.Transport) Option {
	return func(n *Node) { n.transport = t }
}

// WithClock sets the clock used for timers and message stamps
func WithClock(clock *rosclock.Clock) Option {
	return func(n *Node) { n.clock = clock }
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) { n.logger = logger }
}

// WithMetrics attaches core metrics
func WithMetrics(m *metric.Metrics) Option {
	return func(n *Node) { n.metrics = m }
}

// WithCodec supplies the codec used by typed endpoints
func WithCodec(codec *message.Codec) Option {
	return func(n *Node) { n.codec = codec }
}

// New creates a node. The name and namespace are validated up front;
// malformed input is reported with the index of the first invalid
// character.
func New(name string, opts ...Option) (*Node, error) {
	n := &Node{
		name:   name,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.cfg == nil {
		n.cfg = config.Default()
	}
	if n.namespace == "" {
		n.namespace = n.cfg.DefaultNamespace
	}
	if n.namespace == "" {
		n.namespace = "/"
	}
	if n.clock == nil {
		n.clock = rosclock.New(rosclock.ClockTypeSystemTime)
	}
	if n.codec == nil {
		n.codec = message.NewCodec()
	}
	if n.transport == nil {
		n.transport = transport.NewBus()
		n.ownsTransport = true
	}

	if verr := names.ValidateNodeName(name); verr != nil {
		return nil, errors.WrapValidation(verr, "node", "new")
	}
	if verr := names.ValidateNamespace(n.namespace); verr != nil {
		return nil, errors.WrapValidation(verr, "node", "new")
	}

	fqn, err := names.FullyQualifiedNodeName(name, n.namespace)
	if err != nil {
		return nil, err
	}
	n.fqn = fqn

	if m := n.metrics; m != nil {
		n.jumpCB = n.clock.AddJumpCallback(0, nil, func(jump rosclock.TimeJump) {
			m.ClockJumps.WithLabelValues(jump.Kind.String()).Inc()
		})
	}

	n.logger = n.logger.With("node", fqn)
	n.logger.Debug("node created", "domain_id", n.cfg.DomainID)
	return n, nil
}

// Name returns the node's bare name
func (n *Node) Name() string { return n.name }

// Namespace returns the node's namespace
func (n *Node) Namespace() string { return n.namespace }

// FullyQualifiedName returns namespace plus name
func (n *Node) FullyQualifiedName() string { return n.fqn }

// Clock returns the node's clock
func (n *Node) Clock() *rosclock.Clock { return n.clock }

// Codec returns the node's message codec
func (n *Node) Codec() *message.Codec { return n.codec }

// Metrics returns the attached metrics, or nil when none were configured
func (n *Node) Metrics() *metric.Metrics { return n.metrics }

// ResolveTopicName expands and remaps a topic or service name relative to
// this node
func (n *Node) ResolveTopicName(name string) (string, error) {
	return names.ResolveName(name, n.name, n.namespace, n.cfg.RemapRules)
}

func (n *Node) checkOpen(operation string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return errors.New(errors.KindInvalidHandle, "node", operation, "node destroyed")
	}
	return nil
}

func (n *Node) track(c interface{ Close() error }) {
	n.mu.Lock()
	n.closers = append(n.closers, c)
	n.mu.Unlock()
}

// CreateGuardCondition creates a guard condition owned by this node
func (n *Node) CreateGuardCondition() (*waitset.GuardCondition, error) {
	if err := n.checkOpen("create_guard_condition"); err != nil {
		return nil, err
	}
	g := waitset.NewGuardCondition()
	n.track(g)
	return g, nil
}

// TopicNamesAndTypes maps each known topic to its advertised type names
func (n *Node) TopicNamesAndTypes() map[string][]string {
	return n.transport.TopicNamesAndTypes()
}

// PublishersInfoByTopic lists publishers on a topic; the name is resolved
// relative to this node first
func (n *Node) PublishersInfoByTopic(topic string) ([]transport.EndpointInfo, error) {
	resolved, err := n.ResolveTopicName(topic)
	if err != nil {
		return nil, err
	}
	return n.transport.PublishersInfoByTopic(resolved), nil
}

// SubscriptionsInfoByTopic lists subscriptions on a topic
func (n *Node) SubscriptionsInfoByTopic(topic string) ([]transport.EndpointInfo, error) {
	resolved, err := n.ResolveTopicName(topic)
	if err != nil {
		return nil, err
	}
	return n.transport.SubscriptionsInfoByTopic(resolved), nil
}

// ServiceNamesAndTypes maps each known service to its advertised types
func (n *Node) ServiceNamesAndTypes() map[string][]string {
	return n.transport.ServiceNamesAndTypes()
}

// Close tears down every endpoint the node created. Idempotent.
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	closers := n.closers
	n.closers = nil
	n.mu.Unlock()

	if n.jumpCB != 0 {
		n.clock.RemoveJumpCallback(n.jumpCB)
	}

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if n.ownsTransport {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.transport.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	n.logger.Debug("node closed")
	return stderrors.Join(errs...)
}

func (n *Node) now() rosclock.Time {
	now, err := n.clock.Now()
	if err != nil {
		return rosclock.Time{}
	}
	return now
}
