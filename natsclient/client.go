// Package natsclient manages the NATS connection used by the networked
// transport, with a circuit breaker around connection attempts and
// JetStream access for durable topics.
package natsclient

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/XiandiShan/rclgo/errors"
	"github.com/XiandiShan/rclgo/metric"
	"github.com/XiandiShan/rclgo/pkg/retry"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusCircuitOpen
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Sentinel errors
var (
	ErrNotConnected = stderrors.New("not connected to NATS")
	ErrCircuitOpen  = stderrors.New("circuit breaker is open")
	ErrClosed       = stderrors.New("client is closed")
)

// Client manages one NATS connection. Connection attempts run through a
// circuit breaker: after circuitThreshold consecutive failures the circuit
// opens and attempts are rejected until the backoff elapses.
type Client struct {
	url    string
	logger *slog.Logger

	status   atomic.Value // ConnectionStatus
	failures atomic.Int32
	backoff  atomic.Value // time.Duration

	circuitThreshold int32
	maxBackoff       time.Duration

	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration
	clientName    string

	retryCfg retry.Config
	metrics  *metric.Metrics

	mu   sync.RWMutex
	conn *nats.Conn
	js   jetstream.JetStream
	subs []*nats.Subscription

	closed atomic.Bool
}

// NewClient creates a client for the given NATS URL
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:              url,
		logger:           slog.Default(),
		circuitThreshold: 5,
		maxBackoff:       30 * time.Second,
		maxReconnects:    -1,
		reconnectWait:    2 * time.Second,
		pingInterval:     30 * time.Second,
		timeout:          5 * time.Second,
		drainTimeout:     5 * time.Second,
		clientName:       "rclgo",
		retryCfg:         retry.DefaultConfig(),
	}
	c.status.Store(StatusDisconnected)
	c.backoff.Store(time.Second)

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// URL returns the configured NATS URL
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	return c.status.Load().(ConnectionStatus)
}

func (c *Client) setStatus(status ConnectionStatus) {
	c.status.Store(status)
	c.observeStatus(status)
}

func (c *Client) observeStatus(status ConnectionStatus) {
	if c.metrics == nil {
		return
	}
	if status == StatusConnected {
		c.metrics.NATSConnected.Set(1)
	} else {
		c.metrics.NATSConnected.Set(0)
	}
}

// IsHealthy reports whether the connection is established and usable
func (c *Client) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Status() == StatusConnected && c.conn != nil && c.conn.IsConnected()
}

func (c *Client) recordFailure() {
	failures := c.failures.Add(1)
	if failures < c.circuitThreshold {
		return
	}
	if c.status.CompareAndSwap(c.Status(), StatusCircuitOpen) {
		c.observeStatus(StatusCircuitOpen)
		backoff := c.backoff.Load().(time.Duration)
		next := backoff * 2
		if next > c.maxBackoff {
			next = c.maxBackoff
		}
		c.backoff.Store(next)
		c.failures.Store(0)

		c.logger.Warn("circuit breaker opened",
			"url", c.url, "failures", failures, "backoff", backoff)
		time.AfterFunc(backoff, c.testCircuit)
	}
}

func (c *Client) resetCircuit() {
	c.failures.Store(0)
	c.backoff.Store(time.Second)
	if c.Status() == StatusCircuitOpen {
		c.setStatus(StatusDisconnected)
	}
}

func (c *Client) testCircuit() {
	if c.Status() == StatusCircuitOpen {
		c.setStatus(StatusDisconnected)
	}
}

func (c *Client) buildConnectionOptions() []nats.Option {
	return []nats.Option{
		nats.Name(c.clientName),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				c.logger.Warn("NATS disconnected", "url", c.url, "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.logger.Info("NATS reconnected", "url", c.url)
			c.setStatus(StatusConnected)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if !c.closed.Load() {
				c.setStatus(StatusDisconnected)
			}
		}),
	}
}

// Connect establishes the connection, retrying transient failures with
// backoff until the context is canceled or the circuit opens
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.Status() == StatusCircuitOpen {
		return ErrCircuitOpen
	}

	c.setStatus(StatusConnecting)
	c.logger.Info("connecting to NATS", "url", c.url)

	err := retry.Do(ctx, c.retryCfg, func() error {
		if c.Status() == StatusCircuitOpen {
			return retry.NonRetryable(ErrCircuitOpen)
		}
		conn, err := nats.Connect(c.url, c.buildConnectionOptions()...)
		if err != nil {
			c.recordFailure()
			return err
		}
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			c.recordFailure()
			return err
		}
		c.mu.Lock()
		c.conn = conn
		c.js = js
		c.mu.Unlock()
		return nil
	})
	if err != nil {
		if c.Status() != StatusCircuitOpen {
			c.setStatus(StatusDisconnected)
		}
		if stderrors.Is(err, ErrCircuitOpen) {
			return ErrCircuitOpen
		}
		return errors.WrapTransport(err, "natsclient", "connect")
	}

	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.logger.Info("connected to NATS", "url", c.url)
	return nil
}

// Close drains subscriptions and closes the connection. Idempotent.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	conn := c.conn
	subs := c.subs
	c.conn = nil
	c.js = nil
	c.subs = nil
	c.mu.Unlock()

	if conn == nil {
		c.setStatus(StatusDisconnected)
		return nil
	}

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			c.logger.Debug("unsubscribe failed", "subject", sub.Subject, "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		if err := conn.Drain(); err != nil {
			c.logger.Warn("drain failed", "error", err)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		conn.Close()
	}

	c.setStatus(StatusDisconnected)
	c.logger.Info("NATS connection closed", "url", c.url)
	return nil
}

func (c *Client) connection() (*nats.Conn, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil || !conn.IsConnected() {
		return nil, ErrNotConnected
	}
	return conn, nil
}

// Subscribe subscribes to a subject and invokes the handler for every
// message until the subscription or the client is closed
func (c *Client) Subscribe(subject string, handler func([]byte)) (*nats.Subscription, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}

	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, errors.WrapTransport(err, "natsclient", "subscribe")
	}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub, nil
}

// Publish publishes data to a subject
func (c *Client) Publish(subject string, data []byte) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	if err := conn.Publish(subject, data); err != nil {
		return errors.WrapTransport(err, "natsclient", "publish")
	}
	return nil
}

// Request performs a request-reply round trip with the given timeout
func (c *Client) Request(subject string, data []byte, timeout time.Duration) ([]byte, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	msg, err := conn.Request(subject, data, timeout)
	if err != nil {
		return nil, errors.WrapTransport(err, "natsclient", "request")
	}
	return msg.Data, nil
}

// SubscribeRequest subscribes to a subject as a responder; the handler's
// return value is sent back to the requester
func (c *Client) SubscribeRequest(subject string, handler func([]byte) []byte) (*nats.Subscription, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}

	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		reply := handler(msg.Data)
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			c.logger.Debug("respond failed", "subject", subject, "error", err)
		}
	})
	if err != nil {
		return nil, errors.WrapTransport(err, "natsclient", "subscribe_request")
	}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub, nil
}

// JetStream returns the JetStream context
func (c *Client) JetStream() (jetstream.JetStream, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.js == nil {
		return nil, ErrNotConnected
	}
	return c.js, nil
}

// CreateStream creates or looks up a JetStream stream
func (c *Client) CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}
	stream, err := js.CreateStream(ctx, cfg)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrStreamNameAlreadyInUse) {
			return js.Stream(ctx, cfg.Name)
		}
		c.recordFailure()
		return nil, errors.WrapTransport(err, "natsclient", "create_stream")
	}
	c.resetCircuit()
	return stream, nil
}

// PublishToStream publishes data to a JetStream-backed subject with an ack
func (c *Client) PublishToStream(ctx context.Context, subject string, data []byte) error {
	js, err := c.JetStream()
	if err != nil {
		return err
	}
	if _, err := js.Publish(ctx, subject, data); err != nil {
		c.recordFailure()
		return errors.WrapTransport(err, "natsclient", "publish_to_stream")
	}
	c.resetCircuit()
	return nil
}

// ConsumeStream attaches an ephemeral consumer to a stream, replaying
// according to the deliver policy and invoking the handler per message
func (c *Client) ConsumeStream(ctx context.Context, streamName, subject string, handler func([]byte)) (jetstream.ConsumeContext, error) {
	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}

	consumer, err := js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		c.recordFailure()
		return nil, errors.WrapTransport(err, "natsclient", "consume_stream")
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		handler(msg.Data())
		if err := msg.Ack(); err != nil {
			c.logger.Debug("ack failed", "subject", subject, "error", err)
		}
	})
	if err != nil {
		c.recordFailure()
		return nil, errors.WrapTransport(err, "natsclient", "consume_stream")
	}

	c.resetCircuit()
	return cc, nil
}
