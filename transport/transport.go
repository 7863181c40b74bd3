// Package transport abstracts message delivery between nodes. Payloads are
// opaque bytes; topic and service endpoints are created against fully
// qualified names and carry the QoS profile they were created with.
package transport

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/XiandiShan/rclgo/qos"
)

// EndpointInfo describes one endpoint for graph introspection
type EndpointInfo struct {
	Node     string      `json:"node"`
	Name     string      `json:"name"`
	TypeName string      `json:"type_name"`
	QoS      qos.Profile `json:"qos"`
}

// Publisher sends serialized messages on one topic
type Publisher interface {
	Publish(data []byte) error
	Close() error
}

// Subscription receives serialized messages from one topic. Delivery stops
// when the subscription is closed.
type Subscription interface {
	Close() error
}

// Service answers requests on one service name
type Service interface {
	Close() error
}

// Client issues requests to one service name
type Client interface {
	Call(data []byte, timeout time.Duration) ([]byte, error)
	Close() error
}

// Graph exposes the endpoint topology visible to this transport
type Graph interface {
	// TopicNamesAndTypes maps each known topic to its advertised type names
	TopicNamesAndTypes() map[string][]string
	// PublishersInfoByTopic lists the publishers on a topic
	PublishersInfoByTopic(topic string) []EndpointInfo
	// SubscriptionsInfoByTopic lists the subscriptions on a topic
	SubscriptionsInfoByTopic(topic string) []EndpointInfo
	// ServiceNamesAndTypes maps each known service to its advertised type names
	ServiceNamesAndTypes() map[string][]string
}

// Transport creates endpoints and answers graph queries
type Transport interface {
	Graph

	CreatePublisher(info EndpointInfo) (Publisher, error)
	CreateSubscription(info EndpointInfo, handler func([]byte)) (Subscription, error)
	CreateService(info EndpointInfo, handler func([]byte) []byte) (Service, error)
	CreateClient(info EndpointInfo) (Client, error)

	Close(ctx context.Context) error
}

// Subject maps a fully qualified topic name to a NATS subject scoped by
// domain, e.g. domain 0 and "/ns/chatter" become "ros.0.ns.chatter"
func Subject(domainID int, topic string) string {
	return "ros." + strconv.Itoa(domainID) + strings.ReplaceAll(topic, "/", ".")
}

// ServiceSubject maps a fully qualified service name to its request subject
func ServiceSubject(domainID int, service string) string {
	return "ros." + strconv.Itoa(domainID) + ".srv" + strings.ReplaceAll(service, "/", ".")
}

// StreamName maps a topic to the JetStream stream backing its durable
// history; stream names cannot contain dots
func StreamName(domainID int, topic string) string {
	return "ros-" + strconv.Itoa(domainID) + strings.ReplaceAll(topic, "/", "-")
}
