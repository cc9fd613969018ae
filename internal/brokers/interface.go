// Package brokers defines the transport contract the binder publishes routed
// messages through, plus a registry of broker factories keyed by type name.
package brokers

import (
	"context"
	"time"
)

// Broker is a connection to one messaging system.
//
// Declare makes sure a named destination exists and returns the address the
// broker publishes to (a queue URL, a topic ARN, or the name itself). It is
// idempotent. Subscribe starts consuming in the background and returns once
// the subscription is set up; consumption stops when ctx is cancelled.
type Broker interface {
	Name() string
	Connect(config BrokerConfig) error
	Declare(ctx context.Context, destination string) (string, error)
	Publish(ctx context.Context, message *Message) error
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error
	Health() error
	Close() error
}

type BrokerConfig interface {
	Validate() error
	GetConnectionString() string
	GetType() string
}

// Message is an outbound message. Destination holds the address returned by Declare.
type Message struct {
	Destination string
	RoutingKey  string
	Headers     map[string]string
	Body        []byte
	Timestamp   time.Time
	MessageID   string
}

type MessageHandler func(message *IncomingMessage) error

type IncomingMessage struct {
	ID        string
	Headers   map[string]string
	Body      []byte
	Timestamp time.Time
	Source    BrokerInfo
	Metadata  map[string]interface{}
}

type BrokerInfo struct {
	Name string
	Type string
	URL  string
}

type BrokerFactory interface {
	Create(config BrokerConfig) (Broker, error)
	GetType() string
}
