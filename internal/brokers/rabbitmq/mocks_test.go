package rabbitmq_test

import (
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"message-router/internal/brokers/rabbitmq"
)

type MockConnectionPool struct {
	mu             sync.Mutex
	clients        []*MockClient
	closed         bool
	newClientError error
	deliveries     chan amqp.Delivery
}

func NewMockConnectionPool() *MockConnectionPool {
	return &MockConnectionPool{deliveries: make(chan amqp.Delivery, 10)}
}

func (m *MockConnectionPool) NewClient() (rabbitmq.ClientInterface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("connection pool is closed")
	}
	if m.newClientError != nil {
		return nil, m.newClientError
	}

	client := &MockClient{deliveries: m.deliveries}
	m.clients = append(m.clients, client)
	return client, nil
}

func (m *MockConnectionPool) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *MockConnectionPool) Clients() []*MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockClient(nil), m.clients...)
}

type PublishedMessage struct {
	Exchange   string
	RoutingKey string
	Publishing amqp.Publishing
}

type BoundQueue struct {
	Queue    string
	Key      string
	Exchange string
}

type MockClient struct {
	mu                sync.Mutex
	closed            bool
	publishError      error
	published         []PublishedMessage
	declaredQueues    []string
	declaredExchanges []string
	bound             []BoundQueue
	prefetch          int
	deliveries        chan amqp.Delivery
}

func (m *MockClient) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *MockClient) Publish(exchange, routingKey string, mandatory, immediate bool, msg amqp.Publishing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishError != nil {
		return m.publishError
	}
	m.published = append(m.published, PublishedMessage{Exchange: exchange, RoutingKey: routingKey, Publishing: msg})
	return nil
}

func (m *MockClient) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.declaredQueues = append(m.declaredQueues, name)
	return amqp.Queue{Name: name}, nil
}

func (m *MockClient) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.declaredExchanges = append(m.declaredExchanges, name)
	return nil
}

func (m *MockClient) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bound = append(m.bound, BoundQueue{Queue: name, Key: key, Exchange: exchange})
	return nil
}

func (m *MockClient) Qos(prefetchCount, prefetchSize int, global bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefetch = prefetchCount
	return nil
}

func (m *MockClient) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return m.deliveries, nil
}

func (m *MockClient) Published() []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedMessage(nil), m.published...)
}

// MockAcknowledger records the outcome of a delivery
type MockAcknowledger struct {
	mu      sync.Mutex
	acked   []uint64
	nacked  []uint64
	requeue bool
}

func (a *MockAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *MockAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, tag)
	a.requeue = requeue
	return nil
}

func (a *MockAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *MockAcknowledger) Counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acked), len(a.nacked)
}
