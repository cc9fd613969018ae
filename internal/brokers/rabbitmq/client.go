package rabbitmq

import (
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"message-router/internal/common/logging"
)

// ConnectionPool keeps up to maxSize AMQP connections for reuse
type ConnectionPool struct {
	url         string
	maxSize     int
	connections chan *amqp.Connection
	mu          sync.RWMutex
	closed      bool
	logger      logging.Logger
}

type Client struct {
	pool *ConnectionPool
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewConnectionPool dials one connection eagerly so a bad URL fails fast
func NewConnectionPool(url string, maxSize int) (*ConnectionPool, error) {
	pool := &ConnectionPool{
		url:         url,
		maxSize:     maxSize,
		connections: make(chan *amqp.Connection, maxSize),
		logger:      logging.GetGlobalLogger().WithFields(logging.String("component", "rabbitmq_pool")),
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to create initial RabbitMQ connection: %w", err)
	}
	pool.connections <- conn

	return pool, nil
}

func (p *ConnectionPool) GetConnection() (*amqp.Connection, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("connection pool is closed")
	}

	select {
	case conn := <-p.connections:
		if !conn.IsClosed() {
			return conn, nil
		}
	case <-time.After(50 * time.Millisecond):
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ connection: %w", err)
	}
	return conn, nil
}

func (p *ConnectionPool) ReturnConnection(conn *amqp.Connection) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed || conn.IsClosed() {
		_ = conn.Close()
		return
	}

	select {
	case p.connections <- conn:
	default:
		_ = conn.Close()
	}
}

func (p *ConnectionPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	close(p.connections)
	for conn := range p.connections {
		_ = conn.Close()
	}
}

func (p *ConnectionPool) NewClient() (ClientInterface, error) {
	conn, err := p.GetConnection()
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		p.ReturnConnection(conn)
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &Client{pool: p, conn: conn, ch: ch}, nil
}

func (c *Client) Close() {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		c.pool.ReturnConnection(c.conn)
	}
}

func (c *Client) Publish(exchange, routingKey string, mandatory, immediate bool, msg amqp.Publishing) error {
	return c.ch.Publish(exchange, routingKey, mandatory, immediate, msg)
}

func (c *Client) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	return c.ch.QueueDeclare(name, durable, autoDelete, exclusive, noWait, args)
}

func (c *Client) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return c.ch.ExchangeDeclare(name, kind, durable, autoDelete, internal, noWait, args)
}

func (c *Client) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	return c.ch.QueueBind(name, key, exchange, noWait, args)
}

func (c *Client) Qos(prefetchCount, prefetchSize int, global bool) error {
	return c.ch.Qos(prefetchCount, prefetchSize, global)
}

func (c *Client) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return c.ch.Consume(queue, consumer, autoAck, exclusive, noLocal, noWait, args)
}
