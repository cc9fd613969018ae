package rabbitmq

import (
	"github.com/streadway/amqp"
)

// ConnectionPoolInterface abstracts the pool so the broker can be tested without a server
type ConnectionPoolInterface interface {
	NewClient() (ClientInterface, error)
	Close()
}

// ClientInterface is one pooled connection with an open channel
type ClientInterface interface {
	Close()
	Publish(exchange, routingKey string, mandatory, immediate bool, msg amqp.Publishing) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

var _ ConnectionPoolInterface = (*ConnectionPool)(nil)
var _ ClientInterface = (*Client)(nil)
