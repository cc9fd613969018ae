// Package rabbitmq routes messages into durable RabbitMQ queues, optionally
// through a direct exchange, and consumes the router input queue.
package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"message-router/internal/brokers"
	"message-router/internal/brokers/base"
	"message-router/internal/common/errors"
	"message-router/internal/common/logging"
)

const contentTypeHeader = "contentType"

type Broker struct {
	*base.BaseBroker
	mu                sync.RWMutex
	pool              ConnectionPoolInterface
	connectionManager *base.ConnectionManager
}

func NewBroker(config *Config) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("rabbitmq", config)
	if err != nil {
		return nil, err
	}

	pool, err := NewConnectionPool(config.URL, config.PoolSize)
	if err != nil {
		return nil, errors.ConnectionError("failed to create RabbitMQ connection pool", err)
	}

	return &Broker{
		BaseBroker:        baseBroker,
		pool:              pool,
		connectionManager: base.NewConnectionManager(baseBroker),
	}, nil
}

// NewBrokerWithPool injects a pool, used by tests
func NewBrokerWithPool(config *Config, pool ConnectionPoolInterface) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("rabbitmq", config)
	if err != nil {
		return nil, err
	}

	return &Broker{
		BaseBroker:        baseBroker,
		pool:              pool,
		connectionManager: base.NewConnectionManager(baseBroker),
	}, nil
}

func (b *Broker) Connect(config brokers.BrokerConfig) error {
	return b.connectionManager.ValidateAndConnect(config, (*Config)(nil), func(validated brokers.BrokerConfig) error {
		rmqConfig := validated.(*Config)

		pool, err := NewConnectionPool(rmqConfig.URL, rmqConfig.PoolSize)
		if err != nil {
			return errors.ConnectionError("failed to create RabbitMQ connection pool", err)
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		if b.pool != nil {
			b.pool.Close()
		}
		b.pool = pool
		return nil
	})
}

func (b *Broker) config() *Config {
	return b.GetConfig().(*Config)
}

func (b *Broker) client() (ClientInterface, error) {
	b.mu.RLock()
	pool := b.pool
	b.mu.RUnlock()

	if err := base.StandardHealthCheck(pool, "RabbitMQ"); err != nil {
		return nil, err
	}

	client, err := pool.NewClient()
	if err != nil {
		return nil, errors.ConnectionError("failed to get RabbitMQ client", err)
	}
	return client, nil
}

// Declare creates a durable queue named destination, bound to the configured
// exchange with the queue name as routing key when an exchange is set.
func (b *Broker) Declare(ctx context.Context, destination string) (string, error) {
	client, err := b.client()
	if err != nil {
		return "", err
	}
	defer client.Close()

	if err := b.declareQueue(client, destination); err != nil {
		return "", err
	}
	return destination, nil
}

func (b *Broker) declareQueue(client ClientInterface, queue string) error {
	if _, err := client.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return errors.InternalError("failed to declare queue "+queue, err)
	}

	exchange := b.config().Exchange
	if exchange == "" {
		return nil
	}
	if err := client.ExchangeDeclare(exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return errors.InternalError("failed to declare exchange "+exchange, err)
	}
	if err := client.QueueBind(queue, queue, exchange, false, nil); err != nil {
		return errors.InternalError(fmt.Sprintf("failed to bind queue %s to %s", queue, exchange), err)
	}
	return nil
}

func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	client, err := b.client()
	if err != nil {
		return err
	}
	defer client.Close()

	routingKey := message.RoutingKey
	if routingKey == "" {
		routingKey = message.Destination
	}

	headers := make(amqp.Table, len(message.Headers))
	for key, value := range message.Headers {
		headers[key] = value
	}

	publishing := amqp.Publishing{
		Headers:      headers,
		ContentType:  message.Headers[contentTypeHeader],
		DeliveryMode: amqp.Persistent,
		MessageId:    message.MessageID,
		Timestamp:    message.Timestamp,
		Body:         message.Body,
	}

	if err := client.Publish(b.config().Exchange, routingKey, false, false, publishing); err != nil {
		return errors.InternalError("failed to publish to RabbitMQ", err)
	}

	b.GetLogger().Debug("Message published to RabbitMQ",
		logging.String("queue", message.Destination),
		logging.String("routing_key", routingKey),
	)
	return nil
}

// Subscribe consumes the queue named topic with manual acks. Failed
// deliveries are nacked and requeued.
func (b *Broker) Subscribe(ctx context.Context, topic string, handler brokers.MessageHandler) error {
	client, err := b.client()
	if err != nil {
		return err
	}

	if err := b.declareQueue(client, topic); err != nil {
		client.Close()
		return err
	}
	if err := client.Qos(b.config().Prefetch, 0, false); err != nil {
		client.Close()
		return errors.InternalError("failed to set prefetch", err)
	}

	deliveries, err := client.Consume(topic, "", false, false, false, false, nil)
	if err != nil {
		client.Close()
		return errors.InternalError("failed to start consuming from queue "+topic, err)
	}

	messageHandler := base.NewMessageHandler(handler, b.GetLogger(), "rabbitmq", topic)

	go func() {
		defer client.Close()
		for {
			select {
			case <-ctx.Done():
				b.GetLogger().Info("RabbitMQ subscription cancelled", logging.String("queue", topic))
				return
			case delivery, ok := <-deliveries:
				if !ok {
					b.GetLogger().Info("RabbitMQ delivery channel closed", logging.String("queue", topic))
					return
				}

				incoming := base.ConvertToIncomingMessage(b.GetBrokerInfo(), convertDelivery(delivery))
				if messageHandler.Handle(incoming, logging.String("routing_key", delivery.RoutingKey)) {
					_ = delivery.Ack(false)
				} else {
					_ = delivery.Nack(false, true)
				}
			}
		}
	}()

	return nil
}

func (b *Broker) Health() error {
	client, err := b.client()
	if err != nil {
		return err
	}
	client.Close()
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pool != nil {
		b.pool.Close()
		b.pool = nil
	}
	return nil
}

func convertDelivery(delivery amqp.Delivery) base.MessageData {
	headers := base.ToStringMap(map[string]interface{}(delivery.Headers))
	if delivery.ContentType != "" {
		if _, ok := headers[contentTypeHeader]; !ok {
			headers[contentTypeHeader] = delivery.ContentType
		}
	}

	return base.MessageData{
		ID:        delivery.MessageId,
		Headers:   headers,
		Body:      delivery.Body,
		Timestamp: delivery.Timestamp,
		Metadata: map[string]interface{}{
			"delivery_tag": delivery.DeliveryTag,
			"routing_key":  delivery.RoutingKey,
			"exchange":     delivery.Exchange,
			"redelivered":  delivery.Redelivered,
		},
	}
}
