// Package kafka publishes routed messages to Kafka topics and consumes the
// router input with a consumer group, committing offsets after handling.
package kafka

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"message-router/internal/brokers"
	"message-router/internal/brokers/base"
	"message-router/internal/common/errors"
	"message-router/internal/common/logging"
)

type Broker struct {
	*base.BaseBroker
	mu                sync.RWMutex
	producer          *kafka.Producer
	admin             *kafka.AdminClient
	consumers         []*kafka.Consumer
	connectionManager *base.ConnectionManager
}

func NewBroker(config *Config) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("kafka", config)
	if err != nil {
		return nil, err
	}

	broker := &Broker{
		BaseBroker:        baseBroker,
		connectionManager: base.NewConnectionManager(baseBroker),
	}
	if err := broker.connect(config); err != nil {
		return nil, err
	}
	return broker, nil
}

func (b *Broker) Connect(config brokers.BrokerConfig) error {
	return b.connectionManager.ValidateAndConnect(config, (*Config)(nil), func(validated brokers.BrokerConfig) error {
		return b.connect(validated.(*Config))
	})
}

func (b *Broker) connect(config *Config) error {
	producerConfig := clientConfig(config)
	producer, err := kafka.NewProducer(&producerConfig)
	if err != nil {
		return errors.ConnectionError("failed to create Kafka producer", err)
	}

	admin, err := kafka.NewAdminClientFromProducer(producer)
	if err != nil {
		producer.Close()
		return errors.ConnectionError("failed to create Kafka admin client", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
	b.producer = producer
	b.admin = admin
	return nil
}

func (b *Broker) config() *Config {
	return b.GetConfig().(*Config)
}

// Declare creates the topic when it does not exist yet
func (b *Broker) Declare(ctx context.Context, destination string) (string, error) {
	b.mu.RLock()
	admin := b.admin
	b.mu.RUnlock()
	if err := base.StandardHealthCheck(admin, "Kafka"); err != nil {
		return "", err
	}

	config := b.config()
	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             destination,
		NumPartitions:     config.NumPartitions,
		ReplicationFactor: config.ReplicationFactor,
	}}, kafka.SetAdminOperationTimeout(config.Timeout))
	if err != nil {
		return "", errors.InternalError("failed to create Kafka topic "+destination, err)
	}

	for _, result := range results {
		if code := result.Error.Code(); code != kafka.ErrNoError && code != kafka.ErrTopicAlreadyExists {
			return "", errors.InternalError("failed to create Kafka topic "+destination, result.Error)
		}
	}
	return destination, nil
}

// Publish produces the message and waits for the delivery report
func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	b.mu.RLock()
	producer := b.producer
	b.mu.RUnlock()
	if err := base.StandardHealthCheck(producer, "Kafka"); err != nil {
		return err
	}

	topic := message.Destination
	kafkaMsg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          message.Body,
		Timestamp:      message.Timestamp,
		Headers:        toKafkaHeaders(message.Headers, message.MessageID),
	}
	if message.RoutingKey != "" {
		kafkaMsg.Key = []byte(message.RoutingKey)
	}

	deliveryChan := make(chan kafka.Event, 1)
	if err := producer.Produce(kafkaMsg, deliveryChan); err != nil {
		return errors.InternalError("failed to produce Kafka message", err)
	}

	select {
	case <-ctx.Done():
		return errors.TimeoutError("kafka delivery to " + topic)
	case e := <-deliveryChan:
		m, ok := e.(*kafka.Message)
		if !ok {
			return errors.InternalError(fmt.Sprintf("unexpected Kafka event %v", e), nil)
		}
		if m.TopicPartition.Error != nil {
			return errors.InternalError("Kafka delivery failed", m.TopicPartition.Error)
		}
		b.GetLogger().Debug("Message delivered to Kafka",
			logging.String("topic", topic),
			logging.Int("partition", int(m.TopicPartition.Partition)),
			logging.String("offset", m.TopicPartition.Offset.String()),
		)
		return nil
	}
}

// Subscribe joins the configured consumer group on topic. Offsets are
// committed only after the handler succeeds.
func (b *Broker) Subscribe(ctx context.Context, topic string, handler brokers.MessageHandler) error {
	config := b.config()
	consumerConfig := clientConfig(config)
	consumerConfig["client.id"] = config.ClientID + "-consumer"
	consumerConfig["group.id"] = config.GroupID
	consumerConfig["auto.offset.reset"] = "earliest"
	consumerConfig["enable.auto.commit"] = false

	consumer, err := kafka.NewConsumer(&consumerConfig)
	if err != nil {
		return errors.ConnectionError("failed to create Kafka consumer", err)
	}
	if err := consumer.SubscribeTopics([]string{topic}, nil); err != nil {
		consumer.Close()
		return errors.InternalError("failed to subscribe to Kafka topic "+topic, err)
	}

	b.mu.Lock()
	b.consumers = append(b.consumers, consumer)
	b.mu.Unlock()

	messageHandler := base.NewMessageHandler(handler, b.GetLogger(), "kafka", topic)

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.GetLogger().Info("Kafka subscription cancelled", logging.String("topic", topic))
				return
			default:
			}

			msg, err := consumer.ReadMessage(200 * time.Millisecond)
			if err != nil {
				if kafkaErr, ok := err.(kafka.Error); ok && kafkaErr.Code() == kafka.ErrTimedOut {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				b.GetLogger().Error("Kafka consumer error", err, logging.String("topic", topic))
				continue
			}

			incoming := base.ConvertToIncomingMessage(b.GetBrokerInfo(), convertKafkaMessage(msg))
			if messageHandler.Handle(incoming) {
				if _, err := consumer.CommitMessage(msg); err != nil {
					b.GetLogger().Error("Failed to commit Kafka offset", err, logging.String("topic", topic))
				}
			}
		}
	}()

	return nil
}

func (b *Broker) Health() error {
	b.mu.RLock()
	producer := b.producer
	b.mu.RUnlock()
	if err := base.StandardHealthCheck(producer, "Kafka"); err != nil {
		return err
	}

	metadata, err := producer.GetMetadata(nil, false, int(b.config().Timeout.Milliseconds()))
	if err != nil {
		return errors.ConnectionError("failed to get Kafka metadata", err)
	}
	if len(metadata.Brokers) == 0 {
		return errors.ConnectionError("no Kafka brokers available", nil)
	}
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

func (b *Broker) closeLocked() error {
	var firstErr error
	for _, consumer := range b.consumers {
		if err := consumer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.consumers = nil

	if b.admin != nil {
		b.admin.Close()
		b.admin = nil
	}
	if b.producer != nil {
		b.producer.Flush(int(b.config().Timeout.Milliseconds()))
		b.producer.Close()
		b.producer = nil
	}
	return firstErr
}

func clientConfig(config *Config) kafka.ConfigMap {
	cm := kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(config.Brokers, ","),
		"client.id":          config.ClientID,
		"session.timeout.ms": 6000,
	}
	if config.SecurityProtocol != "PLAINTEXT" {
		cm["security.protocol"] = config.SecurityProtocol
	}
	if strings.HasPrefix(config.SecurityProtocol, "SASL_") {
		cm["sasl.mechanism"] = config.SASLMechanism
		cm["sasl.username"] = config.SASLUsername
		cm["sasl.password"] = config.SASLPassword
	}
	return cm
}

const messageIDHeader = "message_id"

func toKafkaHeaders(headers map[string]string, messageID string) []kafka.Header {
	result := make([]kafka.Header, 0, len(headers)+1)
	for key, value := range headers {
		result = append(result, kafka.Header{Key: key, Value: []byte(value)})
	}
	if messageID != "" {
		result = append(result, kafka.Header{Key: messageIDHeader, Value: []byte(messageID)})
	}
	return result
}

func convertKafkaMessage(msg *kafka.Message) base.MessageData {
	headers := make(map[string]string, len(msg.Headers))
	topic := ""
	if msg.TopicPartition.Topic != nil {
		topic = *msg.TopicPartition.Topic
	}
	id := fmt.Sprintf("%s-%d-%d", topic, msg.TopicPartition.Partition, msg.TopicPartition.Offset)

	for _, header := range msg.Headers {
		if header.Key == messageIDHeader {
			id = string(header.Value)
			continue
		}
		headers[header.Key] = string(header.Value)
	}

	return base.MessageData{
		ID:        id,
		Headers:   headers,
		Body:      msg.Value,
		Timestamp: msg.Timestamp,
		Metadata: map[string]interface{}{
			"topic":     topic,
			"partition": msg.TopicPartition.Partition,
			"offset":    msg.TopicPartition.Offset,
			"key":       string(msg.Key),
		},
	}
}
