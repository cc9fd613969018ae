// Package redis carries routed messages over Redis Streams. Every destination
// is a stream; the router input is read through a consumer group.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"message-router/internal/brokers"
	"message-router/internal/brokers/base"
	"message-router/internal/common/errors"
	"message-router/internal/common/logging"
)

const (
	fieldBody       = "body"
	fieldTimestamp  = "timestamp"
	fieldMessageID  = "message_id"
	fieldRoutingKey = "routing_key"
	headerPrefix    = "header_"
)

type Broker struct {
	*base.BaseBroker
	mu                sync.RWMutex
	client            *redis.Client
	connectionManager *base.ConnectionManager
}

func NewBroker(config *Config) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("redis", config)
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
	client := redis.NewClient(&redis.Options{
		Addr:        config.Address,
		Password:    config.Password,
		DB:          config.DB,
		PoolSize:    config.PoolSize,
		DialTimeout: config.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return errors.ConnectionError("failed to connect to Redis", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		_ = b.client.Close()
	}
	b.client = client
	return nil
}

func (b *Broker) getClient() *redis.Client {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.client
}

func (b *Broker) config() *Config {
	return b.GetConfig().(*Config)
}

// Declare returns the stream name. Streams are created on first XADD.
func (b *Broker) Declare(ctx context.Context, destination string) (string, error) {
	if err := base.StandardHealthCheck(b.getClient(), "Redis"); err != nil {
		return "", err
	}
	return destination, nil
}

func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	client := b.getClient()
	if err := base.StandardHealthCheck(client, "Redis"); err != nil {
		return err
	}

	fields := map[string]interface{}{
		fieldBody:      string(message.Body),
		fieldTimestamp: message.Timestamp.UnixNano(),
		fieldMessageID: message.MessageID,
	}
	if message.RoutingKey != "" {
		fields[fieldRoutingKey] = message.RoutingKey
	}
	for key, value := range message.Headers {
		fields[headerPrefix+key] = value
	}

	args := &redis.XAddArgs{
		Stream: message.Destination,
		ID:     "*",
		Values: fields,
	}
	if maxLen := b.config().StreamMaxLen; maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}

	id, err := client.XAdd(ctx, args).Result()
	if err != nil {
		return errors.InternalError("failed to publish message to Redis stream", err)
	}

	b.GetLogger().Debug("Message published to Redis stream",
		logging.String("stream", message.Destination),
		logging.String("id", id),
	)
	return nil
}

// Subscribe reads the stream through the configured consumer group.
// Entries are acknowledged only after the handler succeeds.
func (b *Broker) Subscribe(ctx context.Context, topic string, handler brokers.MessageHandler) error {
	client := b.getClient()
	if err := base.StandardHealthCheck(client, "Redis"); err != nil {
		return err
	}

	config := b.config()
	err := client.XGroupCreateMkStream(ctx, topic, config.ConsumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return errors.InternalError("failed to create consumer group", err)
	}

	messageHandler := base.NewMessageHandler(handler, b.GetLogger(), "redis", topic)

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.GetLogger().Info("Redis subscription cancelled",
					logging.String("stream", topic),
					logging.String("consumer_group", config.ConsumerGroup),
				)
				return
			default:
			}

			client := b.getClient()
			if client == nil {
				b.GetLogger().Warn("Redis client closed, ending subscription", logging.String("stream", topic))
				return
			}

			streams, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    config.ConsumerGroup,
				Consumer: config.ConsumerName,
				Streams:  []string{topic, ">"},
				Count:    10,
				Block:    100 * time.Millisecond,
			}).Result()
			if err != nil {
				if err == redis.Nil || ctx.Err() != nil {
					continue
				}
				b.GetLogger().Error("Redis consumer error", err, logging.String("stream", topic))
				select {
				case <-ctx.Done():
				case <-time.After(100 * time.Millisecond):
				}
				continue
			}

			for _, stream := range streams {
				for _, entry := range stream.Messages {
					incoming := base.ConvertToIncomingMessage(b.GetBrokerInfo(), convertStreamEntry(entry, topic, config))
					if !messageHandler.Handle(incoming, logging.String("entry_id", entry.ID)) {
						continue
					}
					if err := client.XAck(ctx, topic, config.ConsumerGroup, entry.ID).Err(); err != nil {
						b.GetLogger().Error("Failed to acknowledge Redis message", err,
							logging.String("stream", topic),
							logging.String("entry_id", entry.ID),
						)
					}
				}
			}
		}
	}()

	return nil
}

func (b *Broker) Health() error {
	client := b.getClient()
	if err := base.StandardHealthCheck(client, "Redis"); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.config().Timeout)
	defer cancel()
	return client.Ping(ctx).Err()
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	return err
}

func convertStreamEntry(entry redis.XMessage, stream string, config *Config) base.MessageData {
	headers := make(map[string]string)
	data := base.MessageData{
		ID:      entry.ID,
		Headers: headers,
		Metadata: map[string]interface{}{
			"stream":         stream,
			"entry_id":       entry.ID,
			"consumer_group": config.ConsumerGroup,
		},
	}

	for field, value := range entry.Values {
		str := fmt.Sprintf("%v", value)
		switch field {
		case fieldBody:
			data.Body = []byte(str)
		case fieldMessageID:
			if str != "" {
				data.ID = str
			}
		case fieldRoutingKey:
			data.Metadata["routing_key"] = str
		case fieldTimestamp:
			if ns, err := strconv.ParseInt(str, 10, 64); err == nil && ns > 0 {
				data.Timestamp = time.Unix(0, ns)
			}
		default:
			if strings.HasPrefix(field, headerPrefix) {
				headers[strings.TrimPrefix(field, headerPrefix)] = str
			}
		}
	}

	return data
}
