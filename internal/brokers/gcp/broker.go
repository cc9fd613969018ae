// Package gcp publishes routed messages to Google Cloud Pub/Sub topics and
// receives the router input through a subscription on the input topic.
package gcp

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"message-router/internal/brokers"
	"message-router/internal/brokers/base"
	"message-router/internal/common/errors"
	"message-router/internal/common/logging"
)

const (
	headerAttributePrefix = "Header_"
	messageIDAttribute    = "MessageID"
	timestampAttribute    = "Timestamp"
)

type Broker struct {
	*base.BaseBroker
	mu                sync.RWMutex
	client            *pubsub.Client
	topics            map[string]*pubsub.Topic
	connectionManager *base.ConnectionManager
}

func NewBroker(config *Config) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("gcp", config)
	if err != nil {
		return nil, err
	}

	broker := &Broker{
		BaseBroker:        baseBroker,
		topics:            make(map[string]*pubsub.Topic),
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
	var opts []option.ClientOption
	if config.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(config.CredentialsJSON)))
	} else if config.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsPath))
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	// PUBSUB_EMULATOR_HOST is honoured by the client itself
	client, err := pubsub.NewClient(ctx, config.ProjectID, opts...)
	if err != nil {
		return errors.ConnectionError("failed to create Pub/Sub client", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
	b.client = client
	b.topics = make(map[string]*pubsub.Topic)
	return nil
}

func (b *Broker) config() *Config {
	return b.GetConfig().(*Config)
}

// Declare creates the topic if needed and returns its ID
func (b *Broker) Declare(ctx context.Context, destination string) (string, error) {
	if _, err := b.ensureTopic(ctx, destination); err != nil {
		return "", err
	}
	return destination, nil
}

func (b *Broker) ensureTopic(ctx context.Context, topicID string) (*pubsub.Topic, error) {
	b.mu.RLock()
	client := b.client
	topic, cached := b.topics[topicID]
	b.mu.RUnlock()

	if cached {
		return topic, nil
	}
	if err := base.StandardHealthCheck(client, "Pub/Sub"); err != nil {
		return nil, err
	}

	topic = client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, errors.ConnectionError("failed to check topic existence", err)
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, topicID)
		if err != nil && !strings.Contains(err.Error(), "AlreadyExists") {
			return nil, errors.InternalError("failed to create Pub/Sub topic "+topicID, err)
		}
		if err != nil {
			topic = client.Topic(topicID)
		}
	}

	topic.PublishSettings.CountThreshold = 10
	topic.PublishSettings.DelayThreshold = 10 * time.Millisecond

	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.topics[topicID]; ok {
		topic.Stop()
		return existing, nil
	}
	b.topics[topicID] = topic
	return topic, nil
}

func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	topic, err := b.ensureTopic(ctx, message.Destination)
	if err != nil {
		return err
	}

	attributes := make(map[string]string, len(message.Headers)+2)
	for key, value := range message.Headers {
		attributes[headerAttributePrefix+key] = value
	}
	if message.MessageID != "" {
		attributes[messageIDAttribute] = message.MessageID
	}
	attributes[timestampAttribute] = strconv.FormatInt(message.Timestamp.UnixNano(), 10)

	result := topic.Publish(ctx, &pubsub.Message{
		Data:       message.Body,
		Attributes: attributes,
	})
	serverID, err := result.Get(ctx)
	if err != nil {
		return errors.InternalError("failed to publish to Pub/Sub", err)
	}

	b.GetLogger().Debug("Message published to Pub/Sub",
		logging.String("topic", message.Destination),
		logging.String("server_id", serverID),
	)
	return nil
}

// Subscribe attaches to (creating when missing) the subscription for topicID
// and receives until ctx is cancelled. Failed messages are nacked for redelivery.
func (b *Broker) Subscribe(ctx context.Context, topicID string, handler brokers.MessageHandler) error {
	topic, err := b.ensureTopic(ctx, topicID)
	if err != nil {
		return err
	}

	b.mu.RLock()
	client := b.client
	b.mu.RUnlock()

	config := b.config()
	subscriptionID := config.SubscriptionID
	if subscriptionID == "" {
		subscriptionID = topicID + "-router"
	}

	sub := client.Subscription(subscriptionID)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return errors.ConnectionError("failed to check subscription existence", err)
	}
	if !exists {
		sub, err = client.CreateSubscription(ctx, subscriptionID, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: time.Duration(config.AckDeadline) * time.Second,
		})
		if err != nil {
			return errors.InternalError("failed to create subscription "+subscriptionID, err)
		}
	}
	sub.ReceiveSettings.MaxOutstandingMessages = config.MaxOutstandingMessages

	messageHandler := base.NewMessageHandler(handler, b.GetLogger(), "gcp", topicID)

	go func() {
		err := sub.Receive(ctx, func(_ context.Context, msg *pubsub.Message) {
			incoming := base.ConvertToIncomingMessage(b.GetBrokerInfo(), convertPubSubMessage(msg, subscriptionID))
			if messageHandler.Handle(incoming) {
				msg.Ack()
			} else {
				msg.Nack()
			}
		})
		if err != nil && ctx.Err() == nil {
			b.GetLogger().Error("Pub/Sub receive stopped", err, logging.String("subscription", subscriptionID))
			return
		}
		b.GetLogger().Info("Pub/Sub subscription cancelled", logging.String("subscription", subscriptionID))
	}()

	return nil
}

func (b *Broker) Health() error {
	b.mu.RLock()
	client := b.client
	b.mu.RUnlock()
	if err := base.StandardHealthCheck(client, "Pub/Sub"); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.config().Timeout)
	defer cancel()
	it := client.Topics(ctx)
	if _, err := it.Next(); err != nil && err != iterator.Done {
		return errors.ConnectionError("Pub/Sub health check failed", err)
	}
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

func (b *Broker) closeLocked() error {
	for _, topic := range b.topics {
		topic.Stop()
	}
	b.topics = make(map[string]*pubsub.Topic)

	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	return err
}

func convertPubSubMessage(msg *pubsub.Message, subscriptionID string) base.MessageData {
	headers := make(map[string]string)
	id := msg.ID
	timestamp := msg.PublishTime

	for key, value := range msg.Attributes {
		switch {
		case strings.HasPrefix(key, headerAttributePrefix):
			headers[strings.TrimPrefix(key, headerAttributePrefix)] = value
		case key == messageIDAttribute:
			id = value
		case key == timestampAttribute:
			if ns, err := strconv.ParseInt(value, 10, 64); err == nil {
				timestamp = time.Unix(0, ns)
			}
		}
	}

	return base.MessageData{
		ID:        id,
		Headers:   headers,
		Body:      msg.Data,
		Timestamp: timestamp,
		Metadata: map[string]interface{}{
			"subscription":     subscriptionID,
			"pubsub_id":        msg.ID,
			"delivery_attempt": msg.DeliveryAttempt,
		},
	}
}
