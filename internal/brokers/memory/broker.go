// Package memory is an in-process broker. Recent published messages are kept
// per destination so routing can be observed end to end, and delivered to any
// subscribers of that destination.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"message-router/internal/brokers"
	"message-router/internal/brokers/base"
	"message-router/internal/common/errors"
)

type subscriber struct {
	queue   chan *brokers.Message
	handler *base.MessageHandler
}

type Broker struct {
	*base.BaseBroker
	mu                sync.RWMutex
	closed            bool
	declared          map[string]struct{}
	messages          map[string][]*brokers.Message
	subscribers       map[string][]*subscriber
	failures          map[string]error
	connectionManager *base.ConnectionManager
	wg                sync.WaitGroup
}

func NewBroker(config *Config) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("memory", config)
	if err != nil {
		return nil, err
	}

	return &Broker{
		BaseBroker:        baseBroker,
		declared:          make(map[string]struct{}),
		messages:          make(map[string][]*brokers.Message),
		subscribers:       make(map[string][]*subscriber),
		failures:          make(map[string]error),
		connectionManager: base.NewConnectionManager(baseBroker),
	}, nil
}

func (b *Broker) Connect(config brokers.BrokerConfig) error {
	return b.connectionManager.ValidateAndConnect(config, (*Config)(nil), func(brokers.BrokerConfig) error {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.closed = false
		return nil
	})
}

func (b *Broker) Declare(ctx context.Context, destination string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", errors.ConnectionError("memory broker closed", nil)
	}
	if err, ok := b.failures[destination]; ok {
		return "", err
	}
	b.declared[destination] = struct{}{}
	return destination, nil
}

// Publish records the message and queues it for subscribers. A full
// subscriber queue fails the publish rather than blocking the caller.
func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.ConnectionError("memory broker closed", nil)
	}
	if err, ok := b.failures[message.Destination]; ok {
		return err
	}

	stored := *message
	stored.Headers = base.CopyHeaders(message.Headers)
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now()
	}
	history := append(b.messages[message.Destination], &stored)
	if limit := b.GetConfig().(*Config).HistorySize; len(history) > limit {
		history = append(history[:0:0], history[len(history)-limit:]...)
	}
	b.messages[message.Destination] = history

	for _, sub := range b.subscribers[message.Destination] {
		select {
		case sub.queue <- &stored:
		default:
			return errors.UnavailableError(fmt.Sprintf("subscriber queue for %s", message.Destination), nil)
		}
	}
	return nil
}

func (b *Broker) Subscribe(ctx context.Context, topic string, handler brokers.MessageHandler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.ConnectionError("memory broker closed", nil)
	}
	sub := &subscriber{
		queue:   make(chan *brokers.Message, b.GetConfig().(*Config).BufferSize),
		handler: base.NewMessageHandler(handler, b.GetLogger(), "memory", topic),
	}
	b.subscribers[topic] = append(b.subscribers[topic], sub)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.removeSubscriber(topic, sub)

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.queue:
				if !ok {
					return
				}
				incoming := base.ConvertToIncomingMessage(b.GetBrokerInfo(), base.MessageData{
					ID:        msg.MessageID,
					Headers:   base.CopyHeaders(msg.Headers),
					Body:      msg.Body,
					Timestamp: msg.Timestamp,
					Metadata:  map[string]interface{}{"topic": topic},
				})
				sub.handler.Handle(incoming)
			}
		}
	}()

	return nil
}

func (b *Broker) removeSubscriber(topic string, target *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[topic]
	for i, sub := range subs {
		if sub == target {
			b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (b *Broker) Health() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errors.ConnectionError("memory broker closed", nil)
	}
	return nil
}

// Close stops every subscription and waits for in-flight handlers
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for topic, subs := range b.subscribers {
		for _, sub := range subs {
			close(sub.queue)
		}
		delete(b.subscribers, topic)
	}
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

// Messages returns the most recent messages published to destination, oldest first
func (b *Broker) Messages(destination string) []*brokers.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*brokers.Message, len(b.messages[destination]))
	copy(out, b.messages[destination])
	return out
}

// Destinations returns every destination that has been declared
func (b *Broker) Destinations() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.declared))
	for name := range b.declared {
		out = append(out, name)
	}
	return out
}

// FailDestination makes Declare and Publish for destination return err. A nil
// err clears the failure.
func (b *Broker) FailDestination(destination string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, destination)
		return
	}
	b.failures[destination] = err
}
