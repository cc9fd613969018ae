// Package nats publishes routed messages on NATS subjects. Destinations are
// subjects, so Declare has nothing to create.
package nats

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"message-router/internal/brokers"
	"message-router/internal/brokers/base"
	"message-router/internal/common/errors"
	"message-router/internal/common/logging"
)

const (
	messageIDHeader = "Nats-Msg-Id"
	timestampHeader = "Router-Timestamp"
)

type Broker struct {
	*base.BaseBroker
	mu                sync.RWMutex
	conn              *nats.Conn
	subscriptions     []*nats.Subscription
	connectionManager *base.ConnectionManager
}

func NewBroker(config *Config) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker("nats", config)
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
	logger := b.GetLogger()
	conn, err := nats.Connect(
		config.URL,
		nats.Name("message-router"),
		nats.Timeout(config.ConnectTimeout),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", logging.Err(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return errors.ConnectionError("failed to connect to NATS", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
	b.conn = conn
	return nil
}

func (b *Broker) getConn() *nats.Conn {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.conn
}

func (b *Broker) config() *Config {
	return b.GetConfig().(*Config)
}

func (b *Broker) Declare(ctx context.Context, destination string) (string, error) {
	if err := base.StandardHealthCheck(b.getConn(), "NATS"); err != nil {
		return "", err
	}
	return destination, nil
}

// Publish sends the message and flushes so a dead connection surfaces as an error
func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	conn := b.getConn()
	if err := base.StandardHealthCheck(conn, "NATS"); err != nil {
		return err
	}

	if err := conn.PublishMsg(toNatsMsg(message)); err != nil {
		return errors.InternalError("failed to publish to "+message.Destination, err)
	}
	if err := conn.FlushTimeout(b.config().FlushTimeout); err != nil {
		return errors.InternalError("failed to flush NATS connection", err)
	}
	return nil
}

// Subscribe joins the configured queue group on subject. Core NATS has no
// redelivery, so handler failures are only logged.
func (b *Broker) Subscribe(ctx context.Context, subject string, handler brokers.MessageHandler) error {
	conn := b.getConn()
	if err := base.StandardHealthCheck(conn, "NATS"); err != nil {
		return err
	}

	messageHandler := base.NewMessageHandler(handler, b.GetLogger(), "nats", subject)
	sub, err := conn.QueueSubscribe(subject, b.config().Queue, func(msg *nats.Msg) {
		incoming := base.ConvertToIncomingMessage(b.GetBrokerInfo(), convertNatsMsg(msg))
		messageHandler.Handle(incoming, logging.String("subject", msg.Subject))
	})
	if err != nil {
		return errors.InternalError("failed to subscribe to "+subject, err)
	}

	b.mu.Lock()
	b.subscriptions = append(b.subscriptions, sub)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil && err != nats.ErrConnectionClosed && err != nats.ErrBadSubscription {
			b.GetLogger().Warn("Failed to drain NATS subscription", logging.String("subject", subject), logging.Err(err))
		}
	}()

	return nil
}

func (b *Broker) Health() error {
	conn := b.getConn()
	if err := base.StandardHealthCheck(conn, "NATS"); err != nil {
		return err
	}
	if !conn.IsConnected() {
		return errors.ConnectionError("NATS connection status "+conn.Status().String(), nil)
	}
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
	return nil
}

func (b *Broker) closeLocked() {
	for _, sub := range b.subscriptions {
		_ = sub.Unsubscribe()
	}
	b.subscriptions = nil
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}

func toNatsMsg(message *brokers.Message) *nats.Msg {
	msg := nats.NewMsg(message.Destination)
	msg.Data = message.Body
	for key, value := range message.Headers {
		msg.Header.Set(key, value)
	}
	if message.MessageID != "" {
		msg.Header.Set(messageIDHeader, message.MessageID)
	}
	if !message.Timestamp.IsZero() {
		msg.Header.Set(timestampHeader, strconv.FormatInt(message.Timestamp.UnixNano(), 10))
	}
	return msg
}

func convertNatsMsg(msg *nats.Msg) base.MessageData {
	headers := make(map[string]string, len(msg.Header))
	data := base.MessageData{
		Body:    msg.Data,
		Headers: headers,
		Metadata: map[string]interface{}{
			"subject": msg.Subject,
			"reply":   msg.Reply,
		},
	}

	for key, values := range msg.Header {
		if len(values) == 0 {
			continue
		}
		switch key {
		case messageIDHeader:
			data.ID = values[0]
		case timestampHeader:
			if ns, err := strconv.ParseInt(values[0], 10, 64); err == nil {
				data.Timestamp = time.Unix(0, ns)
			}
		default:
			headers[key] = values[0]
		}
	}

	return data
}
