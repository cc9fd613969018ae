package binder

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"message-router/internal/brokers"
	"message-router/internal/brokers/base"
	"message-router/internal/common/errors"
	"message-router/internal/common/logging"
	"message-router/internal/common/ratelimit"
	"message-router/internal/routing"
)

const (
	HeaderErrorType     = "x-error-type"
	HeaderErrorMessage  = "x-error-message"
	HeaderOriginalTopic = "x-original-topic"
	HeaderFailedAt      = "x-failed-at"
)

// Handler is the routing entry point the Input feeds
type Handler interface {
	Handle(ctx context.Context, msg *routing.Message) error
}

type InputConfig struct {
	Topic string
	// ErrorDestination receives messages the handler failed on; empty disables forwarding
	ErrorDestination string
	RateLimit        ratelimit.Config
}

type InputStats struct {
	Handled   int64 `json:"handled"`
	Failed    int64 `json:"failed"`
	Forwarded int64 `json:"forwarded"`
}

// Input subscribes to the input topic and hands every message to the Handler.
// A handler error is returned to the broker adapter, which nacks or leaves the
// message pending, unless the message could be forwarded to the error destination.
type Input struct {
	broker  brokers.Broker
	handler Handler
	config  InputConfig
	limiter *ratelimit.Limiter
	logger  logging.Logger

	mu           sync.Mutex
	errorAddress string

	handled   atomic.Int64
	failed    atomic.Int64
	forwarded atomic.Int64
}

func NewInput(broker brokers.Broker, handler Handler, config InputConfig, logger logging.Logger) (*Input, error) {
	if config.Topic == "" {
		return nil, errors.ConfigError("input topic is required")
	}
	limiter, err := ratelimit.NewLimiter(config.RateLimit)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Input{
		broker:  broker,
		handler: handler,
		config:  config,
		limiter: limiter,
		logger:  logger.WithFields(logging.String("input", config.Topic)),
	}, nil
}

// Start declares the input and error destinations and subscribes. Consumption
// stops when ctx is cancelled.
func (i *Input) Start(ctx context.Context) error {
	if _, err := i.broker.Declare(ctx, i.config.Topic); err != nil {
		return errors.ConnectionError("failed to declare input "+i.config.Topic, err)
	}

	if i.config.ErrorDestination != "" {
		address, err := i.broker.Declare(ctx, i.config.ErrorDestination)
		if err != nil {
			return errors.ConnectionError("failed to declare error destination "+i.config.ErrorDestination, err)
		}
		i.mu.Lock()
		i.errorAddress = address
		i.mu.Unlock()
	}

	if err := i.broker.Subscribe(ctx, i.config.Topic, func(msg *brokers.IncomingMessage) error {
		return i.handle(ctx, msg)
	}); err != nil {
		return err
	}

	i.logger.Info("Input started",
		logging.String("broker", i.broker.Name()),
		logging.String("error_destination", i.config.ErrorDestination),
	)
	return nil
}

func (i *Input) handle(ctx context.Context, incoming *brokers.IncomingMessage) error {
	if err := i.limiter.Wait(ctx); err != nil {
		return err
	}

	msgCtx := logging.ContextWithMessageID(ctx, incoming.ID)
	err := i.handler.Handle(msgCtx, ToRoutingMessage(incoming))
	if err == nil {
		i.handled.Add(1)
		return nil
	}

	i.failed.Add(1)
	if i.config.ErrorDestination == "" {
		return err
	}

	if fwdErr := i.forward(msgCtx, incoming, err); fwdErr != nil {
		return multierr.Append(err, fwdErr)
	}
	i.forwarded.Add(1)
	i.logger.WithContext(msgCtx).Warn("Message forwarded to error destination",
		logging.String("error_destination", i.config.ErrorDestination),
		logging.Err(err),
	)
	return nil
}

func (i *Input) forward(ctx context.Context, incoming *brokers.IncomingMessage, cause error) error {
	i.mu.Lock()
	address := i.errorAddress
	i.mu.Unlock()

	headers := base.CopyHeaders(incoming.Headers)
	headers[HeaderErrorType] = errorType(cause)
	headers[HeaderErrorMessage] = cause.Error()
	headers[HeaderOriginalTopic] = i.config.Topic
	headers[HeaderFailedAt] = time.Now().UTC().Format(time.RFC3339)

	messageID := incoming.ID
	if messageID == "" {
		messageID = uuid.NewString()
	}

	return i.broker.Publish(ctx, &brokers.Message{
		Destination: address,
		RoutingKey:  i.config.ErrorDestination,
		Headers:     headers,
		Body:        incoming.Body,
		Timestamp:   time.Now(),
		MessageID:   messageID,
	})
}

func (i *Input) Stats() InputStats {
	return InputStats{
		Handled:   i.handled.Load(),
		Failed:    i.failed.Load(),
		Forwarded: i.forwarded.Load(),
	}
}

func (i *Input) RateLimitStats() map[string]interface{} {
	return i.limiter.Stats()
}

func errorType(err error) string {
	switch {
	case stderrors.Is(err, routing.ErrEvaluation):
		return "evaluation"
	case stderrors.Is(err, routing.ErrUnresolvableDestination):
		return "unresolvable_destination"
	case stderrors.Is(err, routing.ErrDispatch):
		return "dispatch"
	default:
		return string(errors.GetType(err))
	}
}
