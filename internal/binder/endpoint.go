// Package binder connects the router to a broker: outbound endpoints publish
// routed messages, and the Input feeds the router from a subscription.
package binder

import (
	"context"

	"message-router/internal/brokers"
	"message-router/internal/circuitbreaker"
	"message-router/internal/common/logging"
	"message-router/internal/routing"
)

// EndpointFactory declares destinations on the broker as the router first
// references them. Each endpoint publishes through its own circuit breaker.
type EndpointFactory struct {
	broker   brokers.Broker
	breakers *circuitbreaker.Manager
	logger   logging.Logger
}

func NewEndpointFactory(broker brokers.Broker, breakers *circuitbreaker.Manager, logger logging.Logger) *EndpointFactory {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if breakers == nil {
		breakers = circuitbreaker.NewManager(circuitbreaker.DefaultConfig(), logger)
	}
	return &EndpointFactory{broker: broker, breakers: breakers, logger: logger}
}

func (f *EndpointFactory) CreateEndpoint(ctx context.Context, name string) (routing.Endpoint, error) {
	address, err := f.broker.Declare(ctx, name)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Destination declared",
		logging.String("destination", name),
		logging.String("address", address),
		logging.String("broker", f.broker.Name()),
	)

	return &Endpoint{
		name:    name,
		address: address,
		broker:  f.broker,
		breaker: f.breakers.GetOrCreate(name),
	}, nil
}

func (f *EndpointFactory) Breakers() *circuitbreaker.Manager {
	return f.breakers
}

type Endpoint struct {
	name    string
	address string
	broker  brokers.Broker
	breaker *circuitbreaker.Breaker
}

func (e *Endpoint) Name() string {
	return e.name
}

func (e *Endpoint) Address() string {
	return e.address
}

func (e *Endpoint) Send(ctx context.Context, msg *routing.Message) error {
	outbound := ToBrokerMessage(e.name, e.address, msg)
	return e.breaker.Execute(ctx, func() error {
		return e.broker.Publish(ctx, outbound)
	})
}
