package factory

import (
	"message-router/internal/brokers"
)

// BrokerFactoryAdapter exposes a generic Factory as a brokers.BrokerFactory
type BrokerFactoryAdapter[C brokers.BrokerConfig] struct {
	*Factory[C, brokers.Broker]
}

// NewBrokerFactory is used by every adapter package's GetFactory
func NewBrokerFactory[C brokers.BrokerConfig](typeName string, creator func(C) (brokers.Broker, error)) brokers.BrokerFactory {
	return &BrokerFactoryAdapter[C]{NewFactory[C, brokers.Broker](typeName, creator)}
}

func (a *BrokerFactoryAdapter[C]) Create(config brokers.BrokerConfig) (brokers.Broker, error) {
	return a.Factory.Create(config)
}
