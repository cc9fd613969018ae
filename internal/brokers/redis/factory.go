package redis

import (
	"message-router/internal/brokers"
	"message-router/internal/common/factory"
)

func GetFactory() brokers.BrokerFactory {
	return factory.NewBrokerFactory[*Config](
		"redis",
		func(config *Config) (brokers.Broker, error) {
			return NewBroker(config)
		},
	)
}
