package app

import (
	"message-router/internal/brokers"
	"message-router/internal/brokers/aws"
	"message-router/internal/brokers/gcp"
	"message-router/internal/brokers/kafka"
	"message-router/internal/brokers/memory"
	"message-router/internal/brokers/nats"
	"message-router/internal/brokers/rabbitmq"
	redisbroker "message-router/internal/brokers/redis"
)

// NewBrokerRegistry returns a registry holding every broker the router can bind to
func NewBrokerRegistry() *brokers.Registry {
	registry := brokers.NewRegistry()
	RegisterBrokerFactories(registry)
	return registry
}

// RegisterBrokerFactories registers all broker factories with the given registry.
func RegisterBrokerFactories(registry *brokers.Registry) {
	registry.Register("memory", memory.GetFactory())
	registry.Register("rabbitmq", rabbitmq.GetFactory())
	registry.Register("kafka", kafka.GetFactory())
	registry.Register("redis", redisbroker.GetFactory())
	registry.Register("aws", aws.GetFactory())
	registry.Register("gcp", gcp.GetFactory())
	registry.Register("nats", nats.GetFactory())
}
