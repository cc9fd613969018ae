// Package base holds the pieces every broker adapter shares: naming, logging,
// config validation on connect, and conversion of inbound messages.
package base

import (
	"fmt"
	"sync"

	"message-router/internal/brokers"
	"message-router/internal/common/errors"
	"message-router/internal/common/logging"
)

// BaseBroker is embedded by the concrete adapters
type BaseBroker struct {
	name   string
	mu     sync.RWMutex
	logger logging.Logger
	config brokers.BrokerConfig
}

// NewBaseBroker validates config and prepares a logger tagged with the broker name
func NewBaseBroker(name string, config brokers.BrokerConfig) (*BaseBroker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid %s config: %v", name, err))
	}

	return &BaseBroker{
		name:   name,
		config: config,
		logger: brokerLogger(name, config),
	}, nil
}

func (b *BaseBroker) Name() string {
	return b.name
}

func (b *BaseBroker) GetLogger() logging.Logger {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.logger
}

func (b *BaseBroker) GetConfig() brokers.BrokerConfig {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config
}

// UpdateConfig swaps the config on reconnect
func (b *BaseBroker) UpdateConfig(config brokers.BrokerConfig) error {
	if err := config.Validate(); err != nil {
		return errors.ConfigError(fmt.Sprintf("invalid %s config: %v", b.name, err))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.config = config
	b.logger = brokerLogger(b.name, config)
	return nil
}

// GetBrokerInfo describes the broker as the source of inbound messages
func (b *BaseBroker) GetBrokerInfo() brokers.BrokerInfo {
	config := b.GetConfig()
	return brokers.BrokerInfo{
		Name: b.name,
		Type: config.GetType(),
		URL:  config.GetConnectionString(),
	}
}

func brokerLogger(name string, config brokers.BrokerConfig) logging.Logger {
	return logging.GetGlobalLogger().WithFields(
		logging.String("broker", name),
		logging.String("connection", config.GetConnectionString()),
	)
}
