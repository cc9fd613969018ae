package base

import (
	"reflect"

	"message-router/internal/brokers"
	"message-router/internal/common/errors"
)

// ConnectionManager runs the config checks shared by every Connect implementation
type ConnectionManager struct {
	baseBroker *BaseBroker
}

func NewConnectionManager(baseBroker *BaseBroker) *ConnectionManager {
	return &ConnectionManager{baseBroker: baseBroker}
}

// ValidateAndConnect rejects configs of the wrong concrete type, validates the
// config, stores it on the base broker and then calls connectFn.
func (cm *ConnectionManager) ValidateAndConnect(
	config brokers.BrokerConfig,
	expectedType interface{},
	connectFn func(brokers.BrokerConfig) error,
) error {
	if config == nil || reflect.TypeOf(expectedType) != reflect.TypeOf(config) {
		return errors.ConfigError("invalid config type for " + cm.baseBroker.Name() + " broker")
	}

	if err := cm.baseBroker.UpdateConfig(config); err != nil {
		return err
	}

	return connectFn(config)
}

// StandardHealthCheck fails when the adapter has no live client
func StandardHealthCheck(client interface{}, brokerType string) error {
	if client == nil || (reflect.ValueOf(client).Kind() == reflect.Ptr && reflect.ValueOf(client).IsNil()) {
		return errors.ConnectionError(brokerType+" client not initialized", nil)
	}
	return nil
}
