// Package factory builds typed constructors that accept an untyped config,
// which is how broker adapters plug into brokers.Registry.
package factory

import (
	"fmt"

	"message-router/internal/common/errors"
)

// Factory creates a T from a config that must be of type C
type Factory[C any, T any] struct {
	typeName string
	creator  func(C) (T, error)
}

func NewFactory[C any, T any](typeName string, creator func(C) (T, error)) *Factory[C, T] {
	return &Factory[C, T]{
		typeName: typeName,
		creator:  creator,
	}
}

// Create type-asserts config to C before calling the creator
func (f *Factory[C, T]) Create(config interface{}) (T, error) {
	var zero T

	typed, ok := config.(C)
	if !ok {
		return zero, errors.ConfigError(fmt.Sprintf("invalid config type for %s, expected %T but got %T", f.typeName, typed, config))
	}

	return f.creator(typed)
}

func (f *Factory[C, T]) GetType() string {
	return f.typeName
}
