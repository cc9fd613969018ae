package binder

import (
	"context"

	"github.com/stretchr/testify/mock"

	"message-router/internal/brokers"
	"message-router/internal/routing"
)

type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) Name() string {
	return "mock"
}

func (m *MockBroker) Connect(config brokers.BrokerConfig) error {
	return m.Called(config).Error(0)
}

func (m *MockBroker) Declare(ctx context.Context, destination string) (string, error) {
	args := m.Called(ctx, destination)
	return args.String(0), args.Error(1)
}

func (m *MockBroker) Publish(ctx context.Context, message *brokers.Message) error {
	return m.Called(ctx, message).Error(0)
}

func (m *MockBroker) Subscribe(ctx context.Context, topic string, handler brokers.MessageHandler) error {
	return m.Called(ctx, topic, handler).Error(0)
}

func (m *MockBroker) Health() error {
	return m.Called().Error(0)
}

func (m *MockBroker) Close() error {
	return m.Called().Error(0)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, msg *routing.Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *routing.Message) error {
	return f(ctx, msg)
}
