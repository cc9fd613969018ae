package base

import (
	"errors"
	"testing"
	"time"

	"message-router/internal/brokers"
	apperrors "message-router/internal/common/errors"
	"message-router/internal/common/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	addr    string
	invalid bool
}

func (c *testConfig) Validate() error {
	if c.invalid {
		return errors.New("address is required")
	}
	return nil
}
func (c *testConfig) GetConnectionString() string { return "test://" + c.addr }
func (c *testConfig) GetType() string             { return "test" }

type otherConfig struct{ testConfig }

func TestNewBaseBroker(t *testing.T) {
	b, err := NewBaseBroker("test", &testConfig{addr: "a"})
	require.NoError(t, err)
	assert.Equal(t, "test", b.Name())
	assert.NotNil(t, b.GetLogger())
	assert.Equal(t, brokers.BrokerInfo{Name: "test", Type: "test", URL: "test://a"}, b.GetBrokerInfo())

	_, err = NewBaseBroker("test", &testConfig{invalid: true})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestConnectionManager_ValidateAndConnect(t *testing.T) {
	b, err := NewBaseBroker("test", &testConfig{addr: "a"})
	require.NoError(t, err)
	cm := NewConnectionManager(b)

	called := false
	err = cm.ValidateAndConnect(&testConfig{addr: "b"}, (*testConfig)(nil), func(brokers.BrokerConfig) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "test://b", b.GetConfig().GetConnectionString())

	err = cm.ValidateAndConnect(&otherConfig{}, (*testConfig)(nil), func(brokers.BrokerConfig) error { return nil })
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))

	err = cm.ValidateAndConnect(&testConfig{invalid: true}, (*testConfig)(nil), func(brokers.BrokerConfig) error { return nil })
	assert.Error(t, err)
}

func TestStandardHealthCheck(t *testing.T) {
	var nilClient *testConfig
	assert.Error(t, StandardHealthCheck(nil, "redis"))
	assert.Error(t, StandardHealthCheck(nilClient, "redis"))
	assert.NoError(t, StandardHealthCheck(&testConfig{}, "redis"))
}

func TestMessageHandler_Handle(t *testing.T) {
	ok := NewMessageHandler(func(*brokers.IncomingMessage) error { return nil }, logging.NopLogger{}, "redis", "input")
	failing := NewMessageHandler(func(*brokers.IncomingMessage) error { return errors.New("boom") }, logging.NopLogger{}, "redis", "input")

	msg := ConvertToIncomingMessage(brokers.BrokerInfo{Name: "redis"}, MessageData{ID: "1"})
	assert.True(t, ok.Handle(msg))
	assert.False(t, failing.Handle(msg))
}

func TestConvertToIncomingMessage_Defaults(t *testing.T) {
	msg := ConvertToIncomingMessage(brokers.BrokerInfo{}, MessageData{ID: "1", Body: []byte("x")})
	assert.NotNil(t, msg.Headers)
	assert.WithinDuration(t, time.Now(), msg.Timestamp, time.Second)
}

func TestToStringMap(t *testing.T) {
	assert.Equal(t, map[string]string{"a": "1"}, ToStringMap(map[string]interface{}{"a": 1}))
	assert.Equal(t, map[string]string{"true": "x"}, ToStringMap(map[interface{}]interface{}{true: "x"}))
	assert.Empty(t, ToStringMap(nil))

	original := map[string]string{"k": "v"}
	copied := CopyHeaders(original)
	copied["k"] = "changed"
	assert.Equal(t, "v", original["k"])
}
