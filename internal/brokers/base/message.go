package base

import (
	"fmt"
	"time"

	"message-router/internal/brokers"
	"message-router/internal/common/logging"
)

// MessageData is what an adapter extracts from its native message type
type MessageData struct {
	ID        string
	Headers   map[string]string
	Body      []byte
	Timestamp time.Time
	Metadata  map[string]interface{}
}

func ConvertToIncomingMessage(brokerInfo brokers.BrokerInfo, data MessageData) *brokers.IncomingMessage {
	timestamp := data.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	headers := data.Headers
	if headers == nil {
		headers = make(map[string]string)
	}

	return &brokers.IncomingMessage{
		ID:        data.ID,
		Headers:   headers,
		Body:      data.Body,
		Timestamp: timestamp,
		Source:    brokerInfo,
		Metadata:  data.Metadata,
	}
}

// MessageHandler wraps a subscriber callback with uniform error logging
type MessageHandler struct {
	handler    brokers.MessageHandler
	logger     logging.Logger
	brokerType string
	topic      string
}

func NewMessageHandler(handler brokers.MessageHandler, logger logging.Logger, brokerType, topic string) *MessageHandler {
	return &MessageHandler{
		handler:    handler,
		logger:     logger,
		brokerType: brokerType,
		topic:      topic,
	}
}

// Handle returns true when the message may be acknowledged
func (mh *MessageHandler) Handle(msg *brokers.IncomingMessage, extraFields ...logging.Field) bool {
	if err := mh.handler(msg); err != nil {
		fields := []logging.Field{
			logging.String("broker_type", mh.brokerType),
			logging.String("topic", mh.topic),
			logging.String("message_id", msg.ID),
		}
		fields = append(fields, extraFields...)

		mh.logger.Error(fmt.Sprintf("Error handling %s message", mh.brokerType), err, fields...)
		return false
	}
	return true
}

// ToStringMap flattens the header representations used by amqp, kafka and pubsub
func ToStringMap(headers interface{}) map[string]string {
	result := make(map[string]string)

	switch h := headers.(type) {
	case map[string]string:
		for k, v := range h {
			result[k] = v
		}
	case map[string]interface{}:
		for k, v := range h {
			result[k] = fmt.Sprintf("%v", v)
		}
	case map[interface{}]interface{}:
		for k, v := range h {
			result[fmt.Sprintf("%v", k)] = fmt.Sprintf("%v", v)
		}
	}

	return result
}

// CopyHeaders returns a copy of headers that is safe to mutate
func CopyHeaders(headers map[string]string) map[string]string {
	return ToStringMap(headers)
}
