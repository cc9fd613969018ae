package binder

import (
	"time"

	"github.com/google/uuid"

	"message-router/internal/brokers"
	"message-router/internal/brokers/base"
	"message-router/internal/routing"
)

// messageIDHeaders are checked in order for an id to carry over to the outbound message
var messageIDHeaders = []string{"id", "messageId", "message_id"}

// ToBrokerMessage builds the outbound message for destination name at address.
// Header values are stringified; a message without an id header gets a new uuid.
func ToBrokerMessage(name, address string, msg *routing.Message) *brokers.Message {
	headers := base.ToStringMap(msg.Headers)

	messageID := ""
	for _, key := range messageIDHeaders {
		if id := headers[key]; id != "" {
			messageID = id
			break
		}
	}
	if messageID == "" {
		messageID = uuid.NewString()
	}

	return &brokers.Message{
		Destination: address,
		RoutingKey:  name,
		Headers:     headers,
		Body:        msg.PayloadBytes(),
		Timestamp:   time.Now(),
		MessageID:   messageID,
	}
}

// ToRoutingMessage converts an inbound broker message. The body stays binary;
// the router decides whether to decode it. The broker message id is exposed
// as the id header unless the message already carries one.
func ToRoutingMessage(incoming *brokers.IncomingMessage) *routing.Message {
	headers := make(map[string]interface{}, len(incoming.Headers)+1)
	for k, v := range incoming.Headers {
		headers[k] = v
	}
	if _, ok := headers["id"]; !ok && incoming.ID != "" {
		headers["id"] = incoming.ID
	}
	return &routing.Message{Payload: incoming.Body, Headers: headers}
}
