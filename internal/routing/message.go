package routing

import "strings"

// Message is the unit the router works on. Payload is either []byte or
// string. The router never modifies a Message; normalization returns a copy.
type Message struct {
	Payload interface{}
	Headers map[string]interface{}
}

// NewMessage copies headers so later changes by the caller are not observed
func NewMessage(payload interface{}, headers map[string]interface{}) *Message {
	copied := make(map[string]interface{}, len(headers))
	for k, v := range headers {
		copied[k] = v
	}
	return &Message{Payload: payload, Headers: copied}
}

// WithPayload returns a new message carrying payload and the same headers
func (m *Message) WithPayload(payload interface{}) *Message {
	return NewMessage(payload, m.Headers)
}

// Header looks name up exactly first, then case-insensitively
func (m *Message) Header(name string) (interface{}, bool) {
	if v, ok := m.Headers[name]; ok {
		return v, true
	}
	for k, v := range m.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// PayloadBytes returns the payload as bytes whatever its representation
func (m *Message) PayloadBytes() []byte {
	switch p := m.Payload.(type) {
	case []byte:
		return p
	case string:
		return []byte(p)
	case nil:
		return nil
	default:
		return []byte(toString(p))
	}
}
