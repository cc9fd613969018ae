package routing

import (
	"mime"
	"strings"
)

// DefaultContentType is assumed for binary payloads that carry no content type
const DefaultContentType = "application/json"

const tupleContentType = "application/x-spring-tuple"

// PayloadNormalizer decodes binary payloads whose content type is text-like
// (text/*, JSON and the tuple type) into strings. It only runs ahead of the
// expression evaluator.
type PayloadNormalizer struct{}

// Normalize returns msg itself when nothing changes, otherwise a new message
// with the decoded payload and the same headers.
func (PayloadNormalizer) Normalize(msg *Message) *Message {
	payload, ok := msg.Payload.([]byte)
	if !ok {
		return msg
	}
	if !IsTextContentType(contentType(msg)) {
		return msg
	}
	return msg.WithPayload(string(payload))
}

func contentType(msg *Message) string {
	for _, name := range []string{"contentType", "content-type"} {
		if v, ok := msg.Header(name); ok && v != nil {
			if s := strings.TrimSpace(toString(v)); s != "" {
				return s
			}
		}
	}
	return DefaultContentType
}

// IsTextContentType reports whether a payload of this type is safe to decode
// as UTF-8 text. Unparseable types are not.
func IsTextContentType(value string) bool {
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return false
	}

	if mediaType == tupleContentType || strings.HasPrefix(mediaType, "text/") {
		return true
	}
	_, subtype, found := strings.Cut(mediaType, "/")
	return found && (subtype == "json" || strings.HasSuffix(subtype, "+json"))
}
