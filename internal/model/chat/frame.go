package chat

import "encoding/json"

// Stream frame discriminators.
const (
	FrameTextChunk = "text_chunk"
	FrameJSONData  = "json_data"
	FrameStreamEnd = "stream_end"
	FrameError     = "error"
)

// CloseSessionInvalid is the close code the backend uses for an unknown session.
const CloseSessionInvalid = 4001

// OutboundFrame is what the client writes for every prompt in the structured protocol.
type OutboundFrame struct {
	MessageID string `json:"message_id"`
	Message   string `json:"message"`
	Sender    Sender `json:"sender"`
	Timestamp string `json:"timestamp"`
}

// InboundFrame is the structured reply shape. Message stays raw because some
// backends put an object there instead of a string.
type InboundFrame struct {
	MessageID     string          `json:"message_id,omitempty"`
	Message       json.RawMessage `json:"message,omitempty"`
	Sender        Sender          `json:"sender,omitempty"`
	Timestamp     string          `json:"timestamp,omitempty"`
	SessionID     string          `json:"session_id,omitempty"`
	LoginRequired bool            `json:"login_required,omitempty"`
	ToolResponse  json.RawMessage `json:"tool_response,omitempty"`
}

// InboundKeys lists the fields of InboundFrame; anything else is an extra.
var InboundKeys = map[string]struct{}{
	"message_id":     {},
	"message":        {},
	"sender":         {},
	"timestamp":      {},
	"session_id":     {},
	"login_required": {},
	"tool_response":  {},
}

// StreamFrame is the token-streaming shape.
type StreamFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// IsStreamType reports whether t is one of the stream discriminators.
func IsStreamType(t string) bool {
	switch t {
	case FrameTextChunk, FrameJSONData, FrameStreamEnd, FrameError:
		return true
	}
	return false
}
