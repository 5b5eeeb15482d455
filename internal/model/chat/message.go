package chat

import (
	"encoding/json"
	"time"
)

// Sender identifies who authored a record.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Kind decides how a record is rendered and whether it accepts streamed appends.
type Kind string

const (
	KindText   Kind = "text"
	KindJSON   Kind = "json"
	KindError  Kind = "error"
	KindTyping Kind = "typing-indicator"
)

// GreetingID is reserved for the canonical greeting record.
const GreetingID = "greeting"

// GreetingText is shown once the first connection of a session opens.
const GreetingText = "안녕하세요! 우리 카드 챗봇입니다."

// Message is one entry of the client-side message log.
type Message struct {
	ID               string                     `json:"id"`
	ServerMessageID  string                     `json:"serverMessageId,omitempty"`
	Sender           Sender                     `json:"sender"`
	Kind             Kind                       `json:"kind"`
	Text             string                     `json:"text,omitempty"`
	Payload          json.RawMessage            `json:"payload,omitempty"`
	Timestamp        time.Time                  `json:"timestamp"`
	PromptMessageID  string                     `json:"promptMessageId,omitempty"`
	Extra            map[string]json.RawMessage `json:"extra,omitempty"`
	LoginRequired    bool                       `json:"loginRequired,omitempty"`
	FeedbackEligible bool                       `json:"feedbackEligible,omitempty"`
	Streaming        bool                       `json:"streaming,omitempty"`
}

// Clone returns a copy that shares no mutable state with m.
func (m Message) Clone() Message {
	out := m
	if m.Payload != nil {
		out.Payload = append(json.RawMessage(nil), m.Payload...)
	}
	if m.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// IsIndicator reports whether m is the typing placeholder.
func (m Message) IsIndicator() bool {
	return m.Kind == KindTyping
}
