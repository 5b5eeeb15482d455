package client

import (
	"time"

	"github.com/zhouzirui/cardchat/internal/model/chat"
)

// MessageLog is the ordered transcript shown to the user. It is not safe for
// concurrent use; the Manager guards it with its state lock.
type MessageLog struct {
	items []chat.Message
}

func NewMessageLog() *MessageLog {
	return &MessageLog{}
}

func (l *MessageLog) Len() int {
	return len(l.items)
}

func (l *MessageLog) Append(m chat.Message) {
	l.items = append(l.items, m)
}

// Has reports whether a record with the given client id exists.
func (l *MessageLog) Has(id string) bool {
	return l.index(id) >= 0
}

// Find returns a copy of the record with the given client id.
func (l *MessageLog) Find(id string) (chat.Message, bool) {
	i := l.index(id)
	if i < 0 {
		return chat.Message{}, false
	}
	return l.items[i].Clone(), true
}

// ShowIndicator appends the typing placeholder unless one is already present.
func (l *MessageLog) ShowIndicator(id string, now time.Time) bool {
	if l.indicatorIndex() >= 0 {
		return false
	}
	l.items = append(l.items, chat.Message{
		ID:        id,
		Sender:    chat.SenderBot,
		Kind:      chat.KindTyping,
		Timestamp: now,
	})
	return true
}

// RemoveIndicator drops the typing placeholder if present.
func (l *MessageLog) RemoveIndicator() bool {
	i := l.indicatorIndex()
	if i < 0 {
		return false
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	return true
}

// ReplaceIndicator removes the typing placeholder and appends m in one step,
// so observers never see both or neither.
func (l *MessageLog) ReplaceIndicator(m chat.Message) {
	l.RemoveIndicator()
	l.items = append(l.items, m)
}

// AppendChunk extends the most recent record when it is an open streaming bot
// text record. It reports false when there is nothing to extend.
func (l *MessageLog) AppendChunk(text string) bool {
	i := l.lastContentIndex()
	if i < 0 {
		return false
	}
	m := &l.items[i]
	if m.Sender != chat.SenderBot || m.Kind != chat.KindText || !m.Streaming {
		return false
	}
	m.Text += text
	return true
}

// CloseStreaming seals any open streaming record and marks it eligible for
// feedback.
func (l *MessageLog) CloseStreaming() bool {
	closed := false
	for i := range l.items {
		if l.items[i].Streaming {
			l.items[i].Streaming = false
			l.items[i].FeedbackEligible = true
			closed = true
		}
	}
	return closed
}

// ClearLoginRequired resets the login flag on every record and returns how
// many changed.
func (l *MessageLog) ClearLoginRequired() int {
	n := 0
	for i := range l.items {
		if l.items[i].LoginRequired {
			l.items[i].LoginRequired = false
			n++
		}
	}
	return n
}

// Snapshot returns a deep copy safe to hand to listeners.
func (l *MessageLog) Snapshot() []chat.Message {
	out := make([]chat.Message, len(l.items))
	for i, m := range l.items {
		out[i] = m.Clone()
	}
	return out
}

func (l *MessageLog) Reset() {
	l.items = nil
}

func (l *MessageLog) index(id string) int {
	for i := range l.items {
		if l.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *MessageLog) indicatorIndex() int {
	for i := range l.items {
		if l.items[i].IsIndicator() {
			return i
		}
	}
	return -1
}

func (l *MessageLog) lastContentIndex() int {
	for i := len(l.items) - 1; i >= 0; i-- {
		if !l.items[i].IsIndicator() {
			return i
		}
	}
	return -1
}
