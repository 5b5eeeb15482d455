package chat

import "time"

// Session captures a backend conversation bound to one persona.
type Session struct {
	ID        string    `json:"session_id"`
	PersonaID string    `json:"persona_id"`
	LoggedIn  bool      `json:"logged_in"`
	CreatedAt time.Time `json:"created_at"`
}

// Turn persists one transcript entry on the development backend.
type Turn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// FeedbackRecord is a vote stored by the development backend.
type FeedbackRecord struct {
	SessionID       string    `json:"session_id,omitempty"`
	MessageID       string    `json:"message_id"`
	IsHelpful       bool      `json:"is_helpful"`
	PromptMessageID string    `json:"prompt_message_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
