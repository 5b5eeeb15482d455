package client

import (
	"github.com/zhouzirui/cardchat/internal/model/chat"
	"github.com/zhouzirui/cardchat/internal/model/persona"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// NoticeKind classifies user-visible notices.
type NoticeKind string

const (
	NoticeConfiguration      NoticeKind = "configuration"
	NoticeConnectionError    NoticeKind = "connection_error"
	NoticeDisconnected       NoticeKind = "disconnected"
	NoticeSessionInvalid     NoticeKind = "session_invalid"
	NoticeFeedbackFailed     NoticeKind = "feedback_failed"
	NoticeLoginUnavailable   NoticeKind = "login_unavailable"
	NoticeLoginFailed        NoticeKind = "login_failed"
	NoticeLoggedIn           NoticeKind = "logged_in"
	NoticePersonaFetchFailed NoticeKind = "persona_fetch_failed"
)

// Notice is an inline banner for the UI. It is never returned as a panic.
type Notice struct {
	Kind      NoticeKind
	Text      string
	MessageID string
	Err       error
}

// Fatal reports whether the notice requires leaving the chat screen.
func (n Notice) Fatal() bool {
	return n.Kind == NoticeSessionInvalid || n.Kind == NoticeConfiguration
}

var noticeText = map[NoticeKind]string{
	NoticeConfiguration:      "채팅 설정을 찾을 수 없습니다. 페르소나를 다시 선택해주세요.",
	NoticeConnectionError:    "서버 연결에 실패했습니다. 재연결을 눌러주세요.",
	NoticeDisconnected:       "연결이 끊어졌습니다. 재연결을 눌러주세요.",
	NoticeSessionInvalid:     "세션이 만료되었습니다. 페르소나를 다시 선택해주세요.",
	NoticeFeedbackFailed:     "피드백 전송에 실패했습니다. 다시 시도해주세요.",
	NoticeLoginUnavailable:   "세션 정보가 없어 로그인할 수 없습니다.",
	NoticeLoginFailed:        "로그인에 실패했습니다. 다시 시도해주세요.",
	NoticeLoggedIn:           "로그인되었습니다.",
	NoticePersonaFetchFailed: "프로필 목록을 불러오지 못했습니다.",
}

func newNotice(kind NoticeKind, err error) Notice {
	return Notice{Kind: kind, Text: noticeText[kind], Err: err}
}

// Listener receives every observable change. Calls are serialized and made
// without the manager's state lock held, but a listener must not call
// mutating Manager methods synchronously from inside a callback.
type Listener interface {
	OnState(State)
	OnMessages([]chat.Message)
	OnNotice(Notice)
	OnPersonas([]persona.Option)
	OnFeedback(messageID string, state FeedbackState, ok bool)
}

// NopListener ignores everything; embed it to implement a subset.
type NopListener struct{}

func (NopListener) OnState(State)                          {}
func (NopListener) OnMessages([]chat.Message)              {}
func (NopListener) OnNotice(Notice)                        {}
func (NopListener) OnPersonas([]persona.Option)            {}
func (NopListener) OnFeedback(string, FeedbackState, bool) {}
