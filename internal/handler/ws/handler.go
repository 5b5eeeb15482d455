package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/zhouzirui/cardchat/internal/model/chat"
	"github.com/zhouzirui/cardchat/internal/model/persona"
	chatservice "github.com/zhouzirui/cardchat/internal/service/chat"
)

const (
	replyTimeout     = 60 * time.Second
	loginRequiredMsg = "보유 카드 정보를 확인하려면 로그인이 필요합니다. 아래에서 프로필을 선택해주세요."
	fallbackReply    = "죄송합니다. 지금은 답변을 만들 수 없어요. 잠시 후 다시 시도해주세요."
)

var errSessionGone = errors.New("session no longer exists")

// Responder produces bot answers.
type Responder interface {
	Reply(ctx context.Context, p *persona.Persona, history []chat.Turn, query string) (string, error)
	Stream(ctx context.Context, p *persona.Persona, history []chat.Turn, query string) (*schema.StreamReader[*schema.Message], error)
}

// Handler speaks the chat websocket protocol.
type Handler struct {
	chatSvc   *chatservice.Service
	personas  persona.Store
	responder Responder
	upgrader  websocket.Upgrader
}

func New(chatSvc *chatservice.Service, personas persona.Store, responder Responder) *Handler {
	return &Handler{
		chatSvc:   chatSvc,
		personas:  personas,
		responder: responder,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type replyFrame struct {
	MessageID     string      `json:"message_id"`
	Message       string      `json:"message"`
	Sender        chat.Sender `json:"sender"`
	Timestamp     string      `json:"timestamp"`
	LoginRequired bool        `json:"login_required,omitempty"`
	Cards         []chat.Card `json:"cards,omitempty"`
	Questions     []string    `json:"questions,omitempty"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionFromRequest(r)
	logger := hlog.FromRequest(r).With().Str("session_id", sessionID).Logger()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	if _, err := h.chatSvc.GetSession(ctx, sessionID); err != nil {
		logger.Info().Msg("rejecting unknown session")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(chat.CloseSessionInvalid, "unknown session"),
			time.Now().Add(time.Second))
		return
	}

	streaming := r.URL.Query().Get("protocol") == "stream"
	logger.Info().Bool("streaming", streaming).Msg("websocket connected")

	if err := conn.WriteJSON(chat.InboundFrame{SessionID: sessionID}); err != nil {
		logger.Warn().Err(err).Msg("session sync failed")
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("websocket read failed")
			} else {
				logger.Info().Msg("websocket closed")
			}
			return
		}

		prompt := parsePrompt(data)
		if prompt == "" {
			continue
		}

		if err := h.answer(ctx, conn, sessionID, prompt, streaming, logger); err != nil {
			logger.Warn().Err(err).Msg("websocket write failed")
			return
		}
	}
}

func (h *Handler) answer(ctx context.Context, conn *websocket.Conn, sessionID, prompt string, streaming bool, logger zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()

	session, err := h.chatSvc.GetSession(ctx, sessionID)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(chat.CloseSessionInvalid, "unknown session"),
			time.Now().Add(time.Second))
		return errSessionGone
	}
	p, ok := h.personas.FindByID(session.PersonaID)
	if !ok {
		p = persona.Persona{ID: session.PersonaID, Name: session.PersonaID}
	}

	history, _ := h.chatSvc.LoadTranscript(ctx, sessionID)
	if _, err := h.chatSvc.SaveTurn(ctx, chat.Turn{SessionID: sessionID, Sender: chat.SenderUser, Content: prompt}); err != nil {
		logger.Warn().Err(err).Msg("failed to save user turn")
	}

	needsLogin := h.personas.RequiresLogin(session.PersonaID) && !session.LoggedIn
	var rec *chatservice.Recommendation
	if !needsLogin && chatservice.IsRecommendationPrompt(prompt) {
		r := chatservice.Recommend(p, prompt)
		rec = &r
	}

	var text string
	if streaming {
		text, err = h.streamReply(ctx, conn, &p, history, prompt, needsLogin, rec)
	} else {
		text, err = h.structuredReply(ctx, conn, &p, history, prompt, needsLogin, rec, logger)
	}
	if err != nil {
		return err
	}

	if _, err := h.chatSvc.SaveTurn(ctx, chat.Turn{SessionID: sessionID, Sender: chat.SenderBot, Content: text}); err != nil {
		logger.Warn().Err(err).Msg("failed to save bot turn")
	}
	return nil
}

func (h *Handler) structuredReply(ctx context.Context, conn *websocket.Conn, p *persona.Persona, history []chat.Turn, prompt string, needsLogin bool, rec *chatservice.Recommendation, logger zerolog.Logger) (string, error) {
	frame := replyFrame{
		MessageID: uuid.NewString(),
		Sender:    chat.SenderBot,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}

	switch {
	case needsLogin:
		frame.Message = loginRequiredMsg
		frame.LoginRequired = true
	default:
		text, err := h.responder.Reply(ctx, p, history, prompt)
		if err != nil {
			logger.Warn().Err(err).Msg("responder failed")
			text = fallbackReply
		}
		frame.Message = text
	}
	if rec != nil {
		frame.Cards = rec.Cards
		frame.Questions = rec.Questions
	}

	return frame.Message, conn.WriteJSON(frame)
}

func (h *Handler) streamReply(ctx context.Context, conn *websocket.Conn, p *persona.Persona, history []chat.Turn, prompt string, needsLogin bool, rec *chatservice.Recommendation) (string, error) {
	if needsLogin {
		if err := writeStream(conn, chat.FrameTextChunk, loginRequiredMsg); err != nil {
			return "", err
		}
		return loginRequiredMsg, writeStream(conn, chat.FrameStreamEnd, nil)
	}

	reader, err := h.responder.Stream(ctx, p, history, prompt)
	if err != nil {
		return "", writeStream(conn, chat.FrameError, err.Error())
	}
	defer reader.Close()

	var full strings.Builder
	for {
		msg, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return full.String(), writeStream(conn, chat.FrameError, err.Error())
		}
		if msg.Content == "" {
			continue
		}
		full.WriteString(msg.Content)
		if err := writeStream(conn, chat.FrameTextChunk, msg.Content); err != nil {
			return full.String(), err
		}
	}

	if rec != nil {
		if err := writeStream(conn, chat.FrameJSONData, rec); err != nil {
			return full.String(), err
		}
	}
	return full.String(), writeStream(conn, chat.FrameStreamEnd, nil)
}

func writeStream(conn *websocket.Conn, typ string, payload any) error {
	frame := chat.StreamFrame{Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		frame.Payload = raw
	}
	return conn.WriteJSON(frame)
}

// parsePrompt accepts the structured prompt frame or bare text.
func parsePrompt(data []byte) string {
	var frame chat.OutboundFrame
	if err := json.Unmarshal(data, &frame); err == nil && frame.Message != "" {
		return strings.TrimSpace(frame.Message)
	}
	return strings.TrimSpace(string(data))
}

func sessionFromRequest(r *http.Request) string {
	if id := r.URL.Query().Get("session_id"); id != "" {
		return id
	}
	if id := r.Header.Get("X-Session-ID"); id != "" {
		return id
	}
	if c, err := r.Cookie("session_id"); err == nil {
		return c.Value
	}
	return ""
}
