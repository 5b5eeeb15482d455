package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/zhouzirui/cardchat/internal/model/chat"
	"github.com/zhouzirui/cardchat/internal/model/persona"
	chatService "github.com/zhouzirui/cardchat/internal/service/chat"
	"github.com/zhouzirui/cardchat/pkg/utils"
)

// Handler serves session, login and feedback endpoints.
type Handler struct {
	chatSvc      *chatService.Service
	personaStore persona.Store
}

func New(chatSvc *chatService.Service, personaStore persona.Store) *Handler {
	return &Handler{
		chatSvc:      chatSvc,
		personaStore: personaStore,
	}
}

// RegisterRoutes mounts the chat REST routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/session/{sessionID}/transcript", h.handleTranscript)
	r.Post("/login", h.handleLogin)
	r.Post("/feedback", h.handleFeedback)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaID       string `json:"persona_id"`
		LegacyPersonaID string `json:"personaId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	personaID := payload.PersonaID
	if personaID == "" {
		personaID = payload.LegacyPersonaID
	}
	if personaID == "" {
		utils.RespondError(w, http.StatusBadRequest, "persona_id is required")
		return
	}

	if _, ok := h.personaStore.FindByID(personaID); !ok {
		utils.RespondError(w, http.StatusBadRequest, "persona not found")
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context(), personaID)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	hlog.FromRequest(r).Info().Str("session_id", session.ID).Str("persona_id", personaID).Msg("session created")
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	turns, err := h.chatSvc.LoadTranscript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"turns": turns})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"session_id"`
		PersonaID string `json:"persona_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, ok := h.personaStore.FindByID(payload.PersonaID); !ok {
		utils.RespondOutcome(w, false, "persona not found")
		return
	}

	if _, err := h.chatSvc.Login(r.Context(), payload.SessionID, payload.PersonaID); err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}

	hlog.FromRequest(r).Info().Str("session_id", payload.SessionID).Str("persona_id", payload.PersonaID).Msg("session logged in")
	utils.RespondOutcome(w, true, "")
}

func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MessageID       string `json:"message_id"`
		IsHelpful       *bool  `json:"is_helpful"`
		PromptMessageID string `json:"prompt_message_id"`
		SessionID       string `json:"session_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.IsHelpful == nil {
		utils.RespondError(w, http.StatusBadRequest, "is_helpful is required")
		return
	}

	record := chat.FeedbackRecord{
		SessionID:       payload.SessionID,
		MessageID:       payload.MessageID,
		IsHelpful:       *payload.IsHelpful,
		PromptMessageID: payload.PromptMessageID,
	}
	if err := h.chatSvc.RecordFeedback(r.Context(), record); err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}

	utils.RespondOutcome(w, true, "")
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatService.ErrPersonaRequired), errors.Is(err, chatService.ErrMessageIDRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
