package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/cardchat/internal/model/persona"
	chatservice "github.com/zhouzirui/cardchat/internal/service/chat"
)

func setupRouter() (*chi.Mux, *chatservice.Service, persona.Store) {
	chatSvc := chatservice.NewService()
	store := persona.NewMemoryStore(persona.Seed())
	handler := New(chatSvc, store)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, chatSvc, store
}

func post(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestCreateSessionValidPersona(t *testing.T) {
	r, chatSvc, store := setupRouter()
	personas := store.List()

	resp := post(r, "/session", map[string]string{"persona_id": personas[0].ID})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}

	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if _, err := chatSvc.GetSession(context.Background(), body.SessionID); err != nil {
		t.Fatalf("session %q not stored: %v", body.SessionID, err)
	}
}

func TestCreateSessionAcceptsCamelCaseField(t *testing.T) {
	r, _, _ := setupRouter()

	resp := post(r, "/session", map[string]string{"personaId": "traveler"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
}

func TestCreateSessionInvalidPersona(t *testing.T) {
	r, _, _ := setupRouter()

	resp := post(r, "/session", map[string]string{"persona_id": "non-existent"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestCreateSessionMissingPersonaID(t *testing.T) {
	r, _, _ := setupRouter()

	resp := post(r, "/session", map[string]string{})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestLoginMarksSession(t *testing.T) {
	r, chatSvc, _ := setupRouter()
	ctx := context.Background()
	session, _ := chatSvc.CreateSession(ctx, "young-saver")

	resp := post(r, "/login", map[string]string{"session_id": session.ID, "persona_id": "member"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte(`"success":true`)) {
		t.Fatalf("unexpected body: %s", resp.Body.String())
	}

	got, _ := chatSvc.GetSession(ctx, session.ID)
	if !got.LoggedIn || got.PersonaID != "member" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestLoginUnknownPersonaIsRejected(t *testing.T) {
	r, chatSvc, _ := setupRouter()
	session, _ := chatSvc.CreateSession(context.Background(), "young-saver")

	resp := post(r, "/login", map[string]string{"session_id": session.ID, "persona_id": "ghost"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte(`"success":false`)) {
		t.Fatalf("unexpected body: %s", resp.Body.String())
	}
}

func TestLoginUnknownSession(t *testing.T) {
	r, _, _ := setupRouter()

	resp := post(r, "/login", map[string]string{"session_id": "missing", "persona_id": "member"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestFeedbackRecorded(t *testing.T) {
	r, chatSvc, _ := setupRouter()

	resp := post(r, "/feedback", map[string]any{"message_id": "m1", "is_helpful": false, "prompt_message_id": "p1"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	got, ok := chatSvc.Feedback(context.Background(), "m1")
	if !ok || got.IsHelpful || got.PromptMessageID != "p1" {
		t.Fatalf("unexpected feedback: %+v (stored=%v)", got, ok)
	}
}

func TestFeedbackValidation(t *testing.T) {
	r, _, _ := setupRouter()

	if resp := post(r, "/feedback", map[string]any{"message_id": "m1"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without is_helpful, got %d", resp.Code)
	}
	if resp := post(r, "/feedback", map[string]any{"is_helpful": true}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without message_id, got %d", resp.Code)
	}
}

func TestTranscriptUnknownSession(t *testing.T) {
	r, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/session/missing/transcript", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
