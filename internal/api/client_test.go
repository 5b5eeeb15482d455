package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/cardchat/internal/model/persona"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "", srv.Client(), zerolog.Nop())
}

func TestCreateSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat/session", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "traveler", body["persona_id"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"session_id":"s-1"}`))
	})

	id, err := newTestClient(t, mux).CreateSession(context.Background(), "traveler")
	require.NoError(t, err)
	require.Equal(t, "s-1", id)
}

func TestCreateSessionStatusError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat/session", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "persona not found", http.StatusBadRequest)
	})

	_, err := newTestClient(t, mux).CreateSession(context.Background(), "nope")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
}

func TestListPersonasAcceptsBothShapes(t *testing.T) {
	for name, body := range map[string]string{
		"envelope": `{"personas":[{"persona_id":"a","persona_name":"A"},"B"]}`,
		"bare":     `[{"persona_id":"a","persona_name":"A"},"B"]`,
	} {
		t.Run(name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/api/chat/personas", func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})

			got, err := newTestClient(t, mux).ListPersonas(context.Background())
			require.NoError(t, err)
			require.Equal(t, []persona.Option{{ID: "a", Name: "A"}, {ID: "persona-1", Name: "B"}}, got)
		})
	}
}

func TestLoginRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"no such persona"}`))
	})

	err := newTestClient(t, mux).Login(context.Background(), "s", "p")
	require.ErrorIs(t, err, ErrRejected)
}

func TestSubmitFeedbackBody(t *testing.T) {
	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat/feedback", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})

	err := newTestClient(t, mux).SubmitFeedback(context.Background(), FeedbackRequest{MessageID: "m1", IsHelpful: false})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"message_id": "m1", "is_helpful": false}, got)
}

func TestWebsocketURL(t *testing.T) {
	c := NewClient("https://chat.example.com/", "/api/chat/", nil, zerolog.Nop())
	require.Equal(t, "https://chat.example.com/api/chat", c.BaseURL())
	require.Equal(t, "wss://chat.example.com/api/chat/ws", c.WebsocketURL())
}
