// Package api talks to the REST collaborators of the chat backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/cardchat/internal/model/persona"
)

// DefaultPrefix is where the backend mounts the chat API.
const DefaultPrefix = "/api/chat"

// StatusError reports a non-2xx response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// ErrRejected is returned when the backend answers 2xx with success=false.
var ErrRejected = errors.New("request rejected by backend")

// FeedbackRequest is the body of POST /feedback.
type FeedbackRequest struct {
	MessageID       string `json:"message_id"`
	IsHelpful       bool   `json:"is_helpful"`
	PromptMessageID string `json:"prompt_message_id,omitempty"`
}

// Client calls the session, persona, login and feedback endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient builds a client for serverURL+prefix. A nil httpClient uses a default one.
func NewClient(serverURL, prefix string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Client{
		baseURL:    strings.TrimRight(serverURL, "/") + "/" + strings.Trim(prefix, "/"),
		httpClient: httpClient,
		logger:     logger.With().Str("component", "api").Logger(),
	}
}

// BaseURL returns the resolved API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// WebsocketURL returns the chat socket endpoint derived from the API root.
func (c *Client) WebsocketURL() string {
	u := c.baseURL
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/ws"
}

// CreateSession asks the backend for a new session bound to personaID.
func (c *Client) CreateSession(ctx context.Context, personaID string) (string, error) {
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/session", map[string]string{"persona_id": personaID}, &resp); err != nil {
		return "", errors.Wrap(err, "create session")
	}
	if resp.SessionID == "" {
		return "", errors.New("create session: empty session_id")
	}
	return resp.SessionID, nil
}

// ListPersonas fetches and normalizes the persona list. The backend may
// answer with {"personas": [...]} or with a bare list.
func (c *Client) ListPersonas(ctx context.Context) ([]persona.Option, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/personas", nil, &raw); err != nil {
		return nil, errors.Wrap(err, "list personas")
	}

	items, err := decodePersonaList(raw)
	if err != nil {
		return nil, errors.Wrap(err, "list personas")
	}
	return persona.NormalizeOptions(items), nil
}

// Login binds a persona to the session.
func (c *Client) Login(ctx context.Context, sessionID, personaID string) error {
	body := map[string]string{"session_id": sessionID, "persona_id": personaID}
	var resp outcome
	if err := c.do(ctx, http.MethodPost, "/login", body, &resp); err != nil {
		return errors.Wrap(err, "login")
	}
	return resp.err("login")
}

// SubmitFeedback records a helpful/unhelpful vote for a bot message.
func (c *Client) SubmitFeedback(ctx context.Context, req FeedbackRequest) error {
	var resp outcome
	if err := c.do(ctx, http.MethodPost, "/feedback", req, &resp); err != nil {
		return errors.Wrap(err, "feedback")
	}
	return resp.err("feedback")
}

type outcome struct {
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
}

func (o outcome) err(op string) error {
	if o.Success != nil && !*o.Success {
		if o.Message != "" {
			return errors.Wrapf(ErrRejected, "%s: %s", op, o.Message)
		}
		return errors.Wrap(ErrRejected, op)
	}
	return nil
}

func decodePersonaList(raw json.RawMessage) ([]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var items []any
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, errors.Wrap(err, "decode persona list")
		}
		return items, nil
	}

	var wrapped struct {
		Personas []any `json:"personas"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, errors.Wrap(err, "decode persona envelope")
	}
	return wrapped.Personas, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Op: method + " " + path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "decode response")
	}

	c.logger.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("request done")
	return nil
}
