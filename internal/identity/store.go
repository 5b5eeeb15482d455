// Package identity resolves and persists the chat session token across
// reconnects and restarts.
package identity

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Fixed key names, shared with the browser frontend's local storage.
const (
	SessionKey = "sessionId"
	PersonaKey = "selectedPersonaId"
)

// ErrNotFound is returned by a KV when the key is absent.
var ErrNotFound = errors.New("identity: key not found")

// KV is the external key-value store backing the identity.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// CookieSource exposes a session id the backend may have set as a cookie.
type CookieSource interface {
	SessionCookie() (string, bool)
	ClearSessionCookie()
}

// Store holds at most one live session id. Resolution order is
// memory, then the KV, then the cookie.
type Store struct {
	mu        sync.RWMutex
	sessionID string

	kv      KV
	cookies CookieSource
	logger  zerolog.Logger
}

// NewStore builds a Store. kv and cookies may be nil.
func NewStore(kv KV, cookies CookieSource, logger zerolog.Logger) *Store {
	return &Store{
		kv:      kv,
		cookies: cookies,
		logger:  logger.With().Str("component", "identity").Logger(),
	}
}

// Resolve returns the current session id, if any.
func (s *Store) Resolve(ctx context.Context) (string, bool) {
	s.mu.RLock()
	id := s.sessionID
	s.mu.RUnlock()
	if id != "" {
		return id, true
	}

	if s.kv != nil {
		v, err := s.kv.Get(ctx, SessionKey)
		switch {
		case err == nil && v != "":
			s.remember(v)
			return v, true
		case err != nil && !errors.Is(err, ErrNotFound):
			s.logger.Warn().Err(err).Msg("session lookup failed")
		}
	}

	if s.cookies != nil {
		if v, ok := s.cookies.SessionCookie(); ok && v != "" {
			s.remember(v)
			return v, true
		}
	}

	return "", false
}

// Persist records id in memory and, best effort, in the KV.
func (s *Store) Persist(ctx context.Context, id string) {
	if id == "" {
		return
	}
	s.remember(id)

	if s.kv == nil {
		return
	}
	if err := s.kv.Set(ctx, SessionKey, id); err != nil {
		s.logger.Warn().Err(err).Msg("session persist failed")
	}
}

// Clear forgets the session id everywhere it can.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.sessionID = ""
	s.mu.Unlock()

	if s.kv != nil {
		if err := s.kv.Delete(ctx, SessionKey); err != nil {
			s.logger.Warn().Err(err).Msg("session delete failed")
		}
	}
	if s.cookies != nil {
		s.cookies.ClearSessionCookie()
	}
}

// PersonaID returns the previously selected persona, if stored.
func (s *Store) PersonaID(ctx context.Context) (string, bool) {
	if s.kv == nil {
		return "", false
	}
	v, err := s.kv.Get(ctx, PersonaKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Msg("persona lookup failed")
		}
		return "", false
	}
	return v, v != ""
}

// SetPersonaID stores the selected persona, best effort.
func (s *Store) SetPersonaID(ctx context.Context, id string) {
	if s.kv == nil || id == "" {
		return
	}
	if err := s.kv.Set(ctx, PersonaKey, id); err != nil {
		s.logger.Warn().Err(err).Msg("persona persist failed")
	}
}

func (s *Store) remember(id string) {
	s.mu.Lock()
	s.sessionID = id
	s.mu.Unlock()
}
