package client

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/cardchat/internal/model/persona"
)

// LoginBackend lists personas and logs a session in as one of them.
type LoginBackend interface {
	ListPersonas(ctx context.Context) ([]persona.Option, error)
	Login(ctx context.Context, sessionID, personaID string) error
}

// SessionResolver yields the current session id.
type SessionResolver interface {
	Resolve(ctx context.Context) (string, bool)
}

type loginHooks interface {
	personasLoaded(opts []persona.Option)
	loginCompleted()
	notice(n Notice)
}

// LoginGate fetches persona options once and performs the login call.
type LoginGate struct {
	mu        sync.Mutex
	fetched   bool
	fetching  bool
	options   []persona.Option
	completed bool
	loggingIn bool
	epoch     uint64

	backend  LoginBackend
	identity SessionResolver
	hooks    loginHooks
	logger   zerolog.Logger
}

func newLoginGate(backend LoginBackend, identity SessionResolver, hooks loginHooks, logger zerolog.Logger) *LoginGate {
	return &LoginGate{backend: backend, identity: identity, hooks: hooks, logger: logger}
}

// Options returns the cached persona options.
func (g *LoginGate) Options() []persona.Option {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]persona.Option(nil), g.options...)
}

// Completed reports whether a login succeeded since the last reset.
func (g *LoginGate) Completed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.completed
}

// FetchOptions loads the persona list on first use. Later calls return the
// cached list; a call racing an in-flight fetch returns nothing. A failed
// fetch leaves the gate ready to retry.
func (g *LoginGate) FetchOptions(ctx context.Context) ([]persona.Option, error) {
	g.mu.Lock()
	if g.fetched {
		opts := append([]persona.Option(nil), g.options...)
		g.mu.Unlock()
		return opts, nil
	}
	if g.fetching {
		g.mu.Unlock()
		return nil, nil
	}
	g.fetching = true
	g.mu.Unlock()

	opts, err := g.backend.ListPersonas(ctx)

	g.mu.Lock()
	g.fetching = false
	if err != nil {
		g.mu.Unlock()
		g.logger.Warn().Err(err).Msg("persona options fetch failed")
		g.hooks.notice(newNotice(NoticePersonaFetchFailed, err))
		return nil, err
	}
	g.fetched = true
	g.options = opts
	g.mu.Unlock()

	g.hooks.personasLoaded(append([]persona.Option(nil), opts...))
	return append([]persona.Option(nil), opts...), nil
}

// Login logs the current session in as personaID. A second call while one is
// in flight is a no-op.
func (g *LoginGate) Login(ctx context.Context, personaID string) error {
	var (
		sessionID string
		ok        bool
	)
	if g.identity != nil {
		sessionID, ok = g.identity.Resolve(ctx)
	}
	if !ok {
		g.hooks.notice(newNotice(NoticeLoginUnavailable, ErrNoSession))
		return ErrNoSession
	}

	g.mu.Lock()
	if g.loggingIn {
		g.mu.Unlock()
		return nil
	}
	g.loggingIn = true
	epoch := g.epoch
	g.mu.Unlock()

	err := g.backend.Login(ctx, sessionID, personaID)

	g.mu.Lock()
	if g.epoch != epoch {
		g.mu.Unlock()
		g.logger.Debug().Str("persona_id", personaID).Msg("dropping login response after reset")
		return err
	}
	g.loggingIn = false
	if err != nil {
		g.mu.Unlock()
		g.logger.Warn().Err(err).Str("persona_id", personaID).Msg("persona login failed")
		g.hooks.notice(newNotice(NoticeLoginFailed, err))
		return err
	}
	g.completed = true
	g.mu.Unlock()

	g.logger.Info().Str("persona_id", personaID).Msg("persona login completed")
	g.hooks.loginCompleted()
	return nil
}

// Reset clears the completed and in-flight flags. Fetched options are kept.
func (g *LoginGate) Reset() {
	g.mu.Lock()
	g.completed = false
	g.loggingIn = false
	g.epoch++
	g.mu.Unlock()
}
