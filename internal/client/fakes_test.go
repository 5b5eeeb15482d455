package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/cardchat/internal/api"
	"github.com/zhouzirui/cardchat/internal/identity"
	"github.com/zhouzirui/cardchat/internal/model/chat"
	"github.com/zhouzirui/cardchat/internal/model/persona"
)

type readResult struct {
	data []byte
	err  error
}

type fakeConn struct {
	mu       sync.Mutex
	written  [][]byte
	writeErr error
	closed   bool

	reads chan readResult
	done  chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{reads: make(chan readResult, 16), done: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case r := <-c.reads:
		return websocket.TextMessage, r.data, r.err
	case <-c.done:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if messageType != websocket.TextMessage {
		return nil
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *fakeConn) Written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeDialer struct {
	mu      sync.Mutex
	conns   []*fakeConn
	urls    []string
	headers []http.Header
	err     error
}

func (d *fakeDialer) Dial(_ context.Context, url string, header http.Header) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	d.headers = append(d.headers, header.Clone())
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

type fakeBackend struct {
	mu            sync.Mutex
	feedback      []api.FeedbackRequest
	feedbackErr   error
	feedbackGate  chan struct{}
	logins        []string
	loginErr      error
	personaCalls  int
	personaErr    error
	personaResult []persona.Option
}

func (b *fakeBackend) SubmitFeedback(ctx context.Context, req api.FeedbackRequest) error {
	b.mu.Lock()
	b.feedback = append(b.feedback, req)
	gate, err := b.feedbackGate, b.feedbackErr
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (b *fakeBackend) Login(_ context.Context, sessionID, personaID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logins = append(b.logins, sessionID+"/"+personaID)
	return b.loginErr
}

func (b *fakeBackend) ListPersonas(context.Context) ([]persona.Option, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.personaCalls++
	return b.personaResult, b.personaErr
}

func (b *fakeBackend) feedbackCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.feedback)
}

func (b *fakeBackend) personaCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.personaCalls
}

type recorder struct {
	mu       sync.Mutex
	states   []State
	messages [][]chat.Message
	notices  []Notice
	personas [][]persona.Option
	feedback []FeedbackState
}

func (r *recorder) OnState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) OnMessages(m []chat.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

func (r *recorder) OnNotice(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) OnPersonas(p []persona.Option) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.personas = append(r.personas, p)
}

func (r *recorder) OnFeedback(_ string, st FeedbackState, _ bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feedback = append(r.feedback, st)
}

func (r *recorder) noticeKinds() []NoticeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]NoticeKind, len(r.notices))
	for i, n := range r.notices {
		out[i] = n.Kind
	}
	return out
}

func (r *recorder) lastStates() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

type harness struct {
	m        *Manager
	dialer   *fakeDialer
	backend  *fakeBackend
	rec      *recorder
	identity *identity.Store
}

func newHarness(t *testing.T, protocol Protocol) *harness {
	t.Helper()
	h := &harness{
		dialer:   &fakeDialer{},
		backend:  &fakeBackend{},
		rec:      &recorder{},
		identity: identity.NewStore(identity.NewMemoryKV(), nil, zerolog.Nop()),
	}
	h.identity.Persist(context.Background(), "sess-1")

	ids := 0
	var idMu sync.Mutex
	h.m = NewManager(Options{
		Endpoint: "ws://chat.test/api/chat/ws",
		Protocol: protocol,
		Identity: h.identity,
		Backend:  h.backend,
		Dialer:   h.dialer,
		Listener: h.rec,
		Logger:   zerolog.Nop(),
		NewID: func() string {
			idMu.Lock()
			defer idMu.Unlock()
			ids++
			return fmt.Sprintf("id-%d", ids)
		},
	})
	t.Cleanup(func() { _ = h.m.Close() })
	return h
}

// connect opens the manager and returns the current generation so tests can
// feed frames synchronously.
func (h *harness) connect(t *testing.T) uint64 {
	t.Helper()
	require.NoError(t, h.m.Connect(context.Background()))
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	return h.m.gen
}

func (h *harness) frame(gen uint64, data string) {
	h.m.handleFrame(gen, []byte(data))
}

func nonIndicator(msgs []chat.Message) []chat.Message {
	var out []chat.Message
	for _, m := range msgs {
		if !m.IsIndicator() {
			out = append(out, m)
		}
	}
	return out
}
