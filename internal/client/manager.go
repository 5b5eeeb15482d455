// Package client implements the chat session client: one websocket per
// session, a message log, prompt correlation, feedback and persona login.
package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/cardchat/internal/model/chat"
	"github.com/zhouzirui/cardchat/internal/model/persona"
)

// Protocol selects the wire variant.
type Protocol string

const (
	ProtocolStructured Protocol = "structured"
	ProtocolStreaming  Protocol = "stream"
)

// SessionHeader carries the session id on the upgrade request.
const SessionHeader = "X-Session-ID"

// IdentityStore is the session token storage the manager reads, updates and
// clears.
type IdentityStore interface {
	Resolve(ctx context.Context) (string, bool)
	Persist(ctx context.Context, id string)
	Clear(ctx context.Context)
}

// Backend is the REST side the manager delegates to.
type Backend interface {
	FeedbackBackend
	LoginBackend
}

// Options configures a Manager.
type Options struct {
	// Endpoint is the websocket URL, e.g. ws://host/api/chat/ws.
	Endpoint       string
	Protocol       Protocol
	Identity       IdentityStore
	Backend        Backend
	Dialer         Dialer
	Listener       Listener
	Logger         zerolog.Logger
	RequestTimeout time.Duration

	Now   func() time.Time
	NewID func() string
}

// Manager owns the websocket lifecycle and every piece of session state.
type Manager struct {
	opts Options

	mu    sync.Mutex
	state State
	conn  Conn
	gen   uint64
	log   *MessageLog
	queue *PromptQueue

	awaiting       bool
	responseOpen   bool
	responsePrompt string

	pending pendingUpdate

	notifyMu sync.Mutex

	feedback *FeedbackSubmitter
	login    *LoginGate
	logger   zerolog.Logger
}

type pendingUpdate struct {
	state    bool
	messages bool
	notices  []Notice
}

func NewManager(opts Options) *Manager {
	if opts.Protocol == "" {
		opts.Protocol = ProtocolStructured
	}
	if opts.Listener == nil {
		opts.Listener = NopListener{}
	}
	if opts.Dialer == nil {
		opts.Dialer = NewWebsocketDialer(nil, 15*time.Second)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	m := &Manager{
		opts:   opts,
		state:  StateDisconnected,
		log:    NewMessageLog(),
		queue:  NewPromptQueue(),
		logger: opts.Logger.With().Str("component", "chat_client").Logger(),
	}
	m.feedback = newFeedbackSubmitter(opts.Backend, m, m.logger)
	m.login = newLoginGate(opts.Backend, opts.Identity, m, m.logger)
	return m
}

// Connect opens a websocket for the current session. A newer Connect,
// Reconnect or Close supersedes an attempt still dialing.
func (m *Manager) Connect(ctx context.Context) error {
	if m.opts.Endpoint == "" {
		m.emitNotice(newNotice(NoticeConfiguration, ErrNoEndpoint))
		return ErrNoEndpoint
	}
	var (
		sessionID string
		ok        bool
	)
	if m.opts.Identity != nil {
		sessionID, ok = m.opts.Identity.Resolve(ctx)
	}
	if !ok {
		m.emitNotice(newNotice(NoticeConfiguration, ErrNoSession))
		return ErrNoSession
	}
	target, err := m.dialURL(sessionID)
	if err != nil {
		m.emitNotice(newNotice(NoticeConfiguration, err))
		return errors.Wrap(ErrConfiguration, err.Error())
	}

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.dropConnLocked()
	m.setStateLocked(StateConnecting)
	m.unlockAndNotify()

	header := http.Header{}
	header.Set(SessionHeader, sessionID)
	m.logger.Info().Str("session_id", sessionID).Str("url", target).Msg("connecting")
	conn, err := m.opts.Dialer.Dial(ctx, target, header)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if conn != nil {
			closeConn(conn)
		}
		return ErrSuperseded
	}
	if err != nil {
		m.setStateLocked(StateDisconnected)
		m.noticeLocked(newNotice(NoticeConnectionError, err))
		m.unlockAndNotify()
		m.logger.Warn().Err(err).Msg("websocket dial failed")
		return errors.Wrap(err, "connect")
	}
	m.conn = conn
	m.setStateLocked(StateOpen)
	if !m.log.Has(chat.GreetingID) {
		m.log.Append(chat.Message{
			ID:        chat.GreetingID,
			Sender:    chat.SenderBot,
			Kind:      chat.KindText,
			Text:      chat.GreetingText,
			Timestamp: m.opts.Now(),
		})
		m.pending.messages = true
	}
	m.unlockAndNotify()

	m.logger.Info().Str("session_id", sessionID).Msg("websocket open")
	go m.readLoop(gen, conn)
	return nil
}

// Reconnect drops the current socket and all per-connection state, then
// connects again.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	m.gen++
	m.dropConnLocked()
	m.log.Reset()
	m.queue.Clear()
	m.resetStreamLocked()
	m.pending.messages = true
	m.setStateLocked(StateReconnecting)
	m.unlockAndNotify()

	m.feedback.Reset()
	m.login.Reset()
	return m.Connect(ctx)
}

// Close tears the connection down. It is safe to call repeatedly.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.gen++
	m.dropConnLocked()
	m.queue.Clear()
	if m.log.RemoveIndicator() {
		m.pending.messages = true
	}
	if m.log.CloseStreaming() {
		m.pending.messages = true
	}
	m.resetStreamLocked()
	m.setStateLocked(StateClosed)
	m.unlockAndNotify()
	return nil
}

// Send writes a prompt. The optimistic user record is only added once the
// write succeeded.
func (m *Manager) Send(text string) (chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.Message{}, ErrEmptyMessage
	}

	m.mu.Lock()
	if m.state != StateOpen || m.conn == nil {
		m.mu.Unlock()
		return chat.Message{}, ErrNotOpen
	}
	if m.opts.Protocol == ProtocolStreaming && m.streamingLocked() {
		m.mu.Unlock()
		return chat.Message{}, ErrStreaming
	}

	id := m.opts.NewID()
	now := m.opts.Now()
	var payload []byte
	if m.opts.Protocol == ProtocolStreaming {
		payload = []byte(text)
	} else {
		var err error
		if payload, err = encodePrompt(id, text, now); err != nil {
			m.mu.Unlock()
			return chat.Message{}, errors.Wrap(err, "encode prompt")
		}
	}
	if err := m.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		m.mu.Unlock()
		m.logger.Warn().Err(err).Msg("prompt write failed")
		return chat.Message{}, errors.Wrap(err, "write prompt")
	}

	rec := chat.Message{
		ID:              id,
		ServerMessageID: id,
		Sender:          chat.SenderUser,
		Kind:            chat.KindText,
		Text:            text,
		Timestamp:       now,
	}
	m.log.Append(rec)
	m.queue.Push(Prompt{ID: id, ServerMessageID: id})
	m.log.ShowIndicator(m.opts.NewID(), now)
	if m.opts.Protocol == ProtocolStreaming {
		m.awaiting = true
	}
	m.pending.messages = true
	m.pending.state = true
	m.unlockAndNotify()
	return rec.Clone(), nil
}

// SubmitFeedback votes on a bot record identified by its client id.
func (m *Manager) SubmitFeedback(ctx context.Context, messageID string, helpful bool) error {
	m.mu.Lock()
	rec, ok := m.log.Find(messageID)
	m.mu.Unlock()
	if !ok {
		return ErrUnknownMessage
	}
	if !rec.FeedbackEligible {
		return ErrNotEligible
	}
	target := FeedbackTarget{MessageID: rec.ServerMessageID, PromptMessageID: rec.PromptMessageID}
	if target.MessageID == "" {
		target.MessageID = rec.ID
	}
	ctx, cancel := context.WithTimeout(ctx, m.opts.RequestTimeout)
	defer cancel()
	return m.feedback.Submit(ctx, messageID, target, helpful)
}

// FetchPersonas loads the persona options for the login prompt.
func (m *Manager) FetchPersonas(ctx context.Context) ([]persona.Option, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.RequestTimeout)
	defer cancel()
	return m.login.FetchOptions(ctx)
}

// Login logs the session in as the chosen persona.
func (m *Manager) Login(ctx context.Context, personaID string) error {
	ctx, cancel := context.WithTimeout(ctx, m.opts.RequestTimeout)
	defer cancel()
	return m.login.Login(ctx, personaID)
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Messages returns a copy of the log.
func (m *Manager) Messages() []chat.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.log.Snapshot()
}

// InputEnabled reports whether Send would currently be accepted.
func (m *Manager) InputEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateOpen {
		return false
	}
	return m.opts.Protocol != ProtocolStreaming || !m.streamingLocked()
}

// Streaming reports whether a streamed response is awaited or open.
func (m *Manager) Streaming() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamingLocked()
}

func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

func (m *Manager) Feedback(messageID string) (FeedbackState, bool) {
	return m.feedback.State(messageID)
}

func (m *Manager) LoginCompleted() bool {
	return m.login.Completed()
}

func (m *Manager) PersonaOptions() []persona.Option {
	return m.login.Options()
}

func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleReadError(gen, err)
			return
		}
		m.handleFrame(gen, data)
	}
}

func (m *Manager) handleFrame(gen uint64, data []byte) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	in := decodeFrame(data, m.opts.Now())
	if in.plain {
		m.logger.Debug().Int("bytes", len(data)).Msg("non-JSON frame shown as plain text")
	}

	fetchPersonas := false
	switch in.kind {
	case frameSessionSync:
		m.logger.Debug().Str("session_id", in.sessionID).Msg("session sync frame")
	case frameReply:
		prompt, _ := m.queue.Pop()
		rec := chat.Message{
			ID:               m.opts.NewID(),
			ServerMessageID:  in.messageID,
			Sender:           chat.SenderBot,
			Kind:             chat.KindText,
			Text:             in.text,
			Timestamp:        in.timestamp,
			PromptMessageID:  prompt.ID,
			Extra:            in.extra,
			LoginRequired:    in.loginRequired,
			FeedbackEligible: true,
		}
		if in.payload != nil {
			rec.Kind = chat.KindJSON
			rec.Text = ""
			rec.Payload = in.payload
		}
		m.log.ReplaceIndicator(rec)
		m.pending.messages = true
		fetchPersonas = in.loginRequired
	case frameTextChunk:
		prompt := m.openResponseLocked()
		if !m.log.AppendChunk(in.text) {
			m.log.ReplaceIndicator(chat.Message{
				ID:              m.opts.NewID(),
				Sender:          chat.SenderBot,
				Kind:            chat.KindText,
				Text:            in.text,
				Timestamp:       in.timestamp,
				PromptMessageID: prompt,
				Streaming:       true,
			})
		}
		m.pending.messages = true
	case frameJSONData:
		prompt := m.openResponseLocked()
		m.log.CloseStreaming()
		m.log.ReplaceIndicator(chat.Message{
			ID:               m.opts.NewID(),
			Sender:           chat.SenderBot,
			Kind:             chat.KindJSON,
			Payload:          in.payload,
			Timestamp:        in.timestamp,
			PromptMessageID:  prompt,
			FeedbackEligible: true,
		})
		m.pending.messages = true
	case frameStreamEnd:
		m.log.CloseStreaming()
		m.log.RemoveIndicator()
		m.resetStreamLocked()
		m.pending.messages = true
		m.pending.state = true
	case frameStreamError:
		prompt := m.openResponseLocked()
		m.log.CloseStreaming()
		m.log.ReplaceIndicator(chat.Message{
			ID:              m.opts.NewID(),
			Sender:          chat.SenderBot,
			Kind:            chat.KindError,
			Text:            in.text,
			Timestamp:       in.timestamp,
			PromptMessageID: prompt,
		})
		m.resetStreamLocked()
		m.pending.messages = true
		m.pending.state = true
	}
	m.unlockAndNotify()

	if in.sessionID != "" && m.opts.Identity != nil {
		m.persistSession(in.sessionID)
	}
	if fetchPersonas {
		go func() {
			_, _ = m.FetchPersonas(context.Background())
		}()
	}
}

func (m *Manager) handleReadError(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	if m.log.RemoveIndicator() {
		m.pending.messages = true
	}
	if m.log.CloseStreaming() {
		m.pending.messages = true
	}
	m.resetStreamLocked()
	m.setStateLocked(StateDisconnected)

	switch code := closeCode(err); {
	case code == chat.CloseSessionInvalid:
		m.logger.Warn().Int("code", code).Msg("session rejected by server")
		if m.opts.Identity != nil {
			ctx, cancel := context.WithTimeout(context.Background(), m.opts.RequestTimeout)
			m.opts.Identity.Clear(ctx)
			cancel()
		}
		m.noticeLocked(newNotice(NoticeSessionInvalid, err))
	case code != 0:
		m.logger.Info().Int("code", code).Msg("websocket closed")
		m.noticeLocked(newNotice(NoticeDisconnected, err))
	default:
		m.logger.Warn().Err(err).Msg("websocket read failed")
		m.noticeLocked(newNotice(NoticeConnectionError, err))
	}
	m.unlockAndNotify()
}

// openResponseLocked pops the prompt queue on the first frame of a streamed
// response and returns the prompt id the response belongs to.
func (m *Manager) openResponseLocked() string {
	if !m.responseOpen {
		m.responseOpen = true
		p, _ := m.queue.Pop()
		m.responsePrompt = p.ID
		m.pending.state = true
	}
	return m.responsePrompt
}

// persistSession stores a session id announced by the server.
func (m *Manager) persistSession(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.RequestTimeout)
	defer cancel()
	if current, ok := m.opts.Identity.Resolve(ctx); ok && current == id {
		return
	}
	m.logger.Info().Str("session_id", id).Msg("session id updated by server")
	m.opts.Identity.Persist(ctx, id)
}

func (m *Manager) resetStreamLocked() {
	m.awaiting = false
	m.responseOpen = false
	m.responsePrompt = ""
}

func (m *Manager) streamingLocked() bool {
	return m.awaiting || m.responseOpen
}

func (m *Manager) dropConnLocked() {
	if m.conn != nil {
		closeConn(m.conn)
		m.conn = nil
	}
}

func (m *Manager) setStateLocked(s State) {
	if m.state != s {
		m.state = s
		m.pending.state = true
	}
}

func (m *Manager) noticeLocked(n Notice) {
	m.pending.notices = append(m.pending.notices, n)
}

// unlockAndNotify releases the state lock and delivers what changed while it
// was held. notifyMu is taken before mu is released so deliveries keep
// mutation order.
func (m *Manager) unlockAndNotify() {
	p := m.pending
	m.pending = pendingUpdate{}
	state := m.state
	var snapshot []chat.Message
	if p.messages {
		snapshot = m.log.Snapshot()
	}
	m.notifyMu.Lock()
	m.mu.Unlock()
	defer m.notifyMu.Unlock()

	l := m.opts.Listener
	if p.state {
		l.OnState(state)
	}
	if p.messages {
		l.OnMessages(snapshot)
	}
	for _, n := range p.notices {
		l.OnNotice(n)
	}
}

func (m *Manager) emitNotice(n Notice) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.opts.Listener.OnNotice(n)
}

func (m *Manager) dialURL(sessionID string) (string, error) {
	u, err := url.Parse(m.opts.Endpoint)
	if err != nil {
		return "", errors.Wrap(err, "parse endpoint")
	}
	q := u.Query()
	q.Set("session_id", sessionID)
	if m.opts.Protocol == ProtocolStreaming {
		q.Set("protocol", string(ProtocolStreaming))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// feedbackHooks and loginHooks

func (m *Manager) feedbackChanged(messageID string, st FeedbackState, ok bool) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.opts.Listener.OnFeedback(messageID, st, ok)
}

func (m *Manager) notice(n Notice) {
	m.emitNotice(n)
}

func (m *Manager) personasLoaded(opts []persona.Option) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.opts.Listener.OnPersonas(opts)
}

func (m *Manager) loginCompleted() {
	m.mu.Lock()
	if m.log.ClearLoginRequired() > 0 {
		m.pending.messages = true
	}
	m.noticeLocked(newNotice(NoticeLoggedIn, nil))
	m.unlockAndNotify()
}
