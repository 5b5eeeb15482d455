package client

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/cardchat/internal/api"
)

// FeedbackValue is a thumbs-up or thumbs-down vote.
type FeedbackValue string

const (
	FeedbackUp   FeedbackValue = "up"
	FeedbackDown FeedbackValue = "down"
)

func feedbackValue(helpful bool) FeedbackValue {
	if helpful {
		return FeedbackUp
	}
	return FeedbackDown
}

// FeedbackState is the vote recorded for one message.
type FeedbackState struct {
	Value   FeedbackValue
	Pending bool
}

// FeedbackBackend posts votes to the server.
type FeedbackBackend interface {
	SubmitFeedback(ctx context.Context, req api.FeedbackRequest) error
}

// FeedbackTarget names what the server knows about a message.
type FeedbackTarget struct {
	MessageID       string
	PromptMessageID string
}

type feedbackHooks interface {
	feedbackChanged(messageID string, state FeedbackState, ok bool)
	notice(n Notice)
}

// FeedbackSubmitter applies votes optimistically and rolls them back when the
// server rejects them. At most one request per message is in flight.
type FeedbackSubmitter struct {
	mu      sync.Mutex
	states  map[string]FeedbackState
	epoch   uint64
	backend FeedbackBackend
	hooks   feedbackHooks
	logger  zerolog.Logger
}

func newFeedbackSubmitter(backend FeedbackBackend, hooks feedbackHooks, logger zerolog.Logger) *FeedbackSubmitter {
	return &FeedbackSubmitter{
		states:  make(map[string]FeedbackState),
		backend: backend,
		hooks:   hooks,
		logger:  logger,
	}
}

// State returns the vote for messageID.
func (f *FeedbackSubmitter) State(messageID string) (FeedbackState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.states[messageID]
	return st, ok
}

// Submit records a vote. Re-submitting the current value and voting while a
// request for the same message is pending are no-ops.
func (f *FeedbackSubmitter) Submit(ctx context.Context, messageID string, target FeedbackTarget, helpful bool) error {
	want := feedbackValue(helpful)

	f.mu.Lock()
	prev, had := f.states[messageID]
	if had && (prev.Pending || prev.Value == want) {
		f.mu.Unlock()
		return nil
	}
	optimistic := FeedbackState{Value: want, Pending: true}
	f.states[messageID] = optimistic
	epoch := f.epoch
	f.mu.Unlock()
	f.hooks.feedbackChanged(messageID, optimistic, true)

	err := f.backend.SubmitFeedback(ctx, api.FeedbackRequest{
		MessageID:       target.MessageID,
		IsHelpful:       helpful,
		PromptMessageID: target.PromptMessageID,
	})

	f.mu.Lock()
	if f.epoch != epoch {
		f.mu.Unlock()
		f.logger.Debug().Str("message_id", messageID).Msg("dropping feedback response after reset")
		return err
	}
	var (
		final FeedbackState
		ok    bool
	)
	if err == nil {
		final, ok = FeedbackState{Value: want}, true
		f.states[messageID] = final
	} else if had {
		final, ok = prev, true
		f.states[messageID] = prev
	} else {
		delete(f.states, messageID)
	}
	f.mu.Unlock()

	f.hooks.feedbackChanged(messageID, final, ok)
	if err != nil {
		f.logger.Warn().Err(err).Str("message_id", messageID).Msg("feedback submission failed")
		n := newNotice(NoticeFeedbackFailed, err)
		n.MessageID = messageID
		f.hooks.notice(n)
	}
	return err
}

// Reset forgets every vote; in-flight responses are ignored when they land.
func (f *FeedbackSubmitter) Reset() {
	f.mu.Lock()
	f.states = make(map[string]FeedbackState)
	f.epoch++
	f.mu.Unlock()
}
