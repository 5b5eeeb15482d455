package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/cardchat/internal/model/chat"
)

func countIndicators(msgs []chat.Message) int {
	n := 0
	for _, m := range msgs {
		if m.IsIndicator() {
			n++
		}
	}
	return n
}

func TestMessageLogSingleIndicator(t *testing.T) {
	l := NewMessageLog()
	now := time.Now()

	require.True(t, l.ShowIndicator("t1", now))
	require.False(t, l.ShowIndicator("t2", now))
	require.Equal(t, 1, countIndicators(l.Snapshot()))

	l.ReplaceIndicator(chat.Message{ID: "b1", Sender: chat.SenderBot, Kind: chat.KindText, Text: "hi"})
	snap := l.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "b1", snap[0].ID)
	require.Zero(t, countIndicators(snap))

	require.False(t, l.RemoveIndicator())
}

func TestMessageLogReplaceWithoutIndicatorAppends(t *testing.T) {
	l := NewMessageLog()
	l.Append(chat.Message{ID: "u1", Sender: chat.SenderUser, Kind: chat.KindText})
	l.ReplaceIndicator(chat.Message{ID: "b1", Sender: chat.SenderBot, Kind: chat.KindText})

	snap := l.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, "b1", snap[1].ID)
}

func TestMessageLogAppendChunkOnlyExtendsOpenStream(t *testing.T) {
	l := NewMessageLog()
	require.False(t, l.AppendChunk("x"))

	l.Append(chat.Message{ID: "b1", Sender: chat.SenderBot, Kind: chat.KindText, Text: "Hel", Streaming: true})
	require.True(t, l.AppendChunk("lo"))

	// an indicator behind the open record does not block appends
	l.ShowIndicator("t", time.Now())
	require.True(t, l.AppendChunk("!"))

	require.True(t, l.CloseStreaming())
	require.False(t, l.AppendChunk("more"))

	got, ok := l.Find("b1")
	require.True(t, ok)
	require.Equal(t, "Hello!", got.Text)
	require.False(t, got.Streaming)
	require.True(t, got.FeedbackEligible)
}

func TestMessageLogClearLoginRequired(t *testing.T) {
	l := NewMessageLog()
	l.Append(chat.Message{ID: "a", LoginRequired: true})
	l.Append(chat.Message{ID: "b"})
	l.Append(chat.Message{ID: "c", LoginRequired: true})

	require.Equal(t, 2, l.ClearLoginRequired())
	for _, m := range l.Snapshot() {
		require.False(t, m.LoginRequired)
	}
}

func TestMessageLogSnapshotIsolated(t *testing.T) {
	l := NewMessageLog()
	l.Append(chat.Message{ID: "a", Payload: []byte(`{"k":1}`)})

	snap := l.Snapshot()
	snap[0].Payload[2] = 'X'
	snap[0].ID = "changed"

	got, ok := l.Find("a")
	require.True(t, ok)
	require.JSONEq(t, `{"k":1}`, string(got.Payload))
}

func TestPromptQueueFIFO(t *testing.T) {
	q := NewPromptQueue()
	_, ok := q.Pop()
	require.False(t, ok)

	q.Push(Prompt{ID: "p1", ServerMessageID: "p1"})
	q.Push(Prompt{ID: "p2", ServerMessageID: "p2"})
	require.Equal(t, 2, q.Len())

	p, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, "p1", p.ID)

	q.Clear()
	require.Zero(t, q.Len())
	_, ok = q.Pop()
	require.False(t, ok)
}
