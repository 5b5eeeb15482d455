package client

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name  string
		data  string
		check func(t *testing.T, in inbound)
	}{
		{
			name: "session sync",
			data: `{"session_id":"s1"}`,
			check: func(t *testing.T, in inbound) {
				require.Equal(t, frameSessionSync, in.kind)
				require.Equal(t, "s1", in.sessionID)
			},
		},
		{
			name: "text reply with extras",
			data: `{"message_id":"m1","message":"안녕","sender":"bot","timestamp":"2025-03-04T05:06:07.000Z","login_required":true,"cards":[{"id":"c1"}]}`,
			check: func(t *testing.T, in inbound) {
				require.Equal(t, frameReply, in.kind)
				require.Equal(t, "m1", in.messageID)
				require.Equal(t, "안녕", in.text)
				require.Nil(t, in.payload)
				require.True(t, in.loginRequired)
				require.Equal(t, 2025, in.timestamp.Year())
				require.Equal(t, time.March, in.timestamp.Month())
				require.Contains(t, in.extra, "cards")
				require.NotContains(t, in.extra, "message")
			},
		},
		{
			name: "tool response",
			data: `{"message_id":"m2","tool_response":{"cards":[]}}`,
			check: func(t *testing.T, in inbound) {
				require.Equal(t, frameReply, in.kind)
				require.JSONEq(t, `{"cards":[]}`, string(in.payload))
				require.Empty(t, in.text)
				require.Equal(t, now, in.timestamp)
			},
		},
		{
			name: "object message",
			data: `{"message":{"title":"x"}}`,
			check: func(t *testing.T, in inbound) {
				require.Equal(t, frameReply, in.kind)
				require.JSONEq(t, `{"title":"x"}`, string(in.payload))
			},
		},
		{
			name: "null message is sync",
			data: `{"message":null,"session_id":"s"}`,
			check: func(t *testing.T, in inbound) {
				require.Equal(t, frameSessionSync, in.kind)
			},
		},
		{
			name: "plain text",
			data: `hello there`,
			check: func(t *testing.T, in inbound) {
				require.Equal(t, frameReply, in.kind)
				require.True(t, in.plain)
				require.Equal(t, "hello there", in.text)
			},
		},
		{
			name: "text chunk",
			data: `{"type":"text_chunk","payload":"Hel"}`,
			check: func(t *testing.T, in inbound) {
				require.Equal(t, frameTextChunk, in.kind)
				require.Equal(t, "Hel", in.text)
			},
		},
		{
			name: "json data",
			data: `{"type":"json_data","payload":{"cards":[1]}}`,
			check: func(t *testing.T, in inbound) {
				require.Equal(t, frameJSONData, in.kind)
				require.JSONEq(t, `{"cards":[1]}`, string(in.payload))
			},
		},
		{
			name: "stream end",
			data: `{"type":"stream_end"}`,
			check: func(t *testing.T, in inbound) {
				require.Equal(t, frameStreamEnd, in.kind)
			},
		},
		{
			name: "stream error object",
			data: `{"type":"error","payload":{"message":"boom"}}`,
			check: func(t *testing.T, in inbound) {
				require.Equal(t, frameStreamError, in.kind)
				require.Equal(t, "boom", in.text)
			},
		},
		{
			name: "unknown type is a structured frame",
			data: `{"type":"other","message":"hi"}`,
			check: func(t *testing.T, in inbound) {
				require.Equal(t, frameReply, in.kind)
				require.Equal(t, "hi", in.text)
				require.Contains(t, in.extra, "type")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, decodeFrame([]byte(tt.data), now))
		})
	}
}

func TestEncodePrompt(t *testing.T) {
	ts := time.Date(2025, 5, 6, 7, 8, 9, 123000000, time.FixedZone("KST", 9*3600))
	raw, err := encodePrompt("id-1", "추천해줘", ts)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, map[string]string{
		"message_id": "id-1",
		"message":    "추천해줘",
		"sender":     "user",
		"timestamp":  "2025-05-05T22:08:09.123Z",
	}, got)
}
