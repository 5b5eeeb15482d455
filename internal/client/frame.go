package client

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/zhouzirui/cardchat/internal/model/chat"
)

type frameKind int

const (
	frameSessionSync frameKind = iota
	frameReply
	frameTextChunk
	frameJSONData
	frameStreamEnd
	frameStreamError
)

// inbound is a decoded server frame.
type inbound struct {
	kind          frameKind
	sessionID     string
	messageID     string
	text          string
	payload       json.RawMessage
	timestamp     time.Time
	loginRequired bool
	extra         map[string]json.RawMessage
	// plain is set when the frame was not JSON and is shown verbatim.
	plain bool
}

// decodeFrame never fails: anything that is not a recognisable JSON frame
// becomes a plain text reply.
func decodeFrame(data []byte, now time.Time) inbound {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return inbound{kind: frameReply, text: string(data), timestamp: now, plain: true}
	}

	if raw, ok := fields["type"]; ok {
		var typ string
		if json.Unmarshal(raw, &typ) == nil && chat.IsStreamType(typ) {
			return decodeStream(typ, fields["payload"], now)
		}
	}

	var f chat.InboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return inbound{kind: frameReply, text: string(data), timestamp: now, plain: true}
	}

	in := inbound{
		kind:          frameReply,
		sessionID:     f.SessionID,
		messageID:     f.MessageID,
		loginRequired: f.LoginRequired,
		timestamp:     parseTimestamp(f.Timestamp, now),
	}
	for k, v := range fields {
		if _, known := chat.InboundKeys[k]; known {
			continue
		}
		if in.extra == nil {
			in.extra = make(map[string]json.RawMessage)
		}
		in.extra[k] = v
	}

	hasMessage := present(f.Message)
	hasTool := present(f.ToolResponse)
	switch {
	case hasTool:
		in.payload = f.ToolResponse
		if hasMessage {
			if in.extra == nil {
				in.extra = make(map[string]json.RawMessage)
			}
			in.extra["message"] = f.Message
		}
	case hasMessage:
		var s string
		if json.Unmarshal(f.Message, &s) == nil {
			in.text = s
		} else {
			in.payload = f.Message
		}
	default:
		in.kind = frameSessionSync
	}
	return in
}

func decodeStream(typ string, payload json.RawMessage, now time.Time) inbound {
	in := inbound{timestamp: now}
	switch typ {
	case chat.FrameTextChunk:
		in.kind = frameTextChunk
		in.text = payloadText(payload)
	case chat.FrameJSONData:
		in.kind = frameJSONData
		in.payload = payload
	case chat.FrameStreamEnd:
		in.kind = frameStreamEnd
	case chat.FrameError:
		in.kind = frameStreamError
		in.text = payloadText(payload)
		if in.text == "" {
			in.text = "응답을 생성하는 중 오류가 발생했습니다."
		}
	}
	return in
}

// payloadText unwraps a JSON string, reads an object's "message" field, or
// falls back to the raw bytes.
func payloadText(raw json.RawMessage) string {
	if !present(raw) {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &obj) == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}

func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

func parseTimestamp(s string, now time.Time) time.Time {
	if s == "" {
		return now
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return now
}

// timestampLayout matches what browsers emit for Date.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

func encodePrompt(id, text string, now time.Time) ([]byte, error) {
	return json.Marshal(chat.OutboundFrame{
		MessageID: id,
		Message:   text,
		Sender:    chat.SenderUser,
		Timestamp: now.UTC().Format(timestampLayout),
	})
}
