package protocol

import (
	"encoding/json"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	// Inbound control types.
	TypeInterviewContext MessageType = "interview_context"
	TypeSegmentEnd       MessageType = "segment_end"
	TypeFlush            MessageType = "flush"
	TypeEndCall          MessageType = "end_call"

	// Outbound types.
	TypeAssistantText  MessageType = "assistant_text"
	TypeAssistantAudio MessageType = "assistant_audio"
	TypeRateLimitError MessageType = "rate_limit_error"
	TypeEvaluation     MessageType = "evaluation"
)

// ContextData carries the interview setup sent by the client.
type ContextData struct {
	Role       string `json:"role"`
	Difficulty string `json:"difficulty"`
	Notes      string `json:"notes,omitempty"`
	AIVoice    string `json:"aiVoice,omitempty"`
}

// ControlMessage is an inbound text frame after parsing. Unrecognized
// types are carried through untouched so the dispatcher can ignore them.
type ControlMessage struct {
	Type MessageType
	Data ContextData
}

// AudioChunk is an inbound binary frame of raw candidate audio.
type AudioChunk struct {
	Data []byte
}

type envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseControlMessage decodes an inbound text frame. Payloads that are not
// valid JSON degrade to a bare command word: the trimmed, lowercased text
// is matched against the same type vocabulary. It never fails; callers
// treat unknown types as no-ops.
func ParseControlMessage(raw []byte) ControlMessage {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		word := MessageType(strings.ToLower(strings.TrimSpace(string(raw))))
		return ControlMessage{Type: word}
	}

	msg := ControlMessage{Type: env.Type}
	if env.Type == TypeInterviewContext && len(env.Data) > 0 {
		// A malformed data object leaves the context empty rather than
		// rejecting the message.
		_ = json.Unmarshal(env.Data, &msg.Data)
	}
	return msg
}

// AssistantText carries the candidate transcript and the interviewer reply.
// It is always emitted before any audio frames for the same turn.
type AssistantText struct {
	Type       MessageType `json:"type"`
	Transcript string      `json:"transcript"`
	Text       string      `json:"text"`
}

// AssistantAudio announces the format of the binary audio frame that
// immediately follows. The binary frame is omitted when audio is empty.
type AssistantAudio struct {
	Type        MessageType `json:"type"`
	AudioFormat string      `json:"audio_format"`
}

// RateLimitError tells the client that speech synthesis is rate limited
// for this turn. The session continues without audio.
type RateLimitError struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// Evaluation is the terminal message carrying the structured post-call
// performance result.
type Evaluation struct {
	Type   MessageType `json:"type"`
	Result any         `json:"result"`
}

// AudioFrame is an outbound binary frame of synthesized audio.
type AudioFrame struct {
	Data []byte
}

// OutboundTypeOf reports the metric label for an outbound message.
func OutboundTypeOf(msg any) (MessageType, bool) {
	switch m := msg.(type) {
	case AssistantText:
		return m.Type, true
	case AssistantAudio:
		return m.Type, true
	case RateLimitError:
		return m.Type, true
	case Evaluation:
		return m.Type, true
	case AudioFrame:
		return "audio_binary", true
	default:
		return "", false
	}
}
