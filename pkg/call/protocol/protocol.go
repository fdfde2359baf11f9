// Package protocol defines the wire format spoken over a call's duplex
// connection.
//
// The server sends two kinds of frames: binary frames carrying one opaque
// encoded segment of agent speech, and text frames carrying a JSON control
// message discriminated by a "type" field. The client sends JSON envelopes
// for both audio chunks (base64 payload) and text-chat messages.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Client -> server message types.
const (
	TypeAudioChunk  = "audio_chunk"
	TypeTextMessage = "text_message"
)

// Server -> client control message types.
const (
	TypeUserTranscript = "user_transcript"
	TypeAiTextChunk    = "ai_text_chunk"
	TypeTtsStart       = "tts_start"
	TypeTtsEnd         = "tts_end"
)

// ClientAudioChunk carries one encoded capture frame to the server.
type ClientAudioChunk struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// ClientTextMessage carries a typed chat message to the server. Used by the
// text-chat fallback channel.
type ClientTextMessage struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// EncodeAudioChunk builds the outbound envelope for one encoded audio frame.
func EncodeAudioChunk(encoded []byte) ([]byte, error) {
	return json.Marshal(ClientAudioChunk{
		Type: TypeAudioChunk,
		Data: base64.StdEncoding.EncodeToString(encoded),
	})
}

// EncodeTextMessage builds the outbound envelope for a chat message.
func EncodeTextMessage(text string) ([]byte, error) {
	return json.Marshal(ClientTextMessage{Type: TypeTextMessage, Data: text})
}

// ControlMessage is one of the server's control frames: UserTranscript,
// AiTextChunk, TtsStart or TtsEnd.
type ControlMessage interface {
	controlType() string
}

// UserTranscript reports the final transcript of a user utterance. It always
// starts a new logical exchange and invalidates any in-progress agent
// utterance accumulator.
type UserTranscript struct {
	Text string
}

func (UserTranscript) controlType() string { return TypeUserTranscript }

// AiTextChunk is one streamed fragment of the agent's textual reply. Chunks
// belonging to the same utterance are concatenated in arrival order.
type AiTextChunk struct {
	Text string
}

func (AiTextChunk) controlType() string { return TypeAiTextChunk }

// TtsStart marks the beginning of synthesized agent speech.
type TtsStart struct{}

func (TtsStart) controlType() string { return TypeTtsStart }

// TtsEnd marks the end of synthesized agent speech. Trailing audio may still
// be draining from the playback sink when it arrives.
type TtsEnd struct{}

func (TtsEnd) controlType() string { return TypeTtsEnd }

type envelope struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// ParseControl decodes a text frame into its control message variant.
// Unknown or malformed frames return an error; callers drop them without
// tearing down the connection.
func ParseControl(data []byte) (ControlMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode control envelope: %w", err)
	}
	switch strings.TrimSpace(env.Type) {
	case TypeUserTranscript:
		return UserTranscript{Text: env.Data}, nil
	case TypeAiTextChunk:
		return AiTextChunk{Text: env.Data}, nil
	case TypeTtsStart:
		return TtsStart{}, nil
	case TypeTtsEnd:
		return TtsEnd{}, nil
	case "":
		return nil, fmt.Errorf("control frame missing type")
	default:
		return nil, fmt.Errorf("unknown control frame type %q", env.Type)
	}
}

// EncodeControl renders a control message as a text frame. The engine never
// sends control frames itself; this is used by loopback servers and tests.
func EncodeControl(msg ControlMessage) ([]byte, error) {
	env := envelope{Type: msg.controlType()}
	switch m := msg.(type) {
	case UserTranscript:
		env.Data = m.Text
	case AiTextChunk:
		env.Data = m.Text
	}
	return json.Marshal(env)
}
