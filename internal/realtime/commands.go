// Package realtime models the OpenAI Realtime websocket protocol: the client
// commands callrelay sends, the server events it consumes and the dialer
// that opens an authenticated session.
package realtime

import "encoding/json"

// Command types sent by the client.
const (
	TypeSessionUpdate          = "session.update"
	TypeConversationItemCreate = "conversation.item.create"
	TypeResponseCreate         = "response.create"
	TypeInputAudioAppend       = "input_audio_buffer.append"
	TypeInputAudioCommit       = "input_audio_buffer.commit"
)

// AudioFormatG711ULaw is 8 kHz μ-law, the encoding Twilio Media Streams use.
const AudioFormatG711ULaw = "g711_ulaw"

// SessionConfig is the body of a session.update command.
type SessionConfig struct {
	Voice                   string         `json:"voice,omitempty"`
	Instructions            string         `json:"instructions,omitempty"`
	Temperature             float64        `json:"temperature,omitempty"`
	Modalities              []string       `json:"modalities,omitempty"`
	TurnDetection           *TurnDetection `json:"turn_detection,omitempty"`
	InputAudioFormat        string         `json:"input_audio_format,omitempty"`
	OutputAudioFormat       string         `json:"output_audio_format,omitempty"`
	InputAudioTranscription *Transcription `json:"input_audio_transcription,omitempty"`
}

// TurnDetection configures server-side voice activity detection.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms"`
	SilenceDurationMS int     `json:"silence_duration_ms"`
}

type Transcription struct {
	Model string `json:"model"`
}

// ServerVAD returns the turn detection policy used for phone calls.
func ServerVAD() *TurnDetection {
	return &TurnDetection{Type: "server_vad", Threshold: 0.5, PrefixPaddingMS: 300, SilenceDurationMS: 500}
}

// Item is a conversation item.
type Item struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type sessionUpdate struct {
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

type itemCreate struct {
	Type string `json:"type"`
	Item Item   `json:"item"`
}

type audioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type bare struct {
	Type string `json:"type"`
}

// SessionUpdate encodes a session.update command.
func SessionUpdate(cfg SessionConfig) ([]byte, error) {
	return json.Marshal(sessionUpdate{Type: TypeSessionUpdate, Session: cfg})
}

// TextMessage encodes a conversation.item.create command adding a single
// text message authored by role.
func TextMessage(role, text string) ([]byte, error) {
	return json.Marshal(itemCreate{Type: TypeConversationItemCreate, Item: Item{
		Type:    "message",
		Role:    role,
		Content: []ContentPart{{Type: "input_text", Text: text}},
	}})
}

// ResponseCreate encodes a response.create command.
func ResponseCreate() []byte { return mustBare(TypeResponseCreate) }

// AppendAudio encodes an input_audio_buffer.append command. audio is the
// base64 payload exactly as received from the caller.
func AppendAudio(audio string) ([]byte, error) {
	return json.Marshal(audioAppend{Type: TypeInputAudioAppend, Audio: audio})
}

// CommitAudio encodes an input_audio_buffer.commit command.
func CommitAudio() []byte { return mustBare(TypeInputAudioCommit) }

func mustBare(t string) []byte {
	b, _ := json.Marshal(bare{Type: t})
	return b
}

// CommandType returns the type field of an encoded command, or "" when it
// cannot be read.
func CommandType(b []byte) string {
	var c bare
	if json.Unmarshal(b, &c) != nil {
		return ""
	}
	return c.Type
}
