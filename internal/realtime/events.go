package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned when a server frame cannot be decoded.
var ErrMalformed = errors.New("malformed realtime event")

// Server event types.
const (
	TypeSessionCreated              = "session.created"
	TypeSessionUpdated              = "session.updated"
	TypeAudioDelta                  = "response.audio.delta"
	TypeAudioTranscriptDelta        = "response.audio_transcript.delta"
	TypeResponseDone                = "response.done"
	TypeResponseCompleted           = "response.completed"
	TypeContentDone                 = "response.content.done"
	TypeInputTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	TypeRateLimitsUpdated           = "rate_limits.updated"
	TypeSpeechStarted               = "input_audio_buffer.speech_started"
	TypeSpeechStopped               = "input_audio_buffer.speech_stopped"
	TypeInputAudioCommitted         = "input_audio_buffer.committed"
	TypeError                       = "error"
)

// Event is one decoded server event. The concrete type is one of
// SessionCreated, AudioDelta, TranscriptDelta, ResponseDone,
// InputTranscription, RateLimits, Lifecycle, Error or Unknown.
type Event interface {
	EventType() string
}

type SessionCreated struct {
	SessionID string
	Model     string
}

// AudioDelta is a chunk of synthesized audio in the configured output format.
type AudioDelta struct {
	ResponseID string
	ItemID     string
	Delta      string
}

// TranscriptDelta is a piece of the transcript of the assistant's speech.
type TranscriptDelta struct {
	ResponseID string
	Delta      string
}

// ResponseDone marks the end of one assistant response.
type ResponseDone struct {
	ResponseID string
	Status     string
	legacy     bool
}

// InputTranscription is the finished transcript of a caller utterance.
type InputTranscription struct {
	ItemID     string
	Transcript string
}

type RateLimit struct {
	Name         string  `json:"name"`
	Limit        int     `json:"limit"`
	Remaining    int     `json:"remaining"`
	ResetSeconds float64 `json:"reset_seconds"`
}

type RateLimits struct {
	Limits []RateLimit
}

// Lifecycle covers informational events that carry nothing callrelay acts on
// (session.updated, speech boundaries, buffer commits, content done).
type Lifecycle struct {
	Type string
}

// Error is a semantic error reported by the service. It does not close the
// session by itself.
type Error struct {
	ErrType string
	Code    string
	Message string
	Param   string
	EventID string
}

type Unknown struct {
	Type string
}

func (SessionCreated) EventType() string     { return TypeSessionCreated }
func (AudioDelta) EventType() string         { return TypeAudioDelta }
func (TranscriptDelta) EventType() string    { return TypeAudioTranscriptDelta }
func (InputTranscription) EventType() string { return TypeInputTranscriptionCompleted }
func (RateLimits) EventType() string         { return TypeRateLimitsUpdated }
func (l Lifecycle) EventType() string        { return l.Type }
func (Error) EventType() string              { return TypeError }
func (u Unknown) EventType() string          { return u.Type }

func (r ResponseDone) EventType() string {
	if r.legacy {
		return TypeResponseCompleted
	}
	return TypeResponseDone
}

type envelope struct {
	Type       string `json:"type"`
	EventID    string `json:"event_id"`
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id"`
	Delta      string `json:"delta"`
	Transcript string `json:"transcript"`
	Session    *struct {
		ID    string `json:"id"`
		Model string `json:"model"`
	} `json:"session"`
	Response *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"response"`
	RateLimits []RateLimit `json:"rate_limits"`
	Error      *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
		Param   string `json:"param"`
		EventID string `json:"event_id"`
	} `json:"error"`
}

// DecodeEvent parses one text frame received from the realtime service.
func DecodeEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch env.Type {
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	case TypeSessionCreated:
		ev := SessionCreated{}
		if env.Session != nil {
			ev.SessionID, ev.Model = env.Session.ID, env.Session.Model
		}
		return ev, nil
	case TypeAudioDelta:
		return AudioDelta{ResponseID: env.ResponseID, ItemID: env.ItemID, Delta: env.Delta}, nil
	case TypeAudioTranscriptDelta:
		return TranscriptDelta{ResponseID: env.ResponseID, Delta: env.Delta}, nil
	case TypeResponseDone, TypeResponseCompleted:
		ev := ResponseDone{legacy: env.Type == TypeResponseCompleted}
		if env.Response != nil {
			ev.ResponseID, ev.Status = env.Response.ID, env.Response.Status
		}
		return ev, nil
	case TypeInputTranscriptionCompleted:
		return InputTranscription{ItemID: env.ItemID, Transcript: env.Transcript}, nil
	case TypeRateLimitsUpdated:
		return RateLimits{Limits: env.RateLimits}, nil
	case TypeSessionUpdated, TypeSpeechStarted, TypeSpeechStopped, TypeInputAudioCommitted, TypeContentDone:
		return Lifecycle{Type: env.Type}, nil
	case TypeError:
		ev := Error{EventID: env.EventID}
		if env.Error != nil {
			ev.ErrType = env.Error.Type
			ev.Code = env.Error.Code
			ev.Message = env.Error.Message
			ev.Param = env.Error.Param
			if env.Error.EventID != "" {
				ev.EventID = env.Error.EventID
			}
		}
		return ev, nil
	default:
		return Unknown{Type: env.Type}, nil
	}
}
