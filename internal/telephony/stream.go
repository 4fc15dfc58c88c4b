// Package telephony implements the Twilio side of a call: the Media Streams
// websocket protocol, the TwiML document that opens a stream, call status
// values and outbound call placement.
package telephony

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned when a frame cannot be decoded into an event.
var ErrMalformed = errors.New("malformed media stream frame")

// Kind identifies a Media Streams event.
type Kind string

const (
	KindConnected Kind = "connected"
	KindStart     Kind = "start"
	KindMedia     Kind = "media"
	KindStop      Kind = "stop"
	KindMark      Kind = "mark"
	KindDTMF      Kind = "dtmf"
)

// MarkResponseDone names the mark sent after each completed AI response.
const MarkResponseDone = "response_done"

// Event is one decoded inbound Media Streams message. The concrete type is
// one of Connected, Start, Media, Stop, Mark, DTMF or Unknown.
type Event interface {
	Kind() Kind
}

type Connected struct {
	Protocol string
	Version  string
}

// Start opens the stream and carries the stream SID every outbound message
// must be addressed to.
type Start struct {
	StreamSID        string
	CallSID          string
	AccountSID       string
	Tracks           []string
	MediaFormat      MediaFormat
	CustomParameters map[string]string
}

type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// Media carries one base64 audio chunk. Payload is never decoded.
type Media struct {
	StreamSID string
	Track     string
	Chunk     string
	Timestamp string
	Payload   string
}

type Stop struct {
	StreamSID string
	CallSID   string
}

// Mark acknowledges playback of a previously sent mark.
type Mark struct {
	StreamSID string
	Name      string
}

type DTMF struct {
	StreamSID string
	Track     string
	Digit     string
}

// Unknown is any event this package does not model.
type Unknown struct {
	Name string
}

func (Connected) Kind() Kind { return KindConnected }
func (Start) Kind() Kind     { return KindStart }
func (Media) Kind() Kind     { return KindMedia }
func (Stop) Kind() Kind      { return KindStop }
func (Mark) Kind() Kind      { return KindMark }
func (DTMF) Kind() Kind      { return KindDTMF }
func (u Unknown) Kind() Kind { return Kind(u.Name) }

type envelope struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Protocol  string `json:"protocol"`
	Version   string `json:"version"`
	Start     *struct {
		StreamSID        string            `json:"streamSid"`
		CallSID          string            `json:"callSid"`
		AccountSID       string            `json:"accountSid"`
		Tracks           []string          `json:"tracks"`
		MediaFormat      MediaFormat       `json:"mediaFormat"`
		CustomParameters map[string]string `json:"customParameters"`
	} `json:"start"`
	Media *struct {
		Track     string  `json:"track"`
		Chunk     string  `json:"chunk"`
		Timestamp string  `json:"timestamp"`
		Payload   *string `json:"payload"`
	} `json:"media"`
	Stop *struct {
		CallSID string `json:"callSid"`
	} `json:"stop"`
	Mark *struct {
		Name string `json:"name"`
	} `json:"mark"`
	DTMF *struct {
		Track string `json:"track"`
		Digit string `json:"digit"`
	} `json:"dtmf"`
}

// DecodeEvent parses one text frame received from Twilio.
func DecodeEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch Kind(env.Event) {
	case KindConnected:
		return Connected{Protocol: env.Protocol, Version: env.Version}, nil
	case KindStart:
		if env.Start == nil {
			return nil, fmt.Errorf("%w: start without body", ErrMalformed)
		}
		sid := env.Start.StreamSID
		if sid == "" {
			sid = env.StreamSID
		}
		if sid == "" {
			return nil, fmt.Errorf("%w: start without streamSid", ErrMalformed)
		}
		return Start{
			StreamSID:        sid,
			CallSID:          env.Start.CallSID,
			AccountSID:       env.Start.AccountSID,
			Tracks:           env.Start.Tracks,
			MediaFormat:      env.Start.MediaFormat,
			CustomParameters: env.Start.CustomParameters,
		}, nil
	case KindMedia:
		if env.Media == nil || env.Media.Payload == nil {
			return nil, fmt.Errorf("%w: media without payload", ErrMalformed)
		}
		return Media{
			StreamSID: env.StreamSID,
			Track:     env.Media.Track,
			Chunk:     env.Media.Chunk,
			Timestamp: env.Media.Timestamp,
			Payload:   *env.Media.Payload,
		}, nil
	case KindStop:
		st := Stop{StreamSID: env.StreamSID}
		if env.Stop != nil {
			st.CallSID = env.Stop.CallSID
		}
		return st, nil
	case KindMark:
		m := Mark{StreamSID: env.StreamSID}
		if env.Mark != nil {
			m.Name = env.Mark.Name
		}
		return m, nil
	case KindDTMF:
		d := DTMF{StreamSID: env.StreamSID}
		if env.DTMF != nil {
			d.Track = env.DTMF.Track
			d.Digit = env.DTMF.Digit
		}
		return d, nil
	case "":
		return nil, fmt.Errorf("%w: missing event", ErrMalformed)
	default:
		return Unknown{Name: env.Event}, nil
	}
}

type outbound struct {
	Event     Kind      `json:"event"`
	StreamSID string    `json:"streamSid"`
	Media     *outMedia `json:"media,omitempty"`
	Mark      *outMark  `json:"mark,omitempty"`
}

type outMedia struct {
	Payload string `json:"payload"`
}

type outMark struct {
	Name string `json:"name"`
}

// EncodeMedia builds a media message that plays payload on the given stream.
func EncodeMedia(streamSID, payload string) ([]byte, error) {
	return json.Marshal(outbound{Event: KindMedia, StreamSID: streamSID, Media: &outMedia{Payload: payload}})
}

// EncodeMark builds a mark message; Twilio echoes it back once all audio
// queued before it has played.
func EncodeMark(streamSID, name string) ([]byte, error) {
	return json.Marshal(outbound{Event: KindMark, StreamSID: streamSID, Mark: &outMark{Name: name}})
}
