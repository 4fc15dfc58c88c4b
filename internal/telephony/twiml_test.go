package telephony

import (
	"strings"
	"testing"
)

func TestConnectStream(t *testing.T) {
	b, err := ConnectStream("wss://relay.example.com/media-stream", nil)
	if err != nil {
		t.Fatalf("twiml: %v", err)
	}
	want := `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<Response><Connect><Stream url="wss://relay.example.com/media-stream"></Stream></Connect></Response>`
	if string(b) != want {
		t.Fatalf("twiml = %s", b)
	}
}

func TestConnectStreamParameters(t *testing.T) {
	b, err := ConnectStream("wss://relay.example.com/media-stream", map[string]string{"to": "+1555", "campaign": "a&b"})
	if err != nil {
		t.Fatalf("twiml: %v", err)
	}
	s := string(b)
	ci := strings.Index(s, `<Parameter name="campaign" value="a&amp;b"></Parameter>`)
	ti := strings.Index(s, `<Parameter name="to" value="+1555"></Parameter>`)
	if ci < 0 || ti < 0 || ci > ti {
		t.Fatalf("parameters missing or unsorted: %s", s)
	}
}
