package telephony

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/url"
	"sort"
	"testing"

	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeCalls struct {
	got  *api.CreateCallParams
	resp *api.ApiV2010Call
	err  error
}

func (f *fakeCalls) CreateCall(p *api.CreateCallParams) (*api.ApiV2010Call, error) {
	f.got = p
	return f.resp, f.err
}

func TestPlaceCall(t *testing.T) {
	sid, status := "CA123", "queued"
	fc := &fakeCalls{resp: &api.ApiV2010Call{Sid: &sid, Status: &status}}
	d := &TwilioDialer{calls: fc, MachineDetection: "DetectMessageEnd"}

	pc, err := d.PlaceCall(context.Background(), CallRequest{
		To:                "+15550001111",
		From:              "+15552223333",
		TwimlURL:          "https://relay.example.com/outbound-twiml",
		StatusCallbackURL: "https://relay.example.com/call-status",
	})
	if err != nil {
		t.Fatalf("PlaceCall: %v", err)
	}
	if pc.SID != "CA123" || pc.Status != StatusQueued {
		t.Fatalf("unexpected placed call: %+v", pc)
	}
	if *fc.got.To != "+15550001111" || *fc.got.From != "+15552223333" {
		t.Fatalf("numbers not set: to=%v from=%v", *fc.got.To, *fc.got.From)
	}
	if *fc.got.Url != "https://relay.example.com/outbound-twiml" {
		t.Fatalf("url = %v", *fc.got.Url)
	}
	if *fc.got.StatusCallback != "https://relay.example.com/call-status" {
		t.Fatalf("status callback = %v", *fc.got.StatusCallback)
	}
	if len(*fc.got.StatusCallbackEvent) != 4 {
		t.Fatalf("status callback events = %v", *fc.got.StatusCallbackEvent)
	}
	if *fc.got.MachineDetection != "DetectMessageEnd" {
		t.Fatalf("machine detection = %v", *fc.got.MachineDetection)
	}
}

func TestPlaceCallErrors(t *testing.T) {
	d := &TwilioDialer{calls: &fakeCalls{err: errors.New("401 unauthorized")}}
	if _, err := d.PlaceCall(context.Background(), CallRequest{To: "+1555"}); err == nil {
		t.Fatalf("expected provider error")
	}
	if _, err := d.PlaceCall(context.Background(), CallRequest{}); err == nil {
		t.Fatalf("expected missing destination error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.PlaceCall(ctx, CallRequest{To: "+1555"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func sign(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	data := fullURL
	for _, k := range keys {
		data += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	form := url.Values{"CallSid": {"CA1"}, "CallStatus": {"ringing"}}
	u := "https://relay.example.com/call-status"
	sig := sign("secret", u, form)
	if !VerifySignature("secret", u, form, sig) {
		t.Fatalf("valid signature rejected")
	}
	if VerifySignature("other", u, form, sig) {
		t.Fatalf("signature with wrong token accepted")
	}
	if VerifySignature("secret", u, form, "") {
		t.Fatalf("empty signature accepted")
	}
}
