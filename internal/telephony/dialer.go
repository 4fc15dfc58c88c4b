package telephony

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// CallRequest describes one outbound call.
type CallRequest struct {
	To                string
	From              string
	TwimlURL          string
	StatusCallbackURL string
}

// PlacedCall is what the provider returned when the call was created.
type PlacedCall struct {
	SID    string
	Status CallStatus
}

// Dialer places outbound calls.
type Dialer interface {
	PlaceCall(ctx context.Context, req CallRequest) (PlacedCall, error)
}

// TwilioDialer places calls through the Twilio REST API.
type TwilioDialer struct {
	calls            callCreator
	MachineDetection string
}

type callCreator interface {
	CreateCall(params *api.CreateCallParams) (*api.ApiV2010Call, error)
}

// NewTwilioDialer returns a dialer authenticated with the account credentials.
func NewTwilioDialer(accountSID, authToken string) *TwilioDialer {
	c := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioDialer{calls: c.Api, MachineDetection: "DetectMessageEnd"}
}

// PlaceCall creates the call. Twilio fetches req.TwimlURL once the call is
// answered and posts status changes to req.StatusCallbackURL.
func (d *TwilioDialer) PlaceCall(ctx context.Context, req CallRequest) (PlacedCall, error) {
	if req.To == "" {
		return PlacedCall{}, errors.New("missing destination number")
	}
	if err := ctx.Err(); err != nil {
		return PlacedCall{}, err
	}
	params := &api.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(req.From)
	params.SetUrl(req.TwimlURL)
	if req.StatusCallbackURL != "" {
		params.SetStatusCallback(req.StatusCallbackURL)
		params.SetStatusCallbackEvent(StatusCallbackEvents)
	}
	if d.MachineDetection != "" {
		params.SetMachineDetection(d.MachineDetection)
	}
	resp, err := d.calls.CreateCall(params)
	if err != nil {
		return PlacedCall{}, fmt.Errorf("create call to %s: %w", req.To, err)
	}
	pc := PlacedCall{Status: StatusQueued}
	if resp.Sid != nil {
		pc.SID = *resp.Sid
	}
	if resp.Status != nil {
		if st, ok := ParseCallStatus(*resp.Status); ok {
			pc.Status = st
		}
	}
	return pc, nil
}

// VerifySignature checks an X-Twilio-Signature header against the full
// public URL Twilio requested and the posted form values.
func VerifySignature(authToken, fullURL string, form url.Values, signature string) bool {
	if signature == "" {
		return false
	}
	params := make(map[string]string, len(form))
	for k, v := range form {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	rv := twclient.NewRequestValidator(authToken)
	return rv.Validate(fullURL, params, signature)
}
