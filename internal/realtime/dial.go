package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/coder/websocket"
)

// BetaHeader selects the protocol version callrelay speaks.
const BetaHeader = "realtime=v1"

// DefaultReadLimit bounds a single server frame. Audio deltas are far
// larger than the websocket library's default limit.
const DefaultReadLimit = 4 << 20

// DialOptions configures Dial.
type DialOptions struct {
	URL        string
	Model      string
	APIKey     string
	HTTPClient *http.Client
	ReadLimit  int64
}

// Endpoint returns base with the model query parameter set.
func Endpoint(base, model string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	if model != "" {
		q := u.Query()
		q.Set("model", model)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Dial opens an authenticated realtime session.
func Dial(ctx context.Context, opts DialOptions) (*websocket.Conn, error) {
	if opts.APIKey == "" {
		return nil, errors.New("realtime: missing api key")
	}
	endpoint, err := Endpoint(opts.URL, opts.Model)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+opts.APIKey)
	h.Set("OpenAI-Beta", BetaHeader)
	conn, resp, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{
		HTTPClient: opts.HTTPClient,
		HTTPHeader: h,
	})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial realtime (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial realtime: %w", err)
	}
	limit := opts.ReadLimit
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	conn.SetReadLimit(limit)
	return conn, nil
}
