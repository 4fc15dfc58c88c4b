package api

import (
	"context"
	"net/http"

	"github.com/coder/websocket"

	"github.com/gaspardpetit/callrelay/internal/bridge"
	"github.com/gaspardpetit/callrelay/internal/drain"
	"github.com/gaspardpetit/callrelay/internal/logx"
)

// Relay handles one accepted media stream. *bridge.Bridge implements it.
type Relay interface {
	Handle(ctx context.Context, inbound bridge.Conn) error
}

// MediaStreamHandler upgrades Twilio's media stream request and hands the
// socket to relay for the lifetime of the call.
func MediaStreamHandler(relay Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if drain.IsDraining() {
			writeError(w, http.StatusServiceUnavailable, "server is draining")
			return
		}
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			logx.Log.Error().Err(err).Msg("media stream upgrade")
			return
		}
		logx.Log.Info().Str("remote", r.RemoteAddr).Msg("media stream connected")
		if err := relay.Handle(r.Context(), bridge.WrapWebsocket(c)); err != nil {
			logx.Log.Warn().Err(err).Msg("media stream relay ended with error")
		}
	}
}
