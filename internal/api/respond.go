package api

import (
	"encoding/json"
	"net/http"

	"github.com/gaspardpetit/callrelay/internal/logx"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	logx.Log.Error().Int("status", status).Msg(msg)
	writeJSON(w, status, map[string]string{"error": msg})
}
