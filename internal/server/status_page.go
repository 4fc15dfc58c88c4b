package server

import (
	_ "embed"
	"net/http"
)

//go:embed status.html
var statusHTML []byte

// StatusHandler serves the operator page that polls /api/state.
func StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(statusHTML)
	}
}
