package api

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/gaspardpetit/callrelay/internal/logx"
	"github.com/gaspardpetit/callrelay/internal/telephony"
)

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
}

func (lw *loggingResponseWriter) WriteHeader(status int) {
	lw.status = status
	lw.ResponseWriter.WriteHeader(status)
}

func (lw *loggingResponseWriter) Write(b []byte) (int, error) {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		logx.Log.Debug().Bytes("body", b).Msg("http response chunk")
	}
	return lw.ResponseWriter.Write(b)
}

// Hijack lets the media stream endpoint upgrade through the logger.
func (lw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := lw.ResponseWriter.(http.Hijacker); ok {
		lw.status = http.StatusSwitchingProtocols
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("hijacker not supported")
}

func (lw *loggingResponseWriter) Flush() {
	if f, ok := lw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// MiddlewareChain is applied to every route.
func MiddlewareChain() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		chiMiddleware.RequestID,
		requestLogger,
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lvl := zerolog.GlobalLevel()
		lrw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}
		reqID := chiMiddleware.GetReqID(r.Context())
		if lvl <= zerolog.DebugLevel && !isUpgrade(r) {
			var body []byte
			if r.Body != nil {
				body, _ = io.ReadAll(r.Body)
				r.Body = io.NopCloser(bytes.NewReader(body))
			}
			logx.Log.Debug().Str("request_id", reqID).Str("method", r.Method).Str("url", r.URL.String()).
				Interface("headers", redactHeaders(r.Header)).Bytes("body", body).Msg("http request")
		}
		next.ServeHTTP(lrw, r)
		if lvl <= zerolog.DebugLevel {
			logx.Log.Debug().Str("request_id", reqID).Str("url", r.URL.String()).Int("status", lrw.status).
				Interface("headers", lrw.Header()).Msg("http response")
		} else if lvl <= zerolog.InfoLevel {
			logx.Log.Info().Str("request_id", reqID).Str("method", r.Method).Str("url", r.URL.String()).
				Int("status", lrw.status).Msg("http")
		}
	})
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func redactHeaders(h http.Header) http.Header {
	out := h.Clone()
	for _, k := range []string{"Authorization", "X-Twilio-Signature"} {
		if out.Get(k) != "" {
			out.Set(k, "***")
		}
	}
	return out
}

// ExtractBearer returns the token of an Authorization: Bearer header.
func ExtractBearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// APIKeyMiddleware requires Authorization: Bearer <apiKey>. An empty key
// disables the check.
func APIKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if ExtractBearer(r) != apiKey {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TwilioSignatureMiddleware rejects webhooks whose X-Twilio-Signature does
// not match the public URL on domain and the posted form.
func TwilioSignatureMiddleware(authToken, domain string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				writeError(w, http.StatusBadRequest, "invalid form body")
				return
			}
			full := "https://" + domain + r.URL.RequestURI()
			if !telephony.VerifySignature(authToken, full, r.PostForm, r.Header.Get("X-Twilio-Signature")) {
				writeError(w, http.StatusForbidden, "invalid twilio signature")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
