// Package middleware adapts chi middleware and adds the collector's own
package middleware

import (
	"compress/flate"
	"net/http"
	"time"

	pnet "campaigncollector/internal/platform/net"
	pstrings "campaigncollector/internal/platform/strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	chicors "github.com/go-chi/cors"
)

// RequestID accepts or mints X-Request-ID
func RequestID() func(http.Handler) http.Handler { return chimw.RequestID }

// Correlate copies chi's request id onto the logger context and echoes it back
// mount after RequestID
func Correlate() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chimw.GetReqID(r.Context())
			if id != "" {
				w.Header().Set("X-Request-ID", id)
			}
			next.ServeHTTP(w, r.WithContext(pnet.WithRequest(r.Context(), id)))
		})
	}
}

// RealIP trusts X-Forwarded-For and X-Real-IP
func RealIP() func(http.Handler) http.Handler { return chimw.RealIP }

// Timeout cancels the request context after d
func Timeout(d time.Duration) func(http.Handler) http.Handler { return chimw.Timeout(d) }

// NoCache marks responses uncacheable; attribution responses carry Set-Cookie
func NoCache() func(http.Handler) http.Handler { return chimw.NoCache }

// Compress negotiates gzip/deflate at level
func Compress(level int) func(http.Handler) http.Handler {
	c := chimw.NewCompressor(level)
	return c.Handler
}

// Heartbeat answers GET path with 200 before routing
func Heartbeat(path string) func(http.Handler) http.Handler { return chimw.Heartbeat(path) }

// StripSlashes drops a trailing slash before routing
func StripSlashes() func(http.Handler) http.Handler { return chimw.StripSlashes }

// CORSOptions is the part of go-chi/cors the collector exposes
type CORSOptions struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// CORS applies go-chi/cors; browser tags post with credentials so cookies travel
func CORS(o CORSOptions) func(http.Handler) http.Handler {
	return chicors.Handler(chicors.Options{
		AllowedOrigins:   o.AllowedOrigins,
		AllowedMethods:   pstrings.IfEmpty(o.AllowedMethods, []string{"GET", "POST", "OPTIONS"}),
		AllowedHeaders:   pstrings.IfEmpty(o.AllowedHeaders, []string{"Accept", "Content-Type", "X-Request-ID"}),
		ExposedHeaders:   pstrings.IfEmpty(o.ExposedHeaders, []string{"X-Request-ID"}),
		AllowCredentials: o.AllowCredentials,
		MaxAge:           o.MaxAge,
	})
}

// Defaults is the outer stack every server mounts
func Defaults(log AccessLogOptions) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		RealIP(),
		RequestID(),
		Correlate(),
		RecoverJSON,
		AccessLogZerolog(log),
		StripSlashes(),
		Compress(flate.DefaultCompression),
	}
}
