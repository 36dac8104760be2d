package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
)

// apiKeyHeader carries the shared secret for the action API.
const apiKeyHeader = "X-API-Key"

// errEnvelope matches the error shape the api package writes, so middleware
// rejections look the same to clients as handler rejections.
type errEnvelope struct {
	Data  any    `json:"data"`
	Error string `json:"error,omitempty"`
}

// APIKey returns middleware that requires the X-API-Key header to match the
// configured key. The comparison is constant time. An empty configured key
// disables the API entirely (503), so a missing config can never mean open
// access.
func APIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				writeMWError(w, http.StatusServiceUnavailable, "api key not configured")
				return
			}

			got := r.Header.Get(apiKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				slog.Warn("api key rejected", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				writeMWError(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeMWError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errEnvelope{Error: msg}) //nolint:errcheck
}
