// Package callback guards the authority resumption endpoint with a shared token.
package callback

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"vcregistry/pkg/requestcontext"
)

// HeaderName carries the shared secret the authority presents when it
// delivers a verdict over HTTP.
const HeaderName = "X-Callback-Token"

// RequireCallbackToken rejects requests whose token does not match expected.
// An empty expected token disables the endpoint entirely.
func RequireCallbackToken(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if expected == "" {
				logger.WarnContext(ctx, "verdict endpoint disabled, no callback token configured",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w)
				return
			}
			token := r.Header.Get(HeaderName)
			if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
				logger.WarnContext(ctx, "callback token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"callback token required"}`)) //nolint:errcheck // headers already sent
}
