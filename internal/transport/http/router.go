// Package httptransport assembles the HTTP surface of the registry.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vcregistry/internal/platform/health"
	"vcregistry/internal/registry/handler"
	"vcregistry/pkg/platform/middleware/auth"
	"vcregistry/pkg/platform/middleware/callback"
	"vcregistry/pkg/platform/middleware/request"
	"vcregistry/pkg/validation"
)

// Config holds what the router needs beyond the registry handler.
// Health, Metrics and MetricsHandler are optional.
type Config struct {
	Logger         *slog.Logger
	Validator      auth.JWTValidator
	CallbackToken  string
	RequestTimeout time.Duration
	Health         *health.Handler
	Metrics        *request.Metrics
	MetricsHandler http.Handler
}

// NewRouter wires the public endpoints with middleware. Caller routes
// require a bearer token; the verdict route requires the callback token.
func NewRouter(cfg Config, registry *handler.Handler) http.Handler {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.RequestID)
	r.Use(request.RequestTime)
	r.Use(request.Logger(cfg.Logger))
	r.Use(request.LatencyMiddleware(cfg.Metrics))

	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(timeout))
		r.Use(request.BodyLimit(validation.MaxBodySize))
		r.Use(request.ContentTypeJSON)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireCaller(cfg.Validator, cfg.Logger))
			registry.Register(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(callback.RequireCallbackToken(cfg.CallbackToken, cfg.Logger))
			registry.RegisterCallbacks(r)
		})
	})

	return r
}
