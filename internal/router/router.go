// Package router mounts the HTTP surface and its middleware chain.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ovaphlow/authhub/internal/auth"
	"github.com/ovaphlow/authhub/internal/metrics"
)

// Deps carries everything the router needs.
type Deps struct {
	AuthHandler *auth.Handler
	Metrics     *metrics.Collector
	Registry    *prometheus.Registry
	RateLimiter *RateLimiter
	Logger      *zap.SugaredLogger
}

// New builds the chi router: security headers and request logging on
// everything, rate limiting on the auth endpoints only.
func New(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(LoggingMiddleware(deps.Logger, deps.Metrics))
	r.Use(SecurityHeadersMiddleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))

	r.Route("/auth", func(r chi.Router) {
		r.Use(deps.RateLimiter.Middleware())

		r.Get("/google/login", deps.AuthHandler.GoogleLogin)
		r.Get("/google/callback", deps.AuthHandler.GoogleCallback)

		r.Post("/token", deps.AuthHandler.ExchangeToken)
		r.Post("/refresh", deps.AuthHandler.Refresh)
		r.Post("/logout", deps.AuthHandler.Logout)
	})

	return r
}
