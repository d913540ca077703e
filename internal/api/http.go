// Package api is the HTTP surface: plan ingest and queries, cost
// computation, comparison, quarantine review, and admin settings, plus the
// usual metrics, health, and swagger endpoints.
package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/watthive/eflengine/internal/api/swagger"
	"github.com/watthive/eflengine/internal/auth"
	"github.com/watthive/eflengine/internal/efltext"
	"github.com/watthive/eflengine/internal/notification"
	"github.com/watthive/eflengine/internal/plans"
	"github.com/watthive/eflengine/internal/storage"
)

// Deps carries everything the mux serves. Auth may be nil, which disables
// authentication entirely; Notifier may be nil, which hides the email
// settings endpoints.
type Deps struct {
	Plans          *plans.Service
	Store          storage.Storage
	Auth           *auth.Service
	Notifier       *notification.Service
	Extractor      efltext.Extractor
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewMux builds the full HTTP handler: metrics, probes, swagger, the v2
// API, and admin routes, wrapped in CORS.
func NewMux(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			http.Error(w, "no storage", http.StatusServiceUnavailable)
			return
		}
		if err := deps.Store.Ping(r.Context()); err != nil {
			deps.Logger.Warn("readyz: storage ping failed", zap.Error(err))
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.Handle("/swagger/", http.StripPrefix("/swagger", swagger.Handler()))

	RegisterV2Routes(mux, deps)
	registerSettingsRoutes(mux, deps.Auth, deps.Notifier)

	c := cors.New(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(mux)
}
