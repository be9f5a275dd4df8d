// Package router provides HTTP routing configuration using Chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/qcose/qcose/internal/api/handler"
	"github.com/qcose/qcose/internal/api/middleware"
	"github.com/qcose/qcose/internal/api/service"
)

// Config holds router configuration.
type Config struct {
	Version string
	KeyDir  string // base directory service.go resolves key paths against
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CORS)

	// Health endpoints (always enabled)
	healthHandler := handler.NewHealthHandler(cfg.Version, []string{"cose"})
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	coseService := service.NewCOSEService(cfg.KeyDir)
	coseHandler := handler.NewCOSEHandler(coseService)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cose", func(r chi.Router) {
			r.Post("/sign", coseHandler.Sign)
			r.Post("/verify", coseHandler.Verify)
			r.Post("/info", coseHandler.Info)
		})
	})

	return r
}
