package api

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prysmalight/prysma-core/internal/auth"
)

// healthCheckTimeout bounds every component probe of GET /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth, no rate limit)
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimitMiddleware)
			r.Use(s.authMiddleware)

			r.Route("/lights", func(r chi.Router) {
				r.With(s.require(auth.PermLightRead)).Get("/", s.handleListLights)
				r.With(s.require(auth.PermLightConfigure)).Post("/", s.handleAddLight)

				r.Route("/{id}", func(r chi.Router) {
					r.With(s.require(auth.PermLightRead)).Get("/", s.handleGetLight)
					r.With(s.require(auth.PermLightConfigure)).Patch("/", s.handleUpdateLight)
					r.With(s.require(auth.PermLightConfigure)).Delete("/", s.handleRemoveLight)
					r.With(s.require(auth.PermLightRead)).Get("/state", s.handleGetLightState)
					r.With(s.require(auth.PermLightOperate)).Put("/state", s.handleSetLightState)
					r.With(s.require(auth.PermLightRead)).Get("/history", s.handleLightHistory)
				})
			})

			r.With(s.require(auth.PermLightRead)).Get(s.wsPath(), s.handleWebSocket)
		})
	})

	return r
}

// handleHealth reports the status of every registered component. Any
// failing probe turns the response into 503 with status "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	checks := make(map[string]string, len(s.checks))

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.checks[name].HealthCheck(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	published, dropped := s.broker.Stats()
	body := map[string]any{
		"status":       status,
		"version":      s.version,
		"confirmation": string(s.lights.Confirmation()),
		"checks":       checks,
		"fanout": map[string]any{
			"subscribers": s.broker.SubscriberCount(),
			"published":   published,
			"dropped":     dropped,
		},
		"websocket_clients": s.hub.ClientCount(),
	}
	if s.reconciler != nil {
		body["reconciler_backlog"] = s.reconciler.Backlog()
	}

	writeJSON(w, code, body)
}

// wsPath is the WebSocket route below /api/v1.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return "/" + strings.TrimPrefix(s.wsCfg.Path, "/")
}
