package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-lgtv/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermEntityRead))
				r.Get("/entries", s.handleListEntries)
				r.Get("/entries/{id}", s.handleGetEntry)
				r.Get("/entities", s.handleListEntities)
				r.Get("/entities/{id}", s.handleGetEntity)
				r.Get("/system", s.handleSystem)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermEntityOperate))
				r.Post("/entities/{id}/actions", s.handleEntityAction)
				r.Post("/entities/{id}/refresh", s.handleRefreshEntity)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermEntryManage))
				r.Get("/ports", s.handleListPorts)
				r.Post("/entries", s.handleProvision)
				r.Patch("/entries/{id}/options", s.handleUpdateOptions)
				r.Delete("/entries/{id}", s.handleDeleteEntry)
			})
		})
	})

	return r
}

// handleHealth returns the bridge health summary.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	body := map[string]any{
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"entries_loaded": s.runtime.Loaded(),
	}

	expected, err := s.runtime.ExpectedCount(r.Context())
	if err != nil {
		status = "degraded"
		body["reason"] = "entry store unavailable"
	} else {
		body["entries_stored"] = expected
		if s.runtime.Loaded() < expected {
			status = "degraded"
		}
	}

	if s.mqtt != nil {
		connected := s.mqtt.IsConnected()
		body["mqtt_connected"] = connected
		if !connected {
			status = "degraded"
		}
	}

	body["status"] = status
	writeJSON(w, http.StatusOK, body)
}
