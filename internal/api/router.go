package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Post("/discover", s.handleDiscover)

		r.Route("/thermostats", func(r chi.Router) {
			r.Get("/", s.handleListThermostats)

			r.Route("/{address}", func(r chi.Router) {
				r.Get("/", s.handleGetThermostat)
				r.Get("/history", s.handleGetThermostatHistory)
				r.Post("/commands", s.handleThermostatCommand)
			})
		})
	})

	return r
}

// handleHealth returns the bridge health.
// The status is "degraded" while MQTT is down or a PIN is still needed.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	body := map[string]any{
		"version":     s.version,
		"thermostats": s.controller.Stats().Thermostats,
	}

	if s.mqtt != nil {
		connected := s.mqtt.IsConnected()
		body["mqtt_connected"] = connected
		if !connected {
			status = "degraded"
		}
	}
	if s.auth != nil {
		required := s.auth.AuthorizationRequired()
		body["authorized"] = !required
		if required {
			status = "degraded"
			body["authorize_url"] = s.auth.AuthorizeURL()
		}
	}

	body["status"] = status
	writeJSON(w, http.StatusOK, body)
}
