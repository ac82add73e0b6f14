package api

import (
	"context"
	"net/http"
	"time"
)

// discoveryTimeout bounds a discovery started from the API.
const discoveryTimeout = 2 * time.Minute

// handleDiscover enumerates the account and returns every known thermostat.
// Already-known thermostats are kept as they are.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	before := s.controller.Stats().Thermostats

	ctx, cancel := context.WithTimeout(r.Context(), discoveryTimeout)
	defer cancel()

	if err := s.controller.Discover(ctx); err != nil {
		s.logger.Error("api discovery failed", "error", err)
		writeBridgeError(w, err)
		return
	}

	list := s.controller.Thermostats()
	writeJSON(w, http.StatusOK, map[string]any{
		"thermostats": list,
		"count":       len(list),
		"added":       len(list) - before,
	})
}
