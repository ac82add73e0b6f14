package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-nest/internal/bridges/nest"
)

// maxAddressLen bounds the {address} path parameter.
const maxAddressLen = 64

// CommandRequest is the body of POST /thermostats/{address}/commands.
// Value follows the MQTT command rules: a number, a numeric string, null
// or absent.
type CommandRequest struct {
	Command string          `json:"command"`
	Value   json.RawMessage `json:"value,omitempty"`
}

// CommandResponse reports an applied command.
type CommandResponse struct {
	CommandID  string                `json:"command_id"`
	Status     string                `json:"status"`
	Thermostat nest.ThermostatStatus `json:"thermostat"`
}

// handleListThermostats returns every known thermostat with its snapshot.
func (s *Server) handleListThermostats(w http.ResponseWriter, _ *http.Request) {
	list := s.controller.Thermostats()
	writeJSON(w, http.StatusOK, map[string]any{
		"thermostats": list,
		"count":       len(list),
	})
}

// handleGetThermostat returns one thermostat.
func (s *Server) handleGetThermostat(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r)
	if !ok {
		return
	}
	status, found := s.controller.Thermostat(address)
	if !found {
		writeNotFound(w, "thermostat not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleThermostatCommand runs a command through the same dispatch path as MQTT.
func (s *Server) handleThermostatCommand(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r)
	if !ok {
		return
	}

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Command == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "command is required")
		return
	}

	cmd, err := nest.NewCommand(req.Command, req.Value)
	if err != nil {
		writeBridgeError(w, err)
		return
	}

	commandID := uuid.NewString()
	s.logger.Info("api command",
		"command_id", commandID,
		"address", address,
		"command", req.Command,
		"request_id", requestIDFrom(r.Context()))

	ctx, cancel := context.WithTimeout(r.Context(), s.commandTimeout)
	defer cancel()

	if err := s.controller.Dispatch(ctx, address, cmd); err != nil {
		s.logger.Warn("api command failed", "command_id", commandID, "address", address, "error", err)
		writeBridgeError(w, err)
		return
	}

	status, _ := s.controller.Thermostat(address)
	writeJSON(w, http.StatusOK, CommandResponse{
		CommandID:  commandID,
		Status:     "accepted",
		Thermostat: status,
	})
}

// addressParam validates the {address} path parameter.
func addressParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	address := chi.URLParam(r, "address")
	if address == "" || len(address) > maxAddressLen {
		writeBadRequest(w, "invalid thermostat address")
		return "", false
	}
	return address, true
}
