package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-nest/internal/bridges/nest"
	nestapi "github.com/nerrad567/gray-logic-nest/internal/nest"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeNotFound           = "not_found"
	ErrCodeInternal           = "internal_error"
	ErrCodeValidation         = "validation_error"
	ErrCodeUnreachable        = "device_unreachable"
	ErrCodeNotAuthorized      = "not_authorized"
	ErrCodeTimeout            = "timeout"
	ErrCodeServiceUnavailable = "service_unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeBridgeError maps a controller error onto an HTTP status.
func writeBridgeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, nest.ErrUnknownDevice):
		writeNotFound(w, err.Error())
	case errors.Is(err, nest.ErrUnknownCommand),
		errors.Is(err, nest.ErrUnknownMode),
		errors.Is(err, nest.ErrMissingValue),
		errors.Is(err, nest.ErrInvalidValue):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, nest.ErrNotAuthorized), errors.Is(err, nestapi.ErrAuthorizationRequired):
		writeError(w, http.StatusServiceUnavailable, ErrCodeNotAuthorized, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, err.Error())
	case errors.Is(err, nest.ErrDeviceUnreachable),
		errors.Is(err, nest.ErrDiscoveryFailed),
		errors.Is(err, nestapi.ErrTransient):
		writeError(w, http.StatusBadGateway, ErrCodeUnreachable, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
