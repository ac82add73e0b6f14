package nest

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for Nest API operations.
//
// Transport failures and non-2xx responses match ErrTransient; callers that
// run a connectivity check treat them as "unreachable for this cycle":
//
//	if errors.Is(err, nest.ErrTransient) || errors.Is(err, nest.ErrMalformedResponse) {
//	    // mark offline, try again next poll
//	}
var (
	// ErrTransient indicates an HTTP error status, a connection failure or a timeout.
	ErrTransient = errors.New("nest: transient failure")

	// ErrMalformedResponse indicates the API answered with a body that could
	// not be decoded into the expected shape.
	ErrMalformedResponse = errors.New("nest: malformed response")

	// ErrAuthorizationRequired indicates no usable access token is cached.
	ErrAuthorizationRequired = errors.New("nest: authorization required")

	// ErrNotFound indicates a structure or thermostat ID absent from the account.
	ErrNotFound = errors.New("nest: not found")

	// ErrInvalidConfig indicates the session configuration is incomplete.
	ErrInvalidConfig = errors.New("nest: invalid configuration")
)

// StatusError is returned for any non-2xx API response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("nest: %s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("nest: %s %s: %d %s: %s", e.Method, e.Path, e.Code, http.StatusText(e.Code), e.Body)
}

// Is reports StatusError as transient. A 401 also matches
// ErrAuthorizationRequired so callers can prompt for a new PIN.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrTransient:
		return true
	case ErrAuthorizationRequired:
		return e.Code == http.StatusUnauthorized
	}
	return false
}
