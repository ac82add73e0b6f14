package nest

import "errors"

// Domain errors for the Nest bridge package.
var (
	// ErrUnknownDevice is returned when a command targets an address that
	// has no synchronization unit.
	ErrUnknownDevice = errors.New("nest bridge: unknown thermostat")

	// ErrUnknownCommand is returned for command names outside the command table.
	ErrUnknownCommand = errors.New("nest bridge: unknown command")

	// ErrUnknownMode is returned when Set Mode receives a code with no remote mode.
	ErrUnknownMode = errors.New("nest bridge: unknown mode code")

	// ErrMissingValue is returned when a command that requires a value has none.
	ErrMissingValue = errors.New("nest bridge: command value required")

	// ErrInvalidValue is returned when a command value is not a finite number.
	ErrInvalidValue = errors.New("nest bridge: invalid command value")

	// ErrDeviceUnreachable is returned when the connectivity guard aborts a command.
	ErrDeviceUnreachable = errors.New("nest bridge: thermostat unreachable")

	// ErrDiscoveryFailed is returned when structures cannot be enumerated.
	ErrDiscoveryFailed = errors.New("nest bridge: discovery failed")

	// ErrNotAuthorized is returned when the session has no access token yet.
	ErrNotAuthorized = errors.New("nest bridge: not authorized")
)
