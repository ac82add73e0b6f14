package device

import "errors"

// Domain errors for the device package.
//
//	if errors.Is(err, device.ErrThermostatNotFound) {
//	    // handle not found case
//	}
var (
	// ErrThermostatNotFound is returned when an address is not registered.
	ErrThermostatNotFound = errors.New("device: thermostat not found")

	// ErrInvalidThermostat is returned when a registry row is missing required fields.
	ErrInvalidThermostat = errors.New("device: invalid thermostat")

	// ErrAddressRequired is returned by history operations without an address.
	ErrAddressRequired = errors.New("device: address is required")
)
