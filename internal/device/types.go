package device

import "time"

// Thermostat is a persisted registry row for one discovered thermostat.
// This matches migrations/20260301_090000_thermostats.up.sql.
type Thermostat struct {
	// Address is the local identifier derived from the device serial.
	Address string `json:"address"`

	// DeviceID is the cloud device identifier (the serial).
	DeviceID string `json:"device_id"`

	// StructureID is the home the thermostat belongs to.
	StructureID string `json:"structure_id"`

	Name          string `json:"name"`
	StructureName string `json:"structure_name"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State is a JSON-serialisable snapshot of a thermostat's driver values.
type State map[string]any
