// Package api implements the status HTTP API of the Nest bridge.
//
// This package provides:
//   - Thermostat listing and per-thermostat snapshots
//   - Recorded state history from SQLite
//   - Commands through the same dispatch path as MQTT
//   - On-demand discovery
//   - Health and runtime metrics
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use. Handlers go
// through the controller, which serializes access to the thermostats.
package api
