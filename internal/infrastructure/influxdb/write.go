package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	MeasurementThermostat = "thermostat"
	MeasurementBridge     = "nest_bridge"
)

// WriteThermostat records one thermostat snapshot.
//
// Tags identify the thermostat; fields carry the projected values
// (ambient, humidity, setpoint_high, setpoint_low, mode, hvac_state, ...).
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteThermostat("peyijno0ildt2y", "Hallway", map[string]any{
//	    "ambient": 71.0, "humidity": 41.5, "setpoint_high": 74.0,
//	})
func (c *Client) WriteThermostat(address, name string, fields map[string]any) {
	if len(fields) == 0 {
		return
	}
	tags := map[string]string{"address": address}
	if name != "" {
		tags["name"] = name
	}
	c.WritePoint(MeasurementThermostat, tags, fields)
}

// WriteBridgeStats records bridge-level counters (polls, failures, reconnects).
func (c *Client) WriteBridgeStats(bridgeID string, fields map[string]any) {
	c.WritePoint(MeasurementBridge, map[string]string{"bridge_id": bridgeID}, fields)
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
