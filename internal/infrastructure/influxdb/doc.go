// Package influxdb records thermostat telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Telemetry is
// optional: Connect returns ErrDisabled when influxdb.enabled is false and
// the bridge simply skips the recorder.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteThermostat("peyijno0ildt2y", "Hallway", map[string]any{"ambient": 71.0})
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval; asynchronous failures are reported through SetOnError.
package influxdb
