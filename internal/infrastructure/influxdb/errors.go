package influxdb

import "errors"

// Telemetry errors. None of them stop the bridge: main tolerates
// ErrDisabled and ErrConnectionFailed, and write failures only reach the
// SetOnError callback.
var (
	ErrNotConnected     = errors.New("influxdb: not connected")
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed wraps an asynchronous batch failure, tagged with the
	// target bucket.
	ErrWriteFailed = errors.New("influxdb: write failed")

	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
