// Package logging provides structured logging for the Nest bridge.
//
// It wraps log/slog with JSON or text output, level filtering and default
// fields (service, version) on every record.
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("nest").Info("discovery complete", "thermostats", 2)
//
// Never log the Nest client secret, access tokens or PINs.
package logging
