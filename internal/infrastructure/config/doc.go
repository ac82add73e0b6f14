// Package config handles loading and validating the Nest bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The Nest client secret, PIN and MQTT password should be set via
//     environment variables (NEST_BRIDGE_CLIENT_SECRET, NEST_BRIDGE_PIN, ...)
//   - The config file and the token cache should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Bridge.ID)
package config
