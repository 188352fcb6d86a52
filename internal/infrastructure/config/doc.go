// Package config handles loading and validating LG TV bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token, JWT secret) should be
//     set via LGTV_BRIDGE_* environment variables
//   - The config file should have restricted permissions (0600)
//   - Leaving security.jwt.secret empty disables API authentication
//
// Usage:
//
//	cfg, err := config.Load("configs/lgtv.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Bridge.ID)
package config
