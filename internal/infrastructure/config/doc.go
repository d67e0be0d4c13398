// Package config handles loading and validating homehub configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with HOMEHUB_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token, JWT secret) should be
//     set via environment variables
//   - An empty security.jwt.secret leaves the command endpoints unauthenticated
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Metrics.Name)
package config
