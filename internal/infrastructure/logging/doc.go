// Package logging provides structured logging for homehub.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "addr", "0.0.0.0:7200")
//	heaterLog := logger.Component("heater")
//	heaterLog.Error("failed to connect", "error", err)
//
// # Security
//
// Never log secrets, tokens, or passwords. MQTT credentials and the
// webhook URL query are not logged by any component.
package logging
