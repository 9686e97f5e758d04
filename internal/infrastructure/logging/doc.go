// Package logging provides structured logging for emeraldhwsd.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the daemon, the supervisor and the
// one-shot commands.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Output
//
// Logs always go to stderr by default. stdout belongs to the line protocol
// and must never carry diagnostics:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stderr"   # stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("session renewed", "age", age)
//	logger.Error("initial authentication failed", "error", err)
//
// # Security
//
// Never log account passwords or session tokens.
package logging
