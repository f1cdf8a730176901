// Package logging provides structured logging for hidroctl.
//
// This package wraps zap logger with convenience functions for the logging
// patterns used throughout the tool. Logging is silent by default so CLI
// output stays clean; set HIDROCTL_LOG_LEVEL (or pass --log-level) to enable.
//
// # Log Levels
//
//   - Debug: hex dumps of wire frames, scan offsets, reconnect timing
//   - Info: connections, decoded snapshots, commands sent
//   - Warn: dropped updates, duplicate type bytes, subscriber panics
//   - Error: decode failures, transport errors
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Controller connected",
//	    zap.String("host", "192.168.1.40"),
//	    zap.Uint16("firmware", 365),
//	)
//
// # Wire Traffic
//
// LogFrame records WebSocket traffic in both directions; binary frames are
// hex-dumped (truncated at 256 bytes), text frames are logged verbatim.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
