// Package logging provides structured logging for castctl.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the sender. It provides both general logging
// functions and specialized functions for protocol-specific logging needs.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (frame payloads, hex dumps, ping/pong)
//   - Info: Normal operations (connections, messages, state changes)
//   - Warn: Non-fatal issues (decode failures, dropped subscribers)
//   - Error: Fatal issues (startup failures, critical errors)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Receiver connected",
//	    zap.String("remote_addr", "192.168.1.100:8009"),
//	    zap.String("device", "Living Room TV"),
//	)
//
// # Specialized Logging
//
// The package provides domain-specific logging functions:
//
// Connection Logging:
//
//	logging.LogConnection(remoteAddr, "tls_handshake_complete")
//	logging.LogConnection(remoteAddr, "virtual_connection_opened")
//	logging.LogConnection(remoteAddr, "disconnected")
//
// Wire Frame Logging:
//
//	logging.LogFrame(remoteAddr, "sent", payload)
//	logging.LogFrame(remoteAddr, "received", payload)
//
// Protocol Message Logging:
//
//	logging.LogMessage(remoteAddr, namespace, msgType, requestID)
//
// # Configuration
//
// Logging is silent by default so CLI output stays clean. Set the
// CASTCTL_LOG_LEVEL environment variable ("debug", "info", "warn", "error")
// to enable it, or initialize explicitly:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
