// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"session": "debug",  // Per-module overrides
//			"api":     "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("mymodule")
//	logger.Info("Starting up", "port", 8080)
//	logger.Debug("Details", "config", cfg)
//	logger.Warn("Something unusual", "error", err)
//	logger.Error("Failed", "error", err)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("session").With("serial", serial)
//	logger.Info("Device connected")  // Includes serial in all logs
//
// # Log Levels
//
//	debug - Verbose debugging information
//	info  - General operational messages
//	warn  - Warning conditions
//	error - Error conditions
//
// # Output Destinations
//
// Every logger writes through a [MultiHandler] whose outputs are picked at
// creation time: stdout (text or JSON) unless it is /dev/null, a
// [JournalHandler] when journald is running, and always the buffer handler.
//
// Journal availability is checked via [github.com/coreos/go-systemd/v22/journal.Enabled].
// Every logger also feeds an in-memory [RingBuffer] read through [GetBuffer],
// and [SetLogCallback] forwards new entries to the event bus for /api/logs streaming.
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t fbmirror              # All fbmirror logs
//	journalctl -t fbmirror -f           # Follow live
//	journalctl -t fbmirror --since "5m" # Last 5 minutes
//	journalctl -t fbmirror -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t fbmirror MODULE=session
//	journalctl -t fbmirror SERIAL=emulator-5554
//
// # Configuration
//
// Log levels can be set globally or per-module. Module-specific levels
// override the global level for that module only.
//
// Example TOML configuration; any key besides level and format names a module:
//
//	[logging]
//	level = "info"
//	format = "text"
//	session = "debug"
//	adb = "warn"
//	systemd = "error"
package logging
