// Package logging provides a structured logging system for kcdev built on
// Go's standard slog package.
//
// Every log entry carries a subsystem identifier so that output from the
// installer, the process supervisor, the readiness probe and the admin client
// can be told apart:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//	logging.Info("Installer", "Downloading Keycloak %s", version)
//	logging.Error("Server", err, "Failed to stop instance %s", id)
//
// # Log Levels
//   - Debug: Detailed information for debugging and development
//   - Info: General informational messages about application operation
//   - Warn: Warning messages that indicate potential issues
//   - Error: Error messages for failures and exceptional conditions
//
// Messages below the configured filter level are dropped at the handler, so
// no formatting work is done for suppressed entries.
//
// # Subsystem Organization
//
// Logs are organized by subsystem to enable filtering and categorization:
//
//   - Installer: distribution download, extraction and Java detection
//   - Ports: port pair allocation and probing
//   - Process: child process lifecycle and log capture
//   - Server: Keycloak instance state transitions
//   - Probe: readiness polling
//   - Snapshot: data directory backup and restore
//   - Registry: instance tracking and shutdown
//   - Admin: Keycloak admin REST operations
//   - Realm: realm file loading and import file handling
//   - Watcher: realm file change detection
//
// # Thread Safety
//
// The logging system is fully thread-safe and may be used concurrently from
// multiple goroutines.
package logging
