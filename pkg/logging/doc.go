// Package logging provides the structured logging used throughout stackpilot.
//
// It wraps Go's log/slog with a small subsystem-oriented API so every record
// carries the component that produced it:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Installer", "Installing %s", name)
//	logging.Warn("Configurer", "pg_hba.conf not found, skipping")
//	logging.Error("Supervisor", err, "Failed to start %s", service)
//
// # Subsystems
//
//   - Bootstrap: application construction and configuration loading
//   - Platform: host detection
//   - Installer: tool presence checks, installs and verification
//   - Configurer: profile and system configuration edits
//   - Orchestrator: step ordering and report aggregation
//   - Supervisor: backend process launch, readiness and shutdown
//   - Lifecycle: the top-level state machine
//
// # Log file
//
// InitWithFile tees records into an append-only file in addition to the
// console writer, which is useful when the launcher is started from a desktop
// entry and the console is not visible.
//
// # Hooks
//
// AddHook registers a callback that receives each emitted entry. The CLI uses
// it to pause the progress spinner while a record is printed.
//
// All functions are safe for concurrent use.
package logging
