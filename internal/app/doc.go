// Package app provides application bootstrap, lifecycle management, and configuration management for stackpilot.
//
// This package wires the host facing components (platform facts, command
// runner, privilege elevation, process table, service supervisor) to the plan
// derived from config.yaml (tool registry, configure steps, orchestrator and
// service specs) and drives the launcher lifecycle.
//
// # Architecture Overview
//
//  1. **Bootstrap (`bootstrap.go`)**: Application initialization
//  2. **Configuration (`config.go`)**: Application runtime configuration and injectable dependencies
//  3. **Services (`services.go`)**: Long-lived components and plan construction
//  4. **Lifecycle (`lifecycle.go`)**: Idle → Bootstrapping → Ready → ShuttingDown → Terminated
//  5. **Modes (`modes.go`)**: The run mode used in place of the desktop shell
//
// # Initialization Sequence
//
//  1. Configure logging from the debug flag (and an optional log file)
//  2. Load config.yaml unless a configuration was injected
//  3. Resolve the platform once and create the runner, elevator and supervisor
//  4. Build the plan and validate the step graph, so cycles fail before any work
//
// # Lifecycle
//
// Start bootstraps every dependency and launches the backend services. Degraded
// steps are logged and reported but never prevent the Ready state. Shutdown
// terminates only the services the launcher started itself; processes found
// already running are left alone. OnAllWindowsClosed shuts down and tells the
// shell whether to quit, which it does everywhere except macOS.
//
// # Usage Example
//
//	cfg := app.NewConfig(debug, configPath, logFile)
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return err
//	}
//	defer application.Close()
//	return application.Run(ctx, printReport)
//
// # Configuration Changes
//
// The run mode watches config.yaml. A valid change rebuilds the plan and
// refreshes: the bootstrap and the launch are idempotent, so only what the
// change introduced is installed or started. An invalid file is logged and
// the previous plan stays in effect.
package app
