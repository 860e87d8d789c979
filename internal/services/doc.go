// Package services supervises the backend services stackpilot launches.
//
// # Core Concepts
//
// Spec: a service as configured: its command, working directory, port and
// the command line substring (match pattern) identifying a live instance.
//
// ManagedProcess: the supervisor's record of a service. A record is either
// owned (the launcher spawned it and holds its handle) or detected (a
// matching process was already running). Detected processes are never
// adopted and never signalled.
//
// Supervisor: the single owner of all records.
//
// # Launching
//
// EnsureRunning probes the process table through system.ProcessRegistry.
// When nothing matches, the service is spawned detached in its own process
// group (a new process group on Windows) with stdout and stderr written to
// <LogDir>/<name>.log. A second call for a service the supervisor already
// owns returns the existing record, so at most one launcher-initiated
// instance exists per service.
//
// A port already bound by something else is logged and recorded in the
// record's detail; the launch still happens.
//
// # Readiness
//
// WaitReady polls the readiness URL (or dials the port) with exponential
// backoff until it answers or the readiness timeout elapses. The result is
// recorded as the service's health. A service that never becomes ready is
// not killed.
//
// # Shutdown
//
// Shutdown sends SIGTERM to the group of every owned process and kills the
// group after the grace period. Services are not restarted when they crash.
package services
