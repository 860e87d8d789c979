// Package system wraps the host facilities stackpilot depends on: resolving
// executables, scanning the process table, running external commands with a
// time budget, escalating privileges and querying system services.
//
// Every entry point takes the platform.Info resolved at startup instead of
// consulting the process environment, and every external command goes
// through the Runner interface so tests can substitute a fake.
package system
