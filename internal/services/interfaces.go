package services

import (
	"context"

	"stackpilot/internal/api"
)

// Use API package types instead of duplicating them
type ServiceState = api.ServiceState
type HealthStatus = api.HealthStatus

const (
	StateUnknown  = api.StateUnknown
	StateStarting = api.StateStarting
	StateRunning  = api.StateRunning
	StateStopping = api.StateStopping
	StateStopped  = api.StateStopped
	StateFailed   = api.StateFailed
)

const (
	HealthUnknown   = api.HealthUnknown
	HealthHealthy   = api.HealthHealthy
	HealthUnhealthy = api.HealthUnhealthy
	HealthChecking  = api.HealthChecking
)

// StateChangeCallback is called when a managed process changes state.
type StateChangeCallback func(name string, oldState, newState ServiceState, health HealthStatus, err error)

// Handle is a launcher-owned process.
type Handle interface {
	PID() int
	// Terminate asks the process (and its group) to exit.
	Terminate() error
	// Kill forcefully ends the process (and its group).
	Kill() error
	// Done is closed once the process has exited.
	Done() <-chan struct{}
}

// Spawner starts detached processes.
type Spawner interface {
	// Spawn starts spec detached from the launcher, with stdout and stderr
	// written to logPath. The process must outlive ctx.
	Spawn(ctx context.Context, spec Spec, logPath string) (Handle, error)
}

// ReadinessProbe reports whether a launched service accepts requests.
type ReadinessProbe interface {
	Ready(ctx context.Context, spec Spec) error
}

// PortChecker reports whether something already listens on a local port.
type PortChecker func(port int) bool
