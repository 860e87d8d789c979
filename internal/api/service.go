package api

// ServiceState represents the current state of a managed backend service.
type ServiceState string

const (
	StateUnknown  ServiceState = "unknown"
	StateStarting ServiceState = "starting"
	StateRunning  ServiceState = "running"
	StateStopping ServiceState = "stopping"
	StateStopped  ServiceState = "stopped"
	StateFailed   ServiceState = "failed"
)

// HealthStatus represents the readiness of a managed backend service.
type HealthStatus string

const (
	HealthUnknown   HealthStatus = "unknown"
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthChecking  HealthStatus = "checking"
)

// ServiceStatus is a snapshot of a managed service as reported to callers.
type ServiceStatus struct {
	Name    string       `json:"name"`
	State   ServiceState `json:"state"`
	Health  HealthStatus `json:"health"`
	Owned   bool         `json:"owned"`
	PID     int          `json:"pid,omitempty"`
	Port    int          `json:"port,omitempty"`
	Detail  string       `json:"detail,omitempty"`
	LogPath string       `json:"logPath,omitempty"`
}
