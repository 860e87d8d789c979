package app

import (
	"io"

	"stackpilot/internal/config"
	"stackpilot/internal/envconfig"
	"stackpilot/internal/executor"
	"stackpilot/internal/platform"
	"stackpilot/internal/services"
	"stackpilot/internal/system"
)

// Config holds the application configuration
type Config struct {
	// Debug settings
	Debug bool

	// ConfigPath is the directory holding config.yaml.
	ConfigPath string

	// LogFile, when set, receives a copy of all log records.
	LogFile string

	// LogOutput defaults to os.Stderr.
	LogOutput io.Writer

	// NoBrowser keeps the run mode from opening the UI.
	NoBrowser bool

	// Loaded stackpilot configuration
	StackpilotConfig *config.StackpilotConfig

	// Dependencies replaces host facing components, mostly in tests.
	Dependencies Dependencies
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath, logFile string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
		LogFile:    logFile,
	}
}

// Dependencies are the host facing components of the application. Nil
// fields get the real implementation.
type Dependencies struct {
	Platform   *platform.Overrides
	Runner     system.Runner
	Elevator   system.Elevator
	Processes  system.ProcessRegistry
	UnitActive executor.UnitChecker
	Files      envconfig.FileStore
	Spawner    services.Spawner
	Probe      services.ReadinessProbe
	PortInUse  services.PortChecker
	// OpenBrowser replaces the default browser launcher.
	OpenBrowser func(url string) error
}
