package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"stackpilot/internal/api"
	"stackpilot/internal/config"
	"stackpilot/internal/orchestrator"
	"stackpilot/pkg/logging"
)

// Application represents the main application structure that bootstraps
// dependencies and runs the backend services.
//
// The Application follows a two-phase initialization pattern:
//  1. Setup phase: Load configuration, initialize logging, build the plan
//  2. Execution phase: Bootstrap, Check or Run
//
// Example usage:
//
//	cfg := app.NewConfig(false, configPath, "")
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	defer application.Close()
//	return application.Run(ctx)
type Application struct {
	config    *Config
	services  *Services
	plan      *Plan
	lifecycle *Lifecycle
	closeLog  func() error
}

// NewApplication loads the configuration, configures logging and builds
// the bootstrap plan. Configuration errors are returned as is so callers
// can print their details.
func NewApplication(cfg *Config) (*Application, error) {
	// Configure logging based on debug flag
	appLogLevel := logging.LevelInfo
	if cfg.Debug {
		appLogLevel = logging.LevelDebug
	}
	var logOutput io.Writer = os.Stderr
	if cfg.LogOutput != nil {
		logOutput = cfg.LogOutput
	}

	closeLog := func() error { return nil }
	if cfg.LogFile != "" {
		closer, err := logging.InitWithFile(appLogLevel, logOutput, cfg.LogFile)
		if err != nil {
			return nil, err
		}
		closeLog = closer
	} else {
		logging.InitForCLI(appLogLevel, logOutput)
	}

	if cfg.StackpilotConfig == nil {
		stackCfg, err := config.LoadConfig(cfg.ConfigPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load configuration from path: %s", cfg.ConfigPath)
			_ = closeLog()
			return nil, err
		}
		cfg.StackpilotConfig = &stackCfg
	}
	warnDefaultPassword(*cfg.StackpilotConfig)

	services, err := InitializeServices(cfg)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	plan, err := services.BuildPlan(*cfg.StackpilotConfig, cfg.Debug)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to build bootstrap plan")
		_ = closeLog()
		return nil, fmt.Errorf("failed to build bootstrap plan: %w", err)
	}

	return &Application{
		config:    cfg,
		services:  services,
		plan:      plan,
		lifecycle: NewLifecycle(services.Platform.Family, cfg.StackpilotConfig.UI.URL, services.Supervisor, plan),
		closeLog:  closeLog,
	}, nil
}

func warnDefaultPassword(c config.StackpilotConfig) {
	if c.UsesDefaultDatabasePassword() {
		logging.Warn("Config", "The database superuser uses the built-in default password; set database.password or %s", config.DatabasePasswordEnv)
	}
}

// Bootstrap installs and configures dependencies without launching services.
func (a *Application) Bootstrap(ctx context.Context) (*api.Report, error) {
	return a.plan.Orchestrator.Bootstrap(ctx)
}

// Check reports what Bootstrap would do, without side effects.
func (a *Application) Check(ctx context.Context) (*api.Report, error) {
	return a.plan.Orchestrator.Check(ctx)
}

// Progress subscribes to bootstrap progress. Subscribe before starting a run.
func (a *Application) Progress() <-chan orchestrator.ProgressEvent {
	return a.plan.Orchestrator.SubscribeToProgress()
}

// Lifecycle returns the application lifecycle.
func (a *Application) Lifecycle() *Lifecycle {
	return a.lifecycle
}

// Services returns the long-lived components.
func (a *Application) Services() *Services {
	return a.services
}

// StackpilotConfig returns the configuration in use.
func (a *Application) StackpilotConfig() config.StackpilotConfig {
	return a.plan.Config
}

// Close releases the log file.
func (a *Application) Close() error {
	return a.closeLog()
}
