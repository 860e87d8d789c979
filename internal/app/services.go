package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stackpilot/internal/config"
	"stackpilot/internal/envconfig"
	"stackpilot/internal/executor"
	"stackpilot/internal/installer"
	"stackpilot/internal/orchestrator"
	"stackpilot/internal/platform"
	"stackpilot/internal/services"
	"stackpilot/internal/system"
	"stackpilot/pkg/logging"
)

// Services holds the components of a running application.
//
// Host facing components (runner, elevator, process registry, supervisor)
// live as long as the application. The Plan is rebuilt whenever the
// configuration changes.
type Services struct {
	Platform  platform.Info
	Runner    system.Runner
	Elevator  system.Elevator
	Processes system.ProcessRegistry

	// Supervisor owns every launched backend service.
	Supervisor *services.Supervisor

	deps Dependencies
}

// Plan is everything derived from one version of the configuration.
type Plan struct {
	Config       config.StackpilotConfig
	Executor     *executor.Executor
	Tools        *installer.Registry
	Configurer   *envconfig.Configurer
	Orchestrator *orchestrator.Orchestrator
	ServiceSpecs []services.Spec
}

// InitializeServices creates the long-lived components.
func InitializeServices(cfg *Config) (*Services, error) {
	if cfg.StackpilotConfig == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	stackCfg := cfg.StackpilotConfig
	deps := cfg.Dependencies

	overrides := platform.Overrides{
		HomeDir:      stackCfg.Platform.HomeDir,
		ResourcesDir: stackCfg.Platform.ResourcesDir,
		InstallDirs:  stackCfg.Platform.InstallDirs,
	}
	if deps.Platform != nil {
		overrides = *deps.Platform
	}
	info := platform.Resolve(overrides)
	logging.Info("Platform", "Detected %s/%s, home %s, resources %s", info.Family, info.Arch, info.HomeDir, info.ResourcesDir)

	svc := &Services{Platform: info, deps: deps}

	svc.Runner = deps.Runner
	if svc.Runner == nil {
		svc.Runner = system.NewExecRunner(info)
	}
	svc.Elevator = deps.Elevator
	if svc.Elevator == nil {
		svc.Elevator = system.NewElevator(svc.Runner, info)
	}
	svc.Processes = deps.Processes
	if svc.Processes == nil {
		svc.Processes = system.NewProcessRegistry()
	}

	spawner := deps.Spawner
	if spawner == nil {
		spawner = services.NewExecSpawner(info)
	}
	logDir := filepath.Join(cfg.ConfigPath, "logs")
	if cfg.ConfigPath == "" {
		logDir = filepath.Join(os.TempDir(), "stackpilot", "logs")
	}
	svc.Supervisor = services.NewSupervisor(services.Config{
		Processes:         svc.Processes,
		Spawner:           spawner,
		Probe:             deps.Probe,
		PortInUse:         deps.PortInUse,
		LogDir:            logDir,
		ReadinessTimeout:  time.Duration(stackCfg.Readiness.Timeout),
		ReadinessInterval: time.Duration(stackCfg.Readiness.Interval),
		OnStateChange: func(name string, oldState, newState services.ServiceState, health services.HealthStatus, err error) {
			logging.Debug("Supervisor", "Service %s state changed: %s -> %s (health: %s)", name, oldState, newState, health)
		},
	})
	return svc, nil
}

// BuildPlan derives the bootstrap steps and service specs from stackCfg.
func (s *Services) BuildPlan(stackCfg config.StackpilotConfig, debug bool) (*Plan, error) {
	renderer := config.NewRenderer(config.NewTemplateData(s.Platform, stackCfg.Database))
	ex := executor.New(s.Platform, s.Runner, s.Elevator, s.Processes, renderer)
	if s.deps.UnitActive != nil {
		ex.UnitActive = s.deps.UnitActive
	}
	if debug {
		ex.Stream = os.Stderr
	}

	tools, err := installer.BuildRegistry(stackCfg.Tools, ex)
	if err != nil {
		return nil, fmt.Errorf("failed to build tool registry: %w", err)
	}

	files := s.deps.Files
	if files == nil {
		files = envconfig.NewHostFiles(ex)
	}
	configurer := envconfig.New(ex, files)

	orch := orchestrator.New(orchestrator.Config{
		Platform:    string(s.Platform.Family),
		StepTimeout: time.Duration(stackCfg.Bootstrap.StepTimeout),
	}, orchestrator.BuildSteps(tools, configurer, stackCfg.Configure))
	if _, err := orch.Plan(); err != nil {
		return nil, err
	}

	var specs []services.Spec
	for _, def := range stackCfg.Services {
		if !def.IsEnabled() || !s.Platform.Matches(def.Platforms) {
			continue
		}
		spec, err := services.SpecFromDefinition(def, renderer.Render)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	return &Plan{
		Config:       stackCfg,
		Executor:     ex,
		Tools:        tools,
		Configurer:   configurer,
		Orchestrator: orch,
		ServiceSpecs: specs,
	}, nil
}
