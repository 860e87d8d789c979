package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"stackpilot/internal/api"
	"stackpilot/internal/system"
	"stackpilot/pkg/logging"
)

const (
	// DefaultShutdownGrace is how long owned processes get to exit after
	// being asked to terminate before they are killed.
	DefaultShutdownGrace = 5 * time.Second
)

// Config holds the configuration for the supervisor.
type Config struct {
	Processes system.ProcessRegistry
	Spawner   Spawner
	Probe     ReadinessProbe
	// PortInUse defaults to PortInUse.
	PortInUse PortChecker
	// LogDir receives one <name>.log file per launched service.
	LogDir string

	ReadinessTimeout  time.Duration
	ReadinessInterval time.Duration
	ShutdownGrace     time.Duration

	OnStateChange StateChangeCallback
}

// Supervisor launches backend services and terminates the ones it owns.
type Supervisor struct {
	cfg      Config
	registry *registry

	// launchMu serialises EnsureRunning so a service is never spawned twice.
	launchMu sync.Mutex
}

// NewSupervisor creates a supervisor.
func NewSupervisor(cfg Config) *Supervisor {
	if cfg.Probe == nil {
		cfg.Probe = NewNetProbe()
	}
	if cfg.PortInUse == nil {
		cfg.PortInUse = PortInUse
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = DefaultShutdownGrace
	}
	if cfg.ReadinessInterval <= 0 {
		cfg.ReadinessInterval = 500 * time.Millisecond
	}
	if cfg.ReadinessTimeout <= 0 {
		cfg.ReadinessTimeout = 30 * time.Second
	}
	return &Supervisor{cfg: cfg, registry: newRegistry()}
}

// EnsureRunning makes sure one instance of spec is running. A live process
// matching spec.MatchPattern is recorded as detected and never adopted. A
// service this supervisor already started and that is still alive is
// returned as is.
func (s *Supervisor) EnsureRunning(ctx context.Context, spec Spec) (*ManagedProcess, error) {
	s.launchMu.Lock()
	defer s.launchMu.Unlock()

	if existing, err := s.registry.Get(spec.Name); err == nil && existing.Owned && !existing.Exited() {
		logging.Debug("Supervisor", "%s already started by this launcher (pid %d)", spec.Name, existing.PID())
		return existing, nil
	}

	mp := newManagedProcess(spec, s.cfg.OnStateChange)

	if s.cfg.Processes.IsRunning(ctx, spec.MatchPattern) {
		mp.setDetail("already running")
		mp.updateState(StateRunning, HealthUnknown, nil)
		logging.Info("Supervisor", "%s is already running, not starting another instance", spec.Name)
		return mp, s.registry.Put(mp)
	}

	var warning string
	if spec.Port > 0 && s.cfg.PortInUse(spec.Port) {
		warning = fmt.Sprintf("port %d is already in use by another process", spec.Port)
		logging.Warn("Supervisor", "%s: %s; starting anyway", spec.Name, warning)
	}

	mp.LogPath = filepath.Join(s.cfg.LogDir, spec.Name+".log")
	mp.updateState(StateStarting, HealthChecking, nil)
	handle, err := s.cfg.Spawner.Spawn(ctx, spec, mp.LogPath)
	if err != nil {
		stepErr := api.NewStepError(api.KindProcessSpawnFailed, spec.Name, err)
		mp.setDetail(err.Error())
		mp.updateState(StateFailed, HealthUnhealthy, stepErr)
		logging.Error("Supervisor", err, "Failed to start %s", spec.Name)
		_ = s.registry.Put(mp)
		return mp, stepErr
	}

	mp.handle = handle
	mp.Owned = true
	mp.Detached = true
	mp.Started = time.Now()
	if warning != "" {
		mp.setDetail(warning)
	} else {
		mp.setDetail("started")
	}
	mp.updateState(StateRunning, HealthChecking, nil)
	logging.Info("Supervisor", "Started %s (pid %d), logs in %s", spec.Name, handle.PID(), mp.LogPath)
	return mp, s.registry.Put(mp)
}

// WaitReady polls the readiness of the named service. The outcome is
// recorded as the service's health; a service that never becomes ready is
// left running.
func (s *Supervisor) WaitReady(ctx context.Context, name string) error {
	mp, err := s.registry.Get(name)
	if err != nil {
		return err
	}
	if mp.GetState() == StateFailed {
		return mp.GetLastError()
	}

	if err := waitReady(ctx, s.cfg.Probe, mp, s.cfg.ReadinessTimeout, s.cfg.ReadinessInterval); err != nil {
		mp.updateHealth(HealthUnhealthy, err)
		logging.Warn("Supervisor", "%s did not become ready: %v", name, err)
		return err
	}
	mp.updateHealth(HealthHealthy, nil)
	logging.Info("Supervisor", "%s is ready", name)
	return nil
}

// Launch ensures every spec is running and waits for readiness. The
// returned outcomes follow the order of specs.
func (s *Supervisor) Launch(ctx context.Context, specs []Spec) []api.Outcome {
	outcomes := make([]api.Outcome, len(specs))
	starts := make([]time.Time, len(specs))
	for i, spec := range specs {
		starts[i] = time.Now()
		mp, err := s.EnsureRunning(ctx, spec)
		if err != nil {
			outcomes[i] = api.FailedOutcome(spec.Name, "", api.StepService, err)
			outcomes[i].Duration = time.Since(starts[i])
			continue
		}
		outcomes[i] = api.Outcome{Step: spec.Name, Kind: api.StepService, State: api.StateDetected, Detail: mp.Detail()}
		if mp.Owned {
			outcomes[i].State = api.StateStarted
		}
	}

	var wg sync.WaitGroup
	for i, spec := range specs {
		if outcomes[i].State != api.StateStarted {
			outcomes[i].Duration = time.Since(starts[i])
			continue
		}
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			if err := s.WaitReady(ctx, name); err != nil {
				outcomes[i].Detail = fmt.Sprintf("%s; not ready: %v", outcomes[i].Detail, err)
			} else {
				outcomes[i].Detail += "; ready"
			}
			outcomes[i].Duration = time.Since(starts[i])
		}(i, spec.Name)
	}
	wg.Wait()
	return outcomes
}

// Shutdown terminates every owned process: SIGTERM to its group, then a
// kill after the grace period. Detected processes are left running.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, mp := range s.registry.GetAll() {
		if !mp.Owned || mp.handle == nil {
			if mp.GetState() == StateRunning {
				logging.Info("Supervisor", "Leaving %s running: not started by this launcher", mp.Name())
			}
			continue
		}
		if mp.Exited() {
			mp.updateState(StateStopped, HealthUnknown, nil)
			continue
		}

		wg.Add(1)
		go func(mp *ManagedProcess) {
			defer wg.Done()
			if err := s.stop(ctx, mp); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", mp.Name(), err))
				mu.Unlock()
			}
		}(mp)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (s *Supervisor) stop(ctx context.Context, mp *ManagedProcess) error {
	mp.updateState(StateStopping, mp.GetHealth(), nil)
	logging.Info("Supervisor", "Stopping %s (pid %d)", mp.Name(), mp.PID())

	if err := mp.handle.Terminate(); err != nil {
		logging.Warn("Supervisor", "Failed to terminate %s: %v", mp.Name(), err)
	}

	timer := time.NewTimer(s.cfg.ShutdownGrace)
	defer timer.Stop()
	select {
	case <-mp.handle.Done():
		mp.updateState(StateStopped, HealthUnknown, nil)
		return nil
	case <-timer.C:
		logging.Warn("Supervisor", "%s did not exit within %s, killing it", mp.Name(), s.cfg.ShutdownGrace)
	case <-ctx.Done():
		logging.Warn("Supervisor", "Shutdown cancelled, killing %s", mp.Name())
	}

	if err := mp.handle.Kill(); err != nil {
		mp.updateState(StateFailed, HealthUnknown, err)
		return err
	}
	select {
	case <-mp.handle.Done():
	case <-time.After(time.Second):
	}
	mp.updateState(StateStopped, HealthUnknown, nil)
	return nil
}

// Get returns the record of the named service.
func (s *Supervisor) Get(name string) (*ManagedProcess, error) {
	return s.registry.Get(name)
}

// Statuses returns a snapshot of every known service.
func (s *Supervisor) Statuses() []api.ServiceStatus {
	records := s.registry.GetAll()
	res := make([]api.ServiceStatus, 0, len(records))
	for _, mp := range records {
		res = append(res, mp.Status())
	}
	return res
}
