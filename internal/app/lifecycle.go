package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stackpilot/internal/api"
	"stackpilot/internal/orchestrator"
	"stackpilot/internal/platform"
	"stackpilot/internal/services"
	"stackpilot/pkg/logging"
)

// LifecycleState is the state of the launcher as a whole.
type LifecycleState string

const (
	StateIdle          LifecycleState = "idle"
	StateBootstrapping LifecycleState = "bootstrapping"
	StateReady         LifecycleState = "ready"
	StateShuttingDown  LifecycleState = "shutting-down"
	StateTerminated    LifecycleState = "terminated"
)

// Lifecycle drives Idle → Bootstrapping → Ready → ShuttingDown → Terminated.
type Lifecycle struct {
	mu     sync.Mutex
	state  LifecycleState
	family platform.Family
	uiURL  string

	orch  *orchestrator.Orchestrator
	specs []services.Spec
	sup   *services.Supervisor

	// refreshMu serialises Start and Refresh.
	refreshMu sync.Mutex
}

// NewLifecycle creates an idle lifecycle.
func NewLifecycle(family platform.Family, uiURL string, sup *services.Supervisor, plan *Plan) *Lifecycle {
	return &Lifecycle{
		state:  StateIdle,
		family: family,
		uiURL:  uiURL,
		sup:    sup,
		orch:   plan.Orchestrator,
		specs:  plan.ServiceSpecs,
	}
}

// State returns the current state.
func (l *Lifecycle) State() LifecycleState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Lifecycle) transition(from []LifecycleState, to LifecycleState) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range from {
		if l.state == f {
			logging.Debug("Lifecycle", "%s -> %s", l.state, to)
			l.state = to
			return nil
		}
	}
	return fmt.Errorf("cannot move from %s to %s", l.state, to)
}

// Start bootstraps dependencies, launches the services and waits for their
// readiness. Degraded bootstrap steps do not prevent Ready; the returned
// report lists them together with the service outcomes.
func (l *Lifecycle) Start(ctx context.Context) (*api.Report, error) {
	l.refreshMu.Lock()
	defer l.refreshMu.Unlock()

	if err := l.transition([]LifecycleState{StateIdle}, StateBootstrapping); err != nil {
		return nil, err
	}

	report, err := l.bootstrapAndLaunch(ctx)
	if err != nil {
		l.mu.Lock()
		l.state = StateIdle
		l.mu.Unlock()
		return report, err
	}

	if err := l.transition([]LifecycleState{StateBootstrapping}, StateReady); err != nil {
		// Shutdown ran during the launch; stop what it could not see yet.
		_ = l.sup.Shutdown(ctx)
		return report, err
	}
	logging.Info("Lifecycle", "Ready, UI at %s", l.uiURL)
	return report, nil
}

// Refresh reruns the bootstrap and the service launch while Ready. Both are
// idempotent, so a refresh without changes installs and spawns nothing.
func (l *Lifecycle) Refresh(ctx context.Context) (*api.Report, error) {
	l.refreshMu.Lock()
	defer l.refreshMu.Unlock()

	if s := l.State(); s != StateReady {
		return nil, fmt.Errorf("cannot refresh while %s", s)
	}
	return l.bootstrapAndLaunch(ctx)
}

// Replan swaps in a plan built from a changed configuration. It takes
// effect with the next Refresh.
func (l *Lifecycle) Replan(plan *Plan, uiURL string) {
	l.refreshMu.Lock()
	defer l.refreshMu.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orch = plan.Orchestrator
	l.specs = plan.ServiceSpecs
	l.uiURL = uiURL
}

func (l *Lifecycle) bootstrapAndLaunch(ctx context.Context) (*api.Report, error) {
	l.mu.Lock()
	orch, specs := l.orch, l.specs
	l.mu.Unlock()

	report, err := orch.Bootstrap(ctx)
	if err != nil {
		return report, err
	}
	if degraded := report.Degraded(); len(degraded) > 0 {
		logging.Warn("Lifecycle", "%d bootstrap step(s) degraded, launching services anyway", len(degraded))
	}

	// Bootstrap reports are shared between concurrent callers; add the
	// service outcomes to a copy.
	full := *report
	full.Outcomes = append([]api.Outcome(nil), report.Outcomes...)
	for _, o := range l.sup.Launch(ctx, specs) {
		full.Add(o)
	}
	full.FinishedAt = time.Now()
	return &full, ctx.Err()
}

// UIURL returns the address of the web UI.
func (l *Lifecycle) UIURL() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.uiURL
}

// Shutdown stops every service the launcher started. Services that were
// already running before the launcher are left alone. Calling Shutdown again
// is a no-op.
func (l *Lifecycle) Shutdown(ctx context.Context) error {
	if err := l.transition([]LifecycleState{StateIdle, StateBootstrapping, StateReady}, StateShuttingDown); err != nil {
		logging.Debug("Lifecycle", "Shutdown ignored: %v", err)
		return nil
	}
	logging.Info("Lifecycle", "Shutting down")
	err := l.sup.Shutdown(ctx)

	l.mu.Lock()
	l.state = StateTerminated
	l.mu.Unlock()
	if err != nil {
		logging.Error("Lifecycle", err, "Shutdown finished with errors")
	}
	return err
}

// OnAllWindowsClosed shuts down and reports whether the process should
// quit. On macOS applications stay resident after their last window closes.
func (l *Lifecycle) OnAllWindowsClosed(ctx context.Context) bool {
	_ = l.Shutdown(ctx)
	return l.family != platform.MacOS
}
