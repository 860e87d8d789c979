package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"stackpilot/internal/api"
	"stackpilot/internal/dependency"
	"stackpilot/internal/installer"
	"stackpilot/pkg/logging"
)

// Step is one unit of bootstrap work.
type Step struct {
	Name      string
	Branch    string
	Kind      api.StepKind
	DependsOn []string

	// Run performs the step. observe may be nil.
	Run func(ctx context.Context, observe installer.TransitionFunc) api.Outcome
	// Check reports the step's state without side effects.
	Check func(ctx context.Context) api.Outcome
}

// EventType identifies a progress event.
type EventType string

const (
	EventRunStarted   EventType = "run-started"
	EventStepStarted  EventType = "step-started"
	EventStepState    EventType = "step-state"
	EventStepFinished EventType = "step-finished"
	EventRunFinished  EventType = "run-finished"
)

// ProgressEvent reports bootstrap progress to subscribers.
type ProgressEvent struct {
	Type  EventType
	RunID string
	Step  string
	// Index is the 1-based position of Step in the plan.
	Index int
	Total int
	// State is set for EventStepState and EventStepFinished.
	State     api.StepState
	Outcome   *api.Outcome
	Timestamp time.Time
}

// Config holds the configuration for the orchestrator.
type Config struct {
	// Platform is recorded in reports.
	Platform string
	// StepTimeout bounds every step. Zero disables the bound.
	StepTimeout time.Duration
}

// Orchestrator runs bootstrap steps sequentially in dependency order.
type Orchestrator struct {
	cfg   Config
	steps []Step

	flight singleflight.Group

	mu          sync.RWMutex
	subscribers []chan<- ProgressEvent
	last        *api.Report
}

// New creates an orchestrator for steps, given in declaration order.
func New(cfg Config, steps []Step) *Orchestrator {
	return &Orchestrator{
		cfg:   cfg,
		steps: append([]Step(nil), steps...),
	}
}

// Plan returns the steps in execution order. Among steps whose
// dependencies are satisfied, declaration order wins.
func (o *Orchestrator) Plan() ([]Step, error) {
	g, byName := o.graph()
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	plan := make([]Step, 0, len(order))
	for _, id := range order {
		plan = append(plan, byName[string(id)])
	}
	return plan, nil
}

func (o *Orchestrator) graph() (*dependency.Graph, map[string]Step) {
	g := dependency.New()
	byName := make(map[string]Step, len(o.steps))
	for _, s := range o.steps {
		deps := make([]dependency.NodeID, 0, len(s.DependsOn))
		for _, d := range s.DependsOn {
			deps = append(deps, dependency.NodeID(d))
		}
		g.AddNode(dependency.Node{
			ID:           dependency.NodeID(s.Name),
			FriendlyName: s.Name,
			Kind:         nodeKind(s.Kind),
			DependsOn:    deps,
		})
		byName[s.Name] = s
	}
	return g, byName
}

func nodeKind(k api.StepKind) dependency.NodeKind {
	switch k {
	case api.StepInstall:
		return dependency.KindTool
	case api.StepConfigure:
		return dependency.KindConfigure
	case api.StepService:
		return dependency.KindService
	}
	return dependency.KindUnknown
}

// Bootstrap runs every step once. Concurrent calls share one run and
// receive the same report.
//
// Step failures are recorded in the report and never abort the run; the
// error is only set for an invalid plan or when ctx is cancelled, in which
// case the report holds the steps that completed.
func (o *Orchestrator) Bootstrap(ctx context.Context) (*api.Report, error) {
	v, err, shared := o.flight.Do("bootstrap", func() (interface{}, error) {
		return o.run(ctx, false)
	})
	if shared {
		logging.Debug("Orchestrator", "Joined bootstrap run already in flight")
	}
	report, _ := v.(*api.Report)
	return report, err
}

// Check evaluates every step without side effects.
func (o *Orchestrator) Check(ctx context.Context) (*api.Report, error) {
	return o.run(ctx, true)
}

// LastReport returns the report of the most recent completed bootstrap.
func (o *Orchestrator) LastReport() *api.Report {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.last
}

func (o *Orchestrator) run(ctx context.Context, checkOnly bool) (*api.Report, error) {
	plan, err := o.Plan()
	if err != nil {
		return nil, fmt.Errorf("invalid bootstrap plan: %w", err)
	}

	report := &api.Report{
		RunID:     uuid.New().String(),
		Platform:  o.cfg.Platform,
		StartedAt: time.Now(),
	}
	mode := "bootstrap"
	if checkOnly {
		mode = "check"
	}
	logging.Info("Orchestrator", "Starting %s run %s with %d steps", mode, report.RunID, len(plan))
	o.publish(ProgressEvent{Type: EventRunStarted, RunID: report.RunID, Total: len(plan)})

	degraded := make(map[string]bool)
	var runErr error
	for i, step := range plan {
		if err := ctx.Err(); err != nil {
			logging.Warn("Orchestrator", "Run %s cancelled before %s", report.RunID, step.Name)
			runErr = err
			break
		}

		o.publish(ProgressEvent{Type: EventStepStarted, RunID: report.RunID, Step: step.Name, Index: i + 1, Total: len(plan)})

		var outcome api.Outcome
		switch {
		case checkOnly:
			outcome = o.checkStep(ctx, step)
		default:
			if failed := failedDependency(step, degraded); failed != "" {
				outcome = api.Outcome{
					Step:   step.Name,
					Branch: step.Branch,
					Kind:   step.Kind,
					State:  api.StateSkipped,
					Reason: api.KindDependencyFailed,
					Detail: fmt.Sprintf("dependency %s did not succeed", failed),
				}
				logging.Warn("Orchestrator", "Skipping %s: dependency %s did not succeed", step.Name, failed)
			} else {
				outcome = o.runStep(ctx, step, report.RunID, i+1, len(plan))
			}
		}

		if outcome.Degraded() {
			degraded[step.Name] = true
		}
		report.Add(outcome)
		o.publish(ProgressEvent{
			Type:    EventStepFinished,
			RunID:   report.RunID,
			Step:    step.Name,
			Index:   i + 1,
			Total:   len(plan),
			State:   outcome.State,
			Outcome: &outcome,
		})
	}

	report.FinishedAt = time.Now()
	o.publish(ProgressEvent{Type: EventRunFinished, RunID: report.RunID, Total: len(plan)})
	logging.Info("Orchestrator", "Finished %s run %s in %s: %d steps, %d installs, %d degraded",
		mode, report.RunID, report.Duration().Round(time.Millisecond), len(report.Outcomes), report.InstallCount(), len(report.Degraded()))

	if !checkOnly && runErr == nil {
		o.mu.Lock()
		o.last = report
		o.mu.Unlock()
	}
	return report, runErr
}

// runStep runs step under the step timeout. A step cut short by the timeout
// is reported as TimedOut whatever error it surfaced.
func (o *Orchestrator) runStep(ctx context.Context, step Step, runID string, index, total int) (outcome api.Outcome) {
	stepCtx := ctx
	if o.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, o.cfg.StepTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			outcome = api.FailedOutcome(step.Name, step.Branch, step.Kind,
				fmt.Errorf("step panicked: %v", r))
			outcome.Duration = time.Since(start)
			logging.Error("Orchestrator", fmt.Errorf("%v", r), "Step %s panicked", step.Name)
		}
	}()

	observe := func(tool string, from, to api.StepState) {
		logging.Debug("Orchestrator", "%s: %s -> %s", tool, from, to)
		o.publish(ProgressEvent{Type: EventStepState, RunID: runID, Step: tool, Index: index, Total: total, State: to})
	}
	outcome = step.Run(stepCtx, observe)

	if outcome.Degraded() && errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		outcome.Reason = api.KindTimedOut
		outcome.Detail = fmt.Sprintf("exceeded step timeout of %s: %s", o.cfg.StepTimeout, outcome.Detail)
	}
	if outcome.Duration == 0 {
		outcome.Duration = time.Since(start)
	}
	return outcome
}

// checkStep evaluates step.Check under the same timeout and panic
// containment as runStep.
func (o *Orchestrator) checkStep(ctx context.Context, step Step) (outcome api.Outcome) {
	if step.Check == nil {
		return api.Outcome{
			Step:   step.Name,
			Branch: step.Branch,
			Kind:   step.Kind,
			State:  api.StateSkipped,
			Detail: "no check available",
		}
	}

	checkCtx := ctx
	if o.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, o.cfg.StepTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			outcome = api.FailedOutcome(step.Name, step.Branch, step.Kind,
				fmt.Errorf("check panicked: %v", r))
			outcome.Duration = time.Since(start)
			logging.Error("Orchestrator", fmt.Errorf("%v", r), "Check of %s panicked", step.Name)
		}
	}()

	outcome = step.Check(checkCtx)

	if outcome.Degraded() && errors.Is(checkCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		outcome.Reason = api.KindTimedOut
		outcome.Detail = fmt.Sprintf("exceeded step timeout of %s: %s", o.cfg.StepTimeout, outcome.Detail)
	}
	if outcome.Duration == 0 {
		outcome.Duration = time.Since(start)
	}
	return outcome
}

// failedDependency returns the first dependency of step that degraded.
func failedDependency(step Step, degraded map[string]bool) string {
	for _, d := range step.DependsOn {
		if degraded[d] {
			return d
		}
	}
	return ""
}

// SubscribeToProgress returns a channel for progress events. Events are
// dropped for subscribers that do not keep up.
func (o *Orchestrator) SubscribeToProgress() <-chan ProgressEvent {
	eventChan := make(chan ProgressEvent, 100)
	o.mu.Lock()
	o.subscribers = append(o.subscribers, eventChan)
	o.mu.Unlock()
	return eventChan
}

// publish delivers event to all subscribers without blocking.
func (o *Orchestrator) publish(event ProgressEvent) {
	event.Timestamp = time.Now()

	o.mu.RLock()
	subscribers := make([]chan<- ProgressEvent, len(o.subscribers))
	copy(subscribers, o.subscribers)
	o.mu.RUnlock()

	for _, subscriber := range subscribers {
		select {
		case subscriber <- event:
		default:
			// Don't block if subscriber can't receive immediately
			logging.Debug("Orchestrator", "Subscriber blocked, skipping %s event for %s", event.Type, event.Step)
		}
	}
}
