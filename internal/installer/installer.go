package installer

import (
	"context"
	"fmt"
	"time"

	"stackpilot/internal/api"
	"stackpilot/internal/config"
	"stackpilot/internal/executor"
	"stackpilot/pkg/logging"
)

// ToolSpec describes how to detect, install and verify one tool.
type ToolSpec struct {
	Name      string
	Branch    string
	DependsOn []string

	// Applicable, when set, decides whether the tool concerns this host at
	// all. Inapplicable tools are skipped without being counted as degraded.
	Applicable func(ctx context.Context) (bool, error)
	Present    func(ctx context.Context) (bool, error)
	Install    func(ctx context.Context) error
	Verify     func(ctx context.Context) error
}

// TransitionFunc observes state changes of a tool.
type TransitionFunc func(tool string, from, to api.StepState)

// Ensure drives spec through its state machine and returns the outcome. It
// never returns early on failure: the outcome carries the reason instead.
func Ensure(ctx context.Context, spec ToolSpec, observe TransitionFunc) api.Outcome {
	start := time.Now()
	outcome := api.Outcome{
		Step:   spec.Name,
		Branch: spec.Branch,
		Kind:   api.StepInstall,
		State:  api.StateAbsent,
	}
	moveTo := func(state api.StepState) {
		if observe != nil && outcome.State != state {
			observe(spec.Name, outcome.State, state)
		}
		outcome.State = state
	}
	fail := func(kind api.ErrorKind, err error) api.Outcome {
		stepErr := api.NewStepError(kind, spec.Name, err)
		moveTo(api.StateDegraded)
		outcome.Reason = stepErr.Kind
		outcome.Detail = err.Error()
		outcome.Duration = time.Since(start)
		logging.Error("Installer", err, "Tool %s degraded (%s)", spec.Name, stepErr.Kind)
		return outcome
	}

	if spec.Applicable != nil {
		ok, err := spec.Applicable(ctx)
		if err != nil {
			return fail(api.KindInstallFailed, fmt.Errorf("applicability check failed: %w", err))
		}
		if !ok {
			moveTo(api.StateSkipped)
			outcome.Detail = "not applicable on this host"
			outcome.Duration = time.Since(start)
			logging.Debug("Installer", "Tool %s does not apply, skipping", spec.Name)
			return outcome
		}
	}

	present, err := spec.Present(ctx)
	if err != nil {
		return fail(api.KindInstallFailed, fmt.Errorf("presence check failed: %w", err))
	}

	if present {
		logging.Info("Installer", "%s is already installed", spec.Name)
	} else {
		logging.Info("Installer", "Installing %s", spec.Name)
		moveTo(api.StateInstalling)
		outcome.InstallInvoked = true
		if err := spec.Install(ctx); err != nil {
			return fail(api.KindOf(err, api.KindInstallFailed), err)
		}
	}

	if spec.Verify != nil {
		if err := spec.Verify(ctx); err != nil {
			return fail(api.KindVerifyFailed, fmt.Errorf("verification failed: %w", err))
		}
	}

	moveTo(api.StateVerified)
	if outcome.InstallInvoked {
		outcome.Detail = "installed"
	} else {
		outcome.Detail = "already installed"
	}
	outcome.Duration = time.Since(start)
	logging.Info("Installer", "%s verified", spec.Name)
	return outcome
}

// FromDefinition builds a ToolSpec whose operations evaluate def through ex.
// The boolean is false when def does not apply to the executor's platform.
func FromDefinition(def config.ToolDefinition, ex *executor.Executor) (ToolSpec, bool) {
	if !ex.Platform.Matches(def.Platforms) {
		return ToolSpec{}, false
	}

	verify := def.Verify
	if verify.IsZero() {
		verify = def.Check
	}
	actions := def.Install.For(string(ex.Platform.Family))

	spec := ToolSpec{
		Name:      def.Name,
		Branch:    def.Branch,
		DependsOn: def.DependsOn,
		Present: func(ctx context.Context) (bool, error) {
			return ex.Check(ctx, def.Check)
		},
		Install: func(ctx context.Context) error {
			if len(actions) == 0 {
				return api.NewStepError(api.KindNotFound, def.Name,
					fmt.Errorf("no install action for %s", ex.Platform.Family))
			}
			for _, a := range actions {
				if err := ex.Run(ctx, a); err != nil {
					return err
				}
			}
			return nil
		},
		Verify: func(ctx context.Context) error {
			return ex.Verify(ctx, verify)
		},
	}
	if !def.When.IsZero() {
		spec.Applicable = func(ctx context.Context) (bool, error) {
			return ex.Check(ctx, def.When)
		}
	}
	return spec, true
}
