package orchestrator

import (
	"context"
	"time"

	"stackpilot/internal/api"
	"stackpilot/internal/config"
	"stackpilot/internal/envconfig"
	"stackpilot/internal/installer"
)

// ToolStep wraps a tool spec as a bootstrap step.
func ToolStep(spec installer.ToolSpec) Step {
	return Step{
		Name:      spec.Name,
		Branch:    spec.Branch,
		Kind:      api.StepInstall,
		DependsOn: spec.DependsOn,
		Run: func(ctx context.Context, observe installer.TransitionFunc) api.Outcome {
			return installer.Ensure(ctx, spec, observe)
		},
		Check: func(ctx context.Context) api.Outcome {
			return checkTool(ctx, spec)
		},
	}
}

// checkTool reports presence only; nothing is installed or verified.
func checkTool(ctx context.Context, spec installer.ToolSpec) api.Outcome {
	start := time.Now()
	outcome := api.Outcome{Step: spec.Name, Branch: spec.Branch, Kind: api.StepInstall}
	defer func() { outcome.Duration = time.Since(start) }()

	if spec.Applicable != nil {
		if ok, err := spec.Applicable(ctx); err == nil && !ok {
			outcome.State = api.StateSkipped
			outcome.Detail = "not applicable on this host"
			return outcome
		}
	}
	present, err := spec.Present(ctx)
	switch {
	case err != nil:
		outcome.State = api.StateAbsent
		outcome.Reason = api.KindNotFound
		outcome.Detail = err.Error()
	case present:
		outcome.State = api.StateVerified
		outcome.Detail = "present"
	default:
		outcome.State = api.StateAbsent
		outcome.Reason = api.KindNotFound
		outcome.Detail = "not installed"
	}
	return outcome
}

// ConfigureStep wraps a configure definition as a bootstrap step.
func ConfigureStep(c *envconfig.Configurer, def config.ConfigureDefinition) Step {
	return Step{
		Name:      def.Name,
		Branch:    def.Branch,
		Kind:      api.StepConfigure,
		DependsOn: def.DependsOn,
		Run: func(ctx context.Context, _ installer.TransitionFunc) api.Outcome {
			return c.Apply(ctx, def)
		},
		Check: func(ctx context.Context) api.Outcome {
			return c.Check(ctx, def)
		},
	}
}

// BuildSteps returns the tool steps followed by the configure steps that
// apply to the configurer's platform.
func BuildSteps(tools *installer.Registry, c *envconfig.Configurer, defs []config.ConfigureDefinition) []Step {
	specs := tools.List()
	steps := make([]Step, 0, len(specs)+len(defs))
	for _, spec := range specs {
		steps = append(steps, ToolStep(spec))
	}
	for _, def := range defs {
		if c.Applies(def) {
			steps = append(steps, ConfigureStep(c, def))
		}
	}
	return steps
}
