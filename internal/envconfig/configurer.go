package envconfig

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"stackpilot/internal/api"
	"stackpilot/internal/config"
	"stackpilot/internal/executor"
	"stackpilot/pkg/logging"
)

// Configurer applies configure definitions.
type Configurer struct {
	exec  *executor.Executor
	files FileStore
}

// New creates a configurer that edits files through files.
func New(ex *executor.Executor, files FileStore) *Configurer {
	return &Configurer{exec: ex, files: files}
}

// Applies reports whether def targets the executor's platform.
func (c *Configurer) Applies(def config.ConfigureDefinition) bool {
	return c.exec.Platform.Matches(def.Platforms)
}

// Apply runs one configure step: patches first, OnChange actions when a
// patch changed something, then the guarded commands. The outcome is
// Applied when anything changed and Unchanged otherwise.
func (c *Configurer) Apply(ctx context.Context, def config.ConfigureDefinition) api.Outcome {
	start := time.Now()
	outcome := api.Outcome{
		Step:   def.Name,
		Branch: def.Branch,
		Kind:   api.StepConfigure,
	}
	fail := func(err error) api.Outcome {
		stepErr := api.NewStepError(api.KindOf(err, api.KindConfigureFailed), def.Name, err)
		outcome.State = api.StateDegraded
		outcome.Reason = stepErr.Kind
		outcome.Detail = err.Error()
		outcome.Duration = time.Since(start)
		logging.Error("Configurer", err, "Configuration step %s degraded (%s)", def.Name, stepErr.Kind)
		return outcome
	}

	if !def.When.IsZero() {
		ok, err := c.exec.Check(ctx, def.When)
		if err != nil {
			return fail(err)
		}
		if !ok {
			outcome.State = api.StateSkipped
			outcome.Detail = "not applicable on this host"
			outcome.Duration = time.Since(start)
			return outcome
		}
	}

	if def.Privileged {
		if err := c.exec.Elevate(ctx); err != nil {
			return fail(err)
		}
	}

	changedFiles := 0
	for _, pd := range def.Patches {
		patches, err := c.patches(pd)
		if err != nil {
			return fail(err)
		}
		for _, p := range patches {
			changed, err := Apply(ctx, p, c.files)
			if err != nil {
				return fail(err)
			}
			if changed {
				changedFiles++
				logging.Info("Configurer", "Updated %s", p.TargetFile)
			} else {
				logging.Debug("Configurer", "%s already up to date", p.TargetFile)
			}
		}
	}

	if changedFiles > 0 {
		for _, a := range def.OnChange {
			if err := c.exec.Run(ctx, a); err != nil {
				return fail(fmt.Errorf("after updating %d file(s): %w", changedFiles, err))
			}
		}
	}

	ran := 0
	for _, cmd := range def.Commands {
		if !c.exec.Platform.Matches(cmd.Platforms) {
			continue
		}
		if !cmd.Unless.IsZero() {
			satisfied, err := c.exec.Check(ctx, cmd.Unless)
			if err != nil {
				return fail(err)
			}
			if satisfied {
				logging.Debug("Configurer", "%s: %s already done", def.Name, commandLabel(cmd))
				continue
			}
		}
		logging.Info("Configurer", "%s: %s", def.Name, commandLabel(cmd))
		if err := c.exec.Run(ctx, cmd.ActionDefinition); err != nil {
			return fail(fmt.Errorf("%s: %w", commandLabel(cmd), err))
		}
		ran++
	}

	outcome.Duration = time.Since(start)
	if changedFiles == 0 && ran == 0 {
		outcome.State = api.StateUnchanged
		outcome.Detail = "already configured"
		return outcome
	}
	outcome.State = api.StateApplied
	outcome.Detail = fmt.Sprintf("%d file(s) changed, %d command(s) run", changedFiles, ran)
	return outcome
}

// Check reports, without side effects, whether def still has work to do.
// Commands without an unless guard are not considered.
func (c *Configurer) Check(ctx context.Context, def config.ConfigureDefinition) api.Outcome {
	start := time.Now()
	outcome := api.Outcome{
		Step:   def.Name,
		Branch: def.Branch,
		Kind:   api.StepConfigure,
		State:  api.StateUnchanged,
		Detail: "already configured",
	}
	defer func() { outcome.Duration = time.Since(start) }()

	if !def.When.IsZero() {
		if ok, err := c.exec.Check(ctx, def.When); err != nil || !ok {
			outcome.State = api.StateSkipped
			outcome.Detail = "not applicable on this host"
			return outcome
		}
	}

	var pending []string
	for _, pd := range def.Patches {
		patches, err := c.patches(pd)
		if err != nil {
			outcome.State = api.StateDegraded
			outcome.Reason = api.KindConfigureFailed
			outcome.Detail = err.Error()
			return outcome
		}
		for _, p := range patches {
			todo, err := Pending(ctx, p, c.files)
			if err != nil {
				logging.Debug("Configurer", "Cannot inspect %s: %v", p.TargetFile, err)
				pending = append(pending, p.TargetFile+" (not readable)")
				continue
			}
			if todo {
				pending = append(pending, p.TargetFile)
			}
		}
	}
	for _, cmd := range def.Commands {
		if !c.exec.Platform.Matches(cmd.Platforms) || cmd.Unless.IsZero() {
			continue
		}
		if ok, err := c.exec.Check(ctx, cmd.Unless); err != nil || !ok {
			pending = append(pending, commandLabel(cmd))
		}
	}

	if len(pending) > 0 {
		outcome.State = api.StatePending
		outcome.Detail = "pending: " + strings.Join(pending, ", ")
	}
	return outcome
}

// patches renders pd into concrete patches, one per target file.
func (c *Configurer) patches(pd config.PatchDefinition) ([]ConfigPatch, error) {
	var targets []string
	if pd.Profiles {
		targets = c.exec.Platform.ProfilePaths()
	} else {
		file, err := c.exec.Render(pd.File)
		if err != nil {
			return nil, err
		}
		targets = []string{file}
	}

	var re *regexp.Regexp
	if pd.Match != "" {
		var err error
		if re, err = regexp.Compile(pd.Match); err != nil {
			return nil, fmt.Errorf("invalid match pattern %q: %w", pd.Match, err)
		}
	}
	replacement, err := c.exec.Render(pd.Replace)
	if err != nil {
		return nil, err
	}
	block, err := c.exec.Render(pd.Append)
	if err != nil {
		return nil, err
	}
	marker, err := c.exec.Render(pd.Marker)
	if err != nil {
		return nil, err
	}

	patches := make([]ConfigPatch, 0, len(targets))
	for _, t := range targets {
		patches = append(patches, ConfigPatch{
			TargetFile:     t,
			Match:          re,
			Replacement:    replacement,
			AppendIfAbsent: block,
			Marker:         marker,
			Privileged:     pd.Privileged,
			Optional:       pd.Optional,
		})
	}
	return patches, nil
}

func commandLabel(cmd config.GuardedAction) string {
	if cmd.Name != "" {
		return cmd.Name
	}
	if cmd.Shell != "" {
		return cmd.Shell
	}
	return fmt.Sprint(cmd.Run)
}
