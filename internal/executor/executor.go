package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-version"

	"stackpilot/internal/api"
	"stackpilot/internal/config"
	"stackpilot/internal/platform"
	"stackpilot/internal/system"
	"stackpilot/pkg/logging"
)

// probeTimeout bounds a single check command.
const probeTimeout = 2 * time.Minute

// UnitChecker reports whether a systemd unit is active.
type UnitChecker func(ctx context.Context, unit string) (bool, error)

// Executor runs check and action definitions.
type Executor struct {
	Platform   platform.Info
	Runner     system.Runner
	Elevator   system.Elevator
	Processes  system.ProcessRegistry
	Renderer   *config.Renderer
	UnitActive UnitChecker

	// Stream, when set, receives the output of actions while they run.
	Stream io.Writer
}

// New creates an executor using the host's systemd for unit checks.
func New(info platform.Info, runner system.Runner, elevator system.Elevator, processes system.ProcessRegistry, renderer *config.Renderer) *Executor {
	return &Executor{
		Platform:   info,
		Runner:     runner,
		Elevator:   elevator,
		Processes:  processes,
		Renderer:   renderer,
		UnitActive: system.UnitActive,
	}
}

// Render renders a definition string.
func (e *Executor) Render(s string) (string, error) {
	return e.Renderer.Render(s)
}

// Check evaluates def. A zero definition passes.
func (e *Executor) Check(ctx context.Context, def config.CheckDefinition) (bool, error) {
	reason, err := e.evaluate(ctx, def)
	if err != nil {
		return false, err
	}
	return reason == "", nil
}

// Verify evaluates def and returns an error describing the first probe that
// failed.
func (e *Executor) Verify(ctx context.Context, def config.CheckDefinition) error {
	reason, err := e.evaluate(ctx, def)
	if err != nil {
		return err
	}
	if reason != "" {
		return errors.New(reason)
	}
	return nil
}

// evaluate returns an empty reason when every populated probe of def holds.
func (e *Executor) evaluate(ctx context.Context, def config.CheckDefinition) (string, error) {
	if def.Command != "" {
		cmd, err := e.Render(def.Command)
		if err != nil {
			return "", err
		}
		if !system.Exists(e.Platform, cmd) {
			return fmt.Sprintf("command %s not found", cmd), nil
		}
	}

	if def.Path != "" {
		path, err := e.Render(def.Path)
		if err != nil {
			return "", err
		}
		if !system.PathExists(path) {
			return fmt.Sprintf("path %s does not exist", path), nil
		}
	}

	if def.Shell != "" {
		reason, err := e.evaluateShell(ctx, def)
		if err != nil || reason != "" {
			return reason, err
		}
	}

	if def.Version != "" {
		reason, err := e.evaluateVersion(ctx, def)
		if err != nil || reason != "" {
			return reason, err
		}
	}

	if def.Unit != "" || def.Process != "" {
		if !e.serviceActive(ctx, def) {
			name := def.Unit
			if name == "" {
				name = def.Process
			}
			return fmt.Sprintf("%s is not running", name), nil
		}
	}

	return "", nil
}

func (e *Executor) evaluateShell(ctx context.Context, def config.CheckDefinition) (string, error) {
	script, err := e.Render(def.Shell)
	if err != nil {
		return "", err
	}
	env, err := e.Renderer.RenderAll(def.Env)
	if err != nil {
		return "", err
	}

	res, runErr := e.Runner.Run(ctx, system.Command{Shell: script, Env: env, Timeout: probeTimeout})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if runErr != nil {
		logging.Debug("Executor", "Probe %q failed: %v", script, runErr)
		return fmt.Sprintf("%q failed", script), nil
	}

	out := res.Output()
	if def.EmptyOutput && out != "" {
		return fmt.Sprintf("%q reported: %s", script, firstLine(out)), nil
	}
	if def.Match != "" {
		re, err := regexp.Compile(def.Match)
		if err != nil {
			return "", fmt.Errorf("invalid match pattern %q: %w", def.Match, err)
		}
		if !re.MatchString(out) {
			return fmt.Sprintf("%q output does not match %s", script, def.Match), nil
		}
	}
	return "", nil
}

func (e *Executor) evaluateVersion(ctx context.Context, def config.CheckDefinition) (string, error) {
	script, err := e.Render(def.Version)
	if err != nil {
		return "", err
	}
	env, err := e.Renderer.RenderAll(def.Env)
	if err != nil {
		return "", err
	}

	res, runErr := e.Runner.Run(ctx, system.Command{Shell: script, Env: env, Timeout: probeTimeout})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if runErr != nil {
		return fmt.Sprintf("%q failed: %v", script, runErr), nil
	}
	if def.MinVersion == "" {
		return "", nil
	}

	constraint, err := version.NewConstraint(def.MinVersion)
	if err != nil {
		return "", fmt.Errorf("invalid version constraint %q: %w", def.MinVersion, err)
	}
	v, ok := ParseVersion(res.Output())
	if !ok {
		return fmt.Sprintf("no version number in output of %q", script), nil
	}
	if !constraint.Check(v) {
		return fmt.Sprintf("version %s does not satisfy %s", v, def.MinVersion), nil
	}
	return "", nil
}

// serviceActive asks systemd first when a unit is named, falling back to the
// process table when systemd cannot be queried.
func (e *Executor) serviceActive(ctx context.Context, def config.CheckDefinition) bool {
	if def.Unit != "" && e.UnitActive != nil {
		active, err := e.UnitActive(ctx, def.Unit)
		if err == nil {
			return active
		}
		logging.Debug("Executor", "Cannot query unit %s: %v", def.Unit, err)
	}
	if def.Process == "" {
		return false
	}
	pattern, err := e.Render(def.Process)
	if err != nil {
		return false
	}
	return e.Processes.IsRunning(ctx, pattern)
}

var versionPattern = regexp.MustCompile(`v?\d+(\.\d+)+|v?\d+`)

// ParseVersion extracts the first version number from tool output such as
// "v18.20.4" or "psql (PostgreSQL) 16.2".
func ParseVersion(out string) (*version.Version, bool) {
	for _, m := range versionPattern.FindAllString(out, -1) {
		if v, err := version.NewVersion(m); err == nil {
			return v, true
		}
	}
	return nil, false
}

// Run executes an action definition. Privileged actions first obtain
// credentials from the Elevator; a refusal is returned unwrapped so callers
// classify it as PermissionDenied.
func (e *Executor) Run(ctx context.Context, def config.ActionDefinition) error {
	cmd, err := e.command(def)
	if err != nil {
		return err
	}
	if def.Privileged {
		if err := e.Elevate(ctx); err != nil {
			return err
		}
	}

	logging.Info("Executor", "Running %s", cmd)
	if _, err := e.Runner.Run(ctx, cmd); err != nil {
		return err
	}
	return nil
}

// Elevate obtains credentials for privileged commands.
func (e *Executor) Elevate(ctx context.Context) error {
	if e.Elevator == nil {
		return nil
	}
	if err := e.Elevator.Ensure(ctx); err != nil {
		return api.NewStepError(api.KindPermissionDenied, "elevate", err)
	}
	return nil
}

func (e *Executor) command(def config.ActionDefinition) (system.Command, error) {
	shell, err := e.Render(def.Shell)
	if err != nil {
		return system.Command{}, err
	}
	argv, err := e.Renderer.RenderAll(def.Run)
	if err != nil {
		return system.Command{}, err
	}
	dir, err := e.Render(def.Dir)
	if err != nil {
		return system.Command{}, err
	}
	env, err := e.Renderer.RenderAll(def.Env)
	if err != nil {
		return system.Command{}, err
	}
	return system.Command{
		Shell:      shell,
		Argv:       argv,
		Privileged: def.Privileged,
		Dir:        dir,
		Env:        env,
		Timeout:    def.Timeout.Std(),
		Stream:     e.Stream,
	}, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
