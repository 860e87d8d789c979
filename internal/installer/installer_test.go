package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackpilot/internal/api"
	"stackpilot/internal/config"
	"stackpilot/internal/executor"
	"stackpilot/internal/platform"
	"stackpilot/internal/system"
	"stackpilot/internal/system/systemtest"
)

type fakeTool struct {
	present   bool
	installed bool

	presentErr error
	installErr error
	verifyErr  error

	installCalls int
}

func (f *fakeTool) spec(name string) ToolSpec {
	return ToolSpec{
		Name:   name,
		Branch: "test",
		Present: func(ctx context.Context) (bool, error) {
			return f.present || f.installed, f.presentErr
		},
		Install: func(ctx context.Context) error {
			f.installCalls++
			if f.installErr != nil {
				return f.installErr
			}
			f.installed = true
			return nil
		},
		Verify: func(ctx context.Context) error {
			return f.verifyErr
		},
	}
}

func TestEnsure_PresentNeverInstalls(t *testing.T) {
	tool := &fakeTool{present: true}

	var transitions []string
	outcome := Ensure(context.Background(), tool.spec("node"), func(name string, from, to api.StepState) {
		transitions = append(transitions, fmt.Sprintf("%s->%s", from, to))
	})

	assert.Equal(t, api.StateVerified, outcome.State)
	assert.False(t, outcome.InstallInvoked)
	assert.Zero(t, tool.installCalls)
	assert.Equal(t, []string{"absent->verified"}, transitions)
	assert.Equal(t, api.StepInstall, outcome.Kind)
}

func TestEnsure_InstallsWhenAbsent(t *testing.T) {
	tool := &fakeTool{}

	var transitions []string
	outcome := Ensure(context.Background(), tool.spec("node"), func(name string, from, to api.StepState) {
		transitions = append(transitions, fmt.Sprintf("%s->%s", from, to))
	})

	assert.Equal(t, api.StateVerified, outcome.State)
	assert.True(t, outcome.InstallInvoked)
	assert.Equal(t, 1, tool.installCalls)
	assert.Equal(t, []string{"absent->installing", "installing->verified"}, transitions)

	second := Ensure(context.Background(), tool.spec("node"), nil)
	assert.False(t, second.InstallInvoked, "a second run finds the tool present")
	assert.Equal(t, 1, tool.installCalls)
}

func TestEnsure_Degraded(t *testing.T) {
	tests := []struct {
		name       string
		tool       *fakeTool
		wantReason api.ErrorKind
	}{
		{
			name:       "install fails",
			tool:       &fakeTool{installErr: &system.ExitError{Command: "apt install -y postgresql", ExitCode: 100}},
			wantReason: api.KindInstallFailed,
		},
		{
			name:       "install times out",
			tool:       &fakeTool{installErr: fmt.Errorf("command timed out: %w", context.DeadlineExceeded)},
			wantReason: api.KindTimedOut,
		},
		{
			name:       "privileges refused",
			tool:       &fakeTool{installErr: fmt.Errorf("sudo: %w", api.ErrPermissionDenied)},
			wantReason: api.KindPermissionDenied,
		},
		{
			name:       "verification fails after install",
			tool:       &fakeTool{verifyErr: errors.New("command psql not found")},
			wantReason: api.KindVerifyFailed,
		},
		{
			name:       "verification fails for a present tool",
			tool:       &fakeTool{present: true, verifyErr: errors.New("version 16.20.2 does not satisfy >= 18")},
			wantReason: api.KindVerifyFailed,
		},
		{
			name:       "presence check cannot be evaluated",
			tool:       &fakeTool{presentErr: errors.New("template: bad")},
			wantReason: api.KindInstallFailed,
		},
		{
			name:       "no installer for the platform",
			tool:       &fakeTool{installErr: api.NewStepError(api.KindNotFound, "x", errors.New("no install action for windows"))},
			wantReason: api.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := Ensure(context.Background(), tt.tool.spec("postgres"), nil)
			assert.Equal(t, api.StateDegraded, outcome.State)
			assert.Equal(t, tt.wantReason, outcome.Reason)
			assert.NotEmpty(t, outcome.Detail)
			assert.True(t, outcome.Degraded())
		})
	}
}

func TestEnsure_NotApplicable(t *testing.T) {
	tool := &fakeTool{}
	spec := tool.spec("system-packages")
	spec.Applicable = func(ctx context.Context) (bool, error) { return false, nil }

	outcome := Ensure(context.Background(), spec, nil)
	assert.Equal(t, api.StateSkipped, outcome.State)
	assert.False(t, outcome.Degraded())
	assert.Zero(t, tool.installCalls)
}

func newExecutor(t *testing.T, goos string, runner system.Runner) (*executor.Executor, string) {
	t.Helper()
	home := t.TempDir()
	bin := filepath.Join(home, "bin")
	require.NoError(t, os.MkdirAll(bin, 0o755))
	info := platform.Resolve(platform.Overrides{
		GOOS:    goos,
		HomeDir: home,
		Getenv:  func(k string) string { return map[string]string{"PATH": bin}[k] },
	})
	renderer := config.NewRenderer(config.NewTemplateData(info, config.DatabaseConfig{}))
	return executor.New(info, runner, &systemtest.FakeElevator{}, systemtest.NewFakeProcesses(), renderer), bin
}

func TestFromDefinition(t *testing.T) {
	runner := systemtest.NewFakeRunner()
	ex, bin := newExecutor(t, "linux", runner)

	runner.On("install ollama", systemtest.Response{Do: func(c system.Command, _ []byte) {
		_ = os.WriteFile(filepath.Join(bin, "ollama"), []byte("#!/bin/sh\n"), 0o755)
	}})

	def := config.ToolDefinition{
		Name:   "ollama",
		Branch: "inference",
		Check:  config.CheckDefinition{Command: "ollama"},
		Install: config.PlatformActions{
			config.PlatformLinux:   {{Shell: "install ollama"}},
			config.PlatformWindows: {{Shell: "winget ollama"}},
		},
	}
	spec, ok := FromDefinition(def, ex)
	require.True(t, ok)

	outcome := Ensure(context.Background(), spec, nil)
	assert.Equal(t, api.StateVerified, outcome.State, outcome.Detail)
	assert.True(t, outcome.InstallInvoked)
	assert.Equal(t, 1, runner.Count("install ollama"))
	assert.Zero(t, runner.Count("winget"))

	outcome = Ensure(context.Background(), spec, nil)
	assert.False(t, outcome.InstallInvoked)
	assert.Equal(t, 1, runner.Count("install ollama"))
}

func TestFromDefinition_PlatformFilter(t *testing.T) {
	ex, _ := newExecutor(t, "darwin", systemtest.NewFakeRunner())
	_, ok := FromDefinition(config.ToolDefinition{Name: "system-packages", Platforms: []string{"linux"}}, ex)
	assert.False(t, ok)
}

func TestFromDefinition_NoActionForPlatform(t *testing.T) {
	ex, _ := newExecutor(t, "darwin", systemtest.NewFakeRunner())
	spec, ok := FromDefinition(config.ToolDefinition{
		Name:    "postgres",
		Check:   config.CheckDefinition{Command: "psql"},
		Install: config.PlatformActions{config.PlatformLinux: {{Shell: "apt install -y postgresql"}}},
	}, ex)
	require.True(t, ok)

	outcome := Ensure(context.Background(), spec, nil)
	assert.Equal(t, api.StateDegraded, outcome.State)
	assert.Equal(t, api.KindNotFound, outcome.Reason)
}

func TestFromDefinition_WhenGate(t *testing.T) {
	runner := systemtest.NewFakeRunner()
	ex, _ := newExecutor(t, "linux", runner)
	spec, ok := FromDefinition(config.ToolDefinition{
		Name:    "system-packages",
		When:    config.CheckDefinition{Command: "dpkg"},
		Check:   config.CheckDefinition{Shell: "dpkg --audit", EmptyOutput: true},
		Install: config.PlatformActions{config.PlatformLinux: {{Shell: "apt --fix-broken install -y", Privileged: true}}},
	}, ex)
	require.True(t, ok)

	outcome := Ensure(context.Background(), spec, nil)
	assert.Equal(t, api.StateSkipped, outcome.State)
	assert.Empty(t, runner.Calls())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := (&fakeTool{}).spec("a")
	b := (&fakeTool{}).spec("b")

	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))
	assert.Error(t, r.Register(a))
	assert.Error(t, r.Register(ToolSpec{}))
	assert.Error(t, r.Register(ToolSpec{Name: "c"}))

	got, err := r.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Name)

	_, err = r.Get("missing")
	assert.True(t, api.IsNotFound(err))

	var names []string
	for _, s := range r.List() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestBuildRegistry_DefaultsOnLinux(t *testing.T) {
	ex, _ := newExecutor(t, "linux", systemtest.NewFakeRunner())
	r, err := BuildRegistry(config.GetDefaultConfig().Tools, ex)
	require.NoError(t, err)
	assert.Len(t, r.List(), 7)

	exMac, _ := newExecutor(t, "darwin", systemtest.NewFakeRunner())
	r, err = BuildRegistry(config.GetDefaultConfig().Tools, exMac)
	require.NoError(t, err)
	assert.Len(t, r.List(), 6, "system package repair is linux only")
}
