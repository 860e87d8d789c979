package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackpilot/internal/api"
	"stackpilot/internal/config"
	"stackpilot/internal/platform"
	"stackpilot/internal/system"
	"stackpilot/internal/system/systemtest"
)

type fixture struct {
	home     string
	runner   *systemtest.FakeRunner
	procs    *systemtest.FakeProcesses
	elevator *systemtest.FakeElevator
	exec     *Executor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	home := t.TempDir()
	bin := filepath.Join(home, "bin")
	require.NoError(t, os.MkdirAll(bin, 0o755))

	info := platform.Resolve(platform.Overrides{
		GOOS:    "linux",
		HomeDir: home,
		Getenv:  func(k string) string { return map[string]string{"PATH": bin}[k] },
	})
	f := &fixture{
		home:     home,
		runner:   systemtest.NewFakeRunner(),
		procs:    systemtest.NewFakeProcesses(),
		elevator: &systemtest.FakeElevator{},
	}
	renderer := config.NewRenderer(config.NewTemplateData(info, config.DatabaseConfig{Password: "pw"}))
	f.exec = New(info, f.runner, f.elevator, f.procs, renderer)
	f.exec.UnitActive = func(ctx context.Context, unit string) (bool, error) {
		return false, errors.ErrUnsupported
	}
	return f
}

func (f *fixture) installBinary(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.home, "bin", name), []byte("#!/bin/sh\n"), 0o755))
}

func TestCheck_ZeroDefinitionPasses(t *testing.T) {
	f := newFixture(t)
	ok, err := f.exec.Check(context.Background(), config.CheckDefinition{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheck_Command(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.exec.Check(ctx, config.CheckDefinition{Command: "psql"})
	require.NoError(t, err)
	assert.False(t, ok)

	f.installBinary(t, "psql")
	ok, err = f.exec.Check(ctx, config.CheckDefinition{Command: "psql"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, f.runner.Calls(), "command checks never spawn processes")
}

func TestCheck_PathIsRendered(t *testing.T) {
	f := newFixture(t)
	ok, err := f.exec.Check(context.Background(), config.CheckDefinition{Path: "{{ .Home }}/bin"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.exec.Check(context.Background(), config.CheckDefinition{Path: "{{ .Home }}/nope"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheck_Shell(t *testing.T) {
	f := newFixture(t)
	f.runner.
		On("dpkg --audit", systemtest.Response{Stdout: "The following packages are only half configured"}).
		On("env list", systemtest.Response{Stdout: "base  *  /opt/conda\nmyenv    /opt/conda/envs/myenv\n"}).
		On("import fastapi", systemtest.Response{Err: errors.New("exit status 1")})
	ctx := context.Background()

	ok, err := f.exec.Check(ctx, config.CheckDefinition{Shell: "dpkg --audit", EmptyOutput: true})
	require.NoError(t, err)
	assert.False(t, ok, "non-empty audit output means broken packages")

	ok, err = f.exec.Check(ctx, config.CheckDefinition{Shell: "conda env list", Match: `(?m)^myenv\s`})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.exec.Check(ctx, config.CheckDefinition{Shell: "conda env list", Match: `(?m)^otherenv\s`})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.exec.Check(ctx, config.CheckDefinition{Shell: `python -c "import fastapi"`})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheck_ShellEnvIsRendered(t *testing.T) {
	f := newFixture(t)
	_, err := f.exec.Check(context.Background(), config.CheckDefinition{
		Shell: "psql -c 'select 1'",
		Env:   []string{"PGPASSWORD={{ .Database.Password }}"},
	})
	require.NoError(t, err)

	calls := f.runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"PGPASSWORD=pw"}, calls[0].Env)
	assert.Equal(t, probeTimeout, calls[0].Timeout)
}

func TestCheck_TemplateErrorIsReturned(t *testing.T) {
	f := newFixture(t)
	_, err := f.exec.Check(context.Background(), config.CheckDefinition{Command: "{{ .Missing }}"})
	assert.Error(t, err)
}

func TestCheck_UnitFallsBackToProcessTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	def := config.CheckDefinition{Unit: "postgresql", Process: "postgres"}

	ok, err := f.exec.Check(ctx, def)
	require.NoError(t, err)
	assert.False(t, ok)

	f.procs.Add(42, "/usr/lib/postgresql/16/bin/postgres -D /var/lib/postgresql/16/main")
	ok, err = f.exec.Check(ctx, def)
	require.NoError(t, err)
	assert.True(t, ok)

	f.exec.UnitActive = func(ctx context.Context, unit string) (bool, error) { return false, nil }
	ok, err = f.exec.Check(ctx, def)
	require.NoError(t, err)
	assert.False(t, ok, "an answer from systemd wins over the process table")
}

func TestVerify_MinVersion(t *testing.T) {
	f := newFixture(t)
	f.runner.
		On("node16", systemtest.Response{Stdout: "v16.20.2\n"}).
		On("node18", systemtest.Response{Stdout: "v18.20.4\n"}).
		On("garbage", systemtest.Response{Stdout: "no digits here"})
	ctx := context.Background()

	assert.NoError(t, f.exec.Verify(ctx, config.CheckDefinition{Version: "node18 --version", MinVersion: ">= 18"}))

	err := f.exec.Verify(ctx, config.CheckDefinition{Version: "node16 --version", MinVersion: ">= 18"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not satisfy")

	err = f.exec.Verify(ctx, config.CheckDefinition{Version: "garbage --version", MinVersion: ">= 18"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no version number")
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		out  string
		want string
	}{
		{"v18.20.4", "18.20.4"},
		{"psql (PostgreSQL) 16.2 (Ubuntu 16.2-1ubuntu4)", "16.2.0"},
		{"conda 24.1.2", "24.1.2"},
		{"ollama version is 0.3.12", "0.3.12"},
	}
	for _, tt := range tests {
		v, ok := ParseVersion(tt.out)
		require.True(t, ok, tt.out)
		assert.Equal(t, tt.want, v.String())
	}

	_, ok := ParseVersion("unknown")
	assert.False(t, ok)
}

func TestRun_RendersAndStreams(t *testing.T) {
	f := newFixture(t)
	err := f.exec.Run(context.Background(), config.ActionDefinition{
		Run: []string{"{{ .Home }}/miniconda3/bin/conda", "create", "--yes"},
		Dir: "{{ .Home }}",
	})
	require.NoError(t, err)

	calls := f.runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, filepath.Join(f.home, "miniconda3")+"/bin/conda", calls[0].Argv[0])
	assert.Equal(t, f.home, calls[0].Dir)
	assert.Zero(t, f.elevator.Calls())
}

func TestRun_PrivilegedAsksForCredentialsFirst(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.exec.Run(context.Background(), config.ActionDefinition{Shell: "apt install -y postgresql", Privileged: true}))
	assert.Equal(t, 1, f.elevator.Calls())
	require.Len(t, f.runner.Calls(), 1)
	assert.True(t, f.runner.Calls()[0].Privileged)
}

func TestRun_RefusedElevationIsPermissionDenied(t *testing.T) {
	f := newFixture(t)
	f.elevator.Err = api.ErrPermissionDenied

	err := f.exec.Run(context.Background(), config.ActionDefinition{Shell: "apt install -y postgresql", Privileged: true})
	require.Error(t, err)
	assert.Equal(t, api.KindPermissionDenied, api.KindOf(err))
	assert.Empty(t, f.runner.Calls(), "nothing runs without credentials")
}

func TestRun_FailurePropagates(t *testing.T) {
	f := newFixture(t)
	f.runner.On("curl", systemtest.Response{Err: &system.ExitError{Command: "curl", ExitCode: 22}})

	err := f.exec.Run(context.Background(), config.ActionDefinition{Shell: "curl -fsSL https://ollama.com/install.sh | sh"})
	var exitErr *system.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 22, exitErr.ExitCode)
}
