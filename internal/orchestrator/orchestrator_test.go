package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackpilot/internal/api"
	"stackpilot/internal/dependency"
	"stackpilot/internal/installer"
)

// machine simulates the host tools are installed on.
type machine struct {
	mu        sync.Mutex
	installed map[string]bool
	failing   map[string]error
	installs  []string
}

func newMachine(installed ...string) *machine {
	m := &machine{installed: map[string]bool{}, failing: map[string]error{}}
	for _, name := range installed {
		m.installed[name] = true
	}
	return m
}

func (m *machine) tool(name string, deps ...string) installer.ToolSpec {
	return installer.ToolSpec{
		Name:      name,
		DependsOn: deps,
		Present: func(ctx context.Context) (bool, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			return m.installed[name], nil
		},
		Install: func(ctx context.Context) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.installs = append(m.installs, name)
			if err := m.failing[name]; err != nil {
				return err
			}
			m.installed[name] = true
			return nil
		},
		Verify: func(ctx context.Context) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			if !m.installed[name] {
				return errors.New("not found after install")
			}
			return nil
		},
	}
}

func (m *machine) steps() []Step {
	return []Step{
		ToolStep(m.tool("node")),
		ToolStep(m.tool("conda")),
		ToolStep(m.tool("postgres")),
		ToolStep(m.tool("ollama")),
		ToolStep(m.tool("node-deps", "node")),
		ToolStep(m.tool("python-deps", "conda")),
		ToolStep(m.tool("postgres-provision", "postgres")),
	}
}

func (m *machine) installCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.installs...)
}

func TestBootstrap_CleanMachine(t *testing.T) {
	m := newMachine()
	o := New(Config{Platform: "linux"}, m.steps())

	report, err := o.Bootstrap(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"node", "conda", "postgres", "ollama", "node-deps", "python-deps", "postgres-provision"}, m.installCalls())
	assert.True(t, report.OK())
	assert.Equal(t, 7, report.InstallCount())
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "linux", report.Platform)
	assert.Same(t, report, o.LastReport())
}

func TestBootstrap_PreinstalledMachine(t *testing.T) {
	m := newMachine("node", "conda", "postgres", "ollama", "node-deps", "python-deps", "postgres-provision")
	o := New(Config{}, m.steps())

	report, err := o.Bootstrap(context.Background())
	require.NoError(t, err)

	assert.Empty(t, m.installCalls())
	assert.Zero(t, report.InstallCount())
	for _, outcome := range report.Outcomes {
		assert.Equal(t, api.StateVerified, outcome.State, outcome.Step)
	}
}

func TestBootstrap_SecondRunInstallsNothing(t *testing.T) {
	m := newMachine()
	o := New(Config{}, m.steps())

	first, err := o.Bootstrap(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, first.InstallCount())

	second, err := o.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.InstallCount())
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestBootstrap_DatabaseFailureIsIsolated(t *testing.T) {
	m := newMachine()
	m.failing["postgres"] = api.NewStepError(api.KindInstallFailed, "postgres", errors.New("apt exited 100"))
	o := New(Config{}, m.steps())

	report, err := o.Bootstrap(context.Background())
	require.NoError(t, err)

	pg, ok := report.Get("postgres")
	require.True(t, ok)
	assert.Equal(t, api.StateDegraded, pg.State)
	assert.Equal(t, api.KindInstallFailed, pg.Reason)

	for _, name := range []string{"node", "conda", "ollama", "node-deps", "python-deps"} {
		outcome, ok := report.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, api.StateVerified, outcome.State, name)
	}

	provision, _ := report.Get("postgres-provision")
	assert.Equal(t, api.StateSkipped, provision.State)
	assert.Equal(t, api.KindDependencyFailed, provision.Reason)
	assert.NotContains(t, m.installCalls(), "postgres-provision")

	assert.Len(t, report.Degraded(), 2)
	assert.False(t, report.OK())
}

func TestBootstrap_DependencyFailurePropagates(t *testing.T) {
	m := newMachine()
	m.failing["a"] = errors.New("boom")
	o := New(Config{}, []Step{
		ToolStep(m.tool("a")),
		ToolStep(m.tool("b", "a")),
		ToolStep(m.tool("c", "b")),
		ToolStep(m.tool("d")),
	})

	report, err := o.Bootstrap(context.Background())
	require.NoError(t, err)

	c, _ := report.Get("c")
	assert.Equal(t, api.KindDependencyFailed, c.Reason)
	assert.Contains(t, c.Detail, "b")
	d, _ := report.Get("d")
	assert.Equal(t, api.StateVerified, d.State)
}

func TestBootstrap_NotApplicableDoesNotBlockDependents(t *testing.T) {
	m := newMachine()
	repair := m.tool("system-packages")
	repair.Applicable = func(context.Context) (bool, error) { return false, nil }
	o := New(Config{}, []Step{ToolStep(repair), ToolStep(m.tool("postgres", "system-packages"))})

	report, err := o.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK())
	pg, _ := report.Get("postgres")
	assert.Equal(t, api.StateVerified, pg.State)
}

func TestBootstrap_OrdersByDependencies(t *testing.T) {
	m := newMachine()
	o := New(Config{}, []Step{
		ToolStep(m.tool("python-deps", "conda-env")),
		ToolStep(m.tool("conda")),
		ToolStep(m.tool("conda-env", "conda")),
	})

	_, err := o.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"conda", "conda-env", "python-deps"}, m.installCalls())
}

func TestBootstrap_Cycle(t *testing.T) {
	m := newMachine()
	o := New(Config{}, []Step{ToolStep(m.tool("a", "b")), ToolStep(m.tool("b", "a"))})

	report, err := o.Bootstrap(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)

	var cycleErr *dependency.CycleError
	assert.True(t, errors.As(err, &cycleErr))
	assert.Empty(t, m.installCalls())
}

func TestBootstrap_StepTimeout(t *testing.T) {
	slow := Step{
		Name: "slow",
		Kind: api.StepInstall,
		Run: func(ctx context.Context, _ installer.TransitionFunc) api.Outcome {
			<-ctx.Done()
			return api.FailedOutcome("slow", "", api.StepInstall, ctx.Err())
		},
	}
	m := newMachine()
	o := New(Config{StepTimeout: 20 * time.Millisecond}, []Step{slow, ToolStep(m.tool("next"))})

	report, err := o.Bootstrap(context.Background())
	require.NoError(t, err)

	outcome, _ := report.Get("slow")
	assert.Equal(t, api.KindTimedOut, outcome.Reason)
	assert.Contains(t, outcome.Detail, "step timeout")
	next, _ := report.Get("next")
	assert.Equal(t, api.StateVerified, next.State)
}

func TestBootstrap_PanicIsContained(t *testing.T) {
	m := newMachine()
	o := New(Config{}, []Step{
		{Name: "broken", Kind: api.StepConfigure, Run: func(context.Context, installer.TransitionFunc) api.Outcome {
			panic("nil map")
		}},
		ToolStep(m.tool("ollama")),
	})

	report, err := o.Bootstrap(context.Background())
	require.NoError(t, err)
	broken, _ := report.Get("broken")
	assert.Equal(t, api.StateDegraded, broken.State)
	ollama, _ := report.Get("ollama")
	assert.Equal(t, api.StateVerified, ollama.State)
}

func TestBootstrap_Cancelled(t *testing.T) {
	m := newMachine()
	ctx, cancel := context.WithCancel(context.Background())
	first := m.tool("node")
	install := first.Install
	first.Install = func(ctx context.Context) error {
		defer cancel()
		return install(ctx)
	}
	o := New(Config{}, []Step{ToolStep(first), ToolStep(m.tool("conda"))})

	report, err := o.Bootstrap(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Len(t, report.Outcomes, 1)
	assert.Nil(t, o.LastReport(), "cancelled runs are not kept")
}

func TestBootstrap_ConcurrentCallsShareRun(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var runs int
	var mu sync.Mutex
	o := New(Config{}, []Step{{
		Name: "gate",
		Kind: api.StepInstall,
		Run: func(ctx context.Context, _ installer.TransitionFunc) api.Outcome {
			mu.Lock()
			runs++
			mu.Unlock()
			close(started)
			<-release
			return api.Outcome{Step: "gate", Kind: api.StepInstall, State: api.StateVerified}
		},
	}})

	var wg sync.WaitGroup
	reports := make([]*api.Report, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		reports[0], _ = o.Bootstrap(context.Background())
	}()
	<-started
	wg.Add(1)
	go func() {
		defer wg.Done()
		reports[1], _ = o.Bootstrap(context.Background())
	}()
	// Give the second call time to join the in-flight run.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, runs)
	assert.Same(t, reports[0], reports[1])
}

func TestCheck_HasNoSideEffects(t *testing.T) {
	m := newMachine("node", "ollama")
	o := New(Config{}, m.steps())

	report, err := o.Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, m.installCalls())

	node, _ := report.Get("node")
	assert.Equal(t, api.StateVerified, node.State)
	pg, _ := report.Get("postgres")
	assert.Equal(t, api.StateAbsent, pg.State)
	assert.Equal(t, api.KindNotFound, pg.Reason)
	provision, _ := report.Get("postgres-provision")
	assert.Equal(t, api.StateAbsent, provision.State, "check mode does not skip dependents")
	assert.Nil(t, o.LastReport())
}

func TestCheck_PanicIsContained(t *testing.T) {
	m := newMachine("ollama")
	o := New(Config{}, []Step{
		{Name: "broken", Kind: api.StepConfigure, Check: func(context.Context) api.Outcome {
			panic("nil map")
		}},
		ToolStep(m.tool("ollama")),
	})

	report, err := o.Check(context.Background())
	require.NoError(t, err)
	broken, _ := report.Get("broken")
	assert.Equal(t, api.StateDegraded, broken.State)
	assert.Contains(t, broken.Detail, "nil map")
	ollama, _ := report.Get("ollama")
	assert.Equal(t, api.StateVerified, ollama.State)
}

func TestCheck_StepTimeout(t *testing.T) {
	slow := Step{
		Name: "slow",
		Kind: api.StepConfigure,
		Check: func(ctx context.Context) api.Outcome {
			<-ctx.Done()
			return api.FailedOutcome("slow", "", api.StepConfigure, ctx.Err())
		},
	}
	m := newMachine("next")
	o := New(Config{StepTimeout: 20 * time.Millisecond}, []Step{slow, ToolStep(m.tool("next"))})

	done := make(chan struct{})
	var report *api.Report
	var err error
	go func() {
		defer close(done)
		report, err = o.Check(context.Background())
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("check did not honour the step timeout")
	}
	require.NoError(t, err)

	outcome, _ := report.Get("slow")
	assert.Equal(t, api.KindTimedOut, outcome.Reason)
	assert.Contains(t, outcome.Detail, "step timeout")
	next, _ := report.Get("next")
	assert.Equal(t, api.StateVerified, next.State)
}

func TestSubscribeToProgress(t *testing.T) {
	m := newMachine("node")
	o := New(Config{}, []Step{ToolStep(m.tool("node")), ToolStep(m.tool("ollama"))})
	events := o.SubscribeToProgress()

	report, err := o.Bootstrap(context.Background())
	require.NoError(t, err)

	var got []ProgressEvent
	for len(events) > 0 {
		got = append(got, <-events)
	}
	require.NotEmpty(t, got)
	assert.Equal(t, EventRunStarted, got[0].Type)
	assert.Equal(t, EventRunFinished, got[len(got)-1].Type)

	var finished, installing int
	for _, e := range got {
		assert.Equal(t, report.RunID, e.RunID)
		switch {
		case e.Type == EventStepFinished:
			finished++
			require.NotNil(t, e.Outcome)
			assert.Equal(t, 2, e.Total)
		case e.Type == EventStepState && e.State == api.StateInstalling:
			installing++
			assert.Equal(t, "ollama", e.Step)
		}
	}
	assert.Equal(t, 2, finished)
	assert.Equal(t, 1, installing)
}

func TestPublish_DoesNotBlock(t *testing.T) {
	o := New(Config{}, nil)
	ch := o.SubscribeToProgress()
	for i := 0; i < 150; i++ {
		o.publish(ProgressEvent{Type: EventStepStarted})
	}
	assert.Len(t, ch, 100)
}
