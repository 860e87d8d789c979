//go:build !windows

package services

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackpilot/internal/platform"
)

// TestHelperProcess is not a real test; it is the service spawned by the
// spawner tests.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		os.Exit(2)
	}
	switch args[1] {
	case "serve":
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGTERM)
		fmt.Println("listening")
		<-sigs
		fmt.Println("terminated")
		os.Exit(0)
	case "stubborn":
		signal.Ignore(syscall.SIGTERM)
		fmt.Println("ignoring SIGTERM")
		time.Sleep(time.Minute)
	}
	os.Exit(0)
}

func helperSpec(mode string) Spec {
	return Spec{
		Name:         "helper-" + mode,
		MatchPattern: "TestHelperProcess",
		Command:      []string{os.Args[0], "-test.run=TestHelperProcess", "--", mode},
		Env:          []string{"GO_WANT_HELPER_PROCESS=1"},
	}
}

func newTestSpawner(t *testing.T) *ExecSpawner {
	t.Helper()
	return NewExecSpawner(platform.Resolve(platform.Overrides{GOOS: runtime.GOOS, HomeDir: t.TempDir()}))
}

func waitDone(t *testing.T, h Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("process did not exit")
	}
}

func TestExecSpawner_TerminateGroup(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "helper.log")
	h, err := newTestSpawner(t).Spawn(context.Background(), helperSpec("serve"), logPath)
	require.NoError(t, err)

	pgid, err := syscall.Getpgid(h.PID())
	require.NoError(t, err)
	assert.Equal(t, h.PID(), pgid, "service leads its own process group")

	// Give the helper time to install its signal handler.
	require.Eventually(t, func() bool {
		data, _ := os.ReadFile(logPath)
		return len(data) > 0
	}, 10*time.Second, 20*time.Millisecond)

	require.NoError(t, h.Terminate())
	waitDone(t, h)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "listening")
	assert.Contains(t, string(data), "terminated")
}

func TestExecSpawner_Kill(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "helper.log")
	h, err := newTestSpawner(t).Spawn(context.Background(), helperSpec("stubborn"), logPath)
	require.NoError(t, err)

	require.NoError(t, h.Kill())
	waitDone(t, h)
}

func TestExecSpawner_OutlivesContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h, err := newTestSpawner(t).Spawn(ctx, helperSpec("serve"), filepath.Join(t.TempDir(), "helper.log"))
	require.NoError(t, err)
	cancel()

	select {
	case <-h.Done():
		t.Fatal("service exited with the spawning context")
	case <-time.After(100 * time.Millisecond):
	}
	require.NoError(t, h.Kill())
	waitDone(t, h)
}

func TestExecSpawner_MissingExecutable(t *testing.T) {
	_, err := newTestSpawner(t).Spawn(context.Background(), Spec{Name: "x", Command: []string{"definitely-not-a-real-binary-xyz"}}, filepath.Join(t.TempDir(), "x.log"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
