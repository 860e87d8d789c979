package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_NotifiesOnConfigChange(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32

	w := NewWatcher(WatcherConfig{
		ConfigPath:   dir,
		Debounce:     50 * time.Millisecond,
		PollInterval: 50 * time.Millisecond,
		OnChange:     func() { calls.Add(1) },
	})
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte("ui:\n  url: http://localhost:1\n"), 0o644))

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32

	w := NewWatcher(WatcherConfig{
		ConfigPath: dir,
		Debounce:   20 * time.Millisecond,
		OnChange:   func() { calls.Add(1) },
	})
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := NewWatcher(WatcherConfig{ConfigPath: t.TempDir()})
	require.NoError(t, w.Start())
	require.NoError(t, w.Start())
	w.Stop()
	w.Stop()
}
