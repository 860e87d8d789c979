package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"stackpilot/pkg/logging"
)

// DefaultDebounceInterval is the time to wait after the last file event
// before OnChange fires. Editors often write a file several times on save.
const DefaultDebounceInterval = 500 * time.Millisecond

// DefaultPollInterval is used when fsnotify is unavailable.
const DefaultPollInterval = 2 * time.Second

// WatcherConfig holds configuration for the config file watcher.
type WatcherConfig struct {
	// ConfigPath is the directory containing config.yaml.
	ConfigPath string

	// Debounce overrides DefaultDebounceInterval.
	Debounce time.Duration

	// PollInterval is the fallback polling interval when fsnotify is not available.
	PollInterval time.Duration

	// OnChange is called after config.yaml was created, written or replaced.
	OnChange func()
}

// Watcher monitors config.yaml for edits.
type Watcher struct {
	mu      sync.Mutex
	config  WatcherConfig
	fs      *fsnotify.Watcher
	stopCh  chan struct{}
	running bool
	lastMod time.Time

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher creates a watcher; call Start to begin watching.
func NewWatcher(config WatcherConfig) *Watcher {
	if config.Debounce == 0 {
		config.Debounce = DefaultDebounceInterval
	}
	if config.PollInterval == 0 {
		config.PollInterval = DefaultPollInterval
	}
	return &Watcher{config: config}
}

// Start begins watching. The directory is watched rather than the file so
// atomic replace-on-save keeps being observed.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	w.stopCh = make(chan struct{})
	w.running = true
	w.lastMod = w.modTime()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("ConfigWatcher", "fsnotify not available, falling back to polling: %v", err)
		go w.poll(w.stopCh)
		return nil
	}
	if err := watcher.Add(w.config.ConfigPath); err != nil {
		logging.Warn("ConfigWatcher", "Failed to watch directory %s, falling back to polling: %v", w.config.ConfigPath, err)
		watcher.Close()
		go w.poll(w.stopCh)
		return nil
	}

	w.fs = watcher
	go w.processEvents(w.stopCh, watcher.Events, watcher.Errors)

	logging.Info("ConfigWatcher", "Watching %s for configuration changes", w.config.ConfigPath)
	return nil
}

// Stop stops watching and cancels a pending notification.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.running = false
	close(w.stopCh)
	if w.fs != nil {
		w.fs.Close()
		w.fs = nil
	}

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceMu.Unlock()
}

func (w *Watcher) processEvents(stopCh <-chan struct{}, eventsCh <-chan fsnotify.Event, errorsCh <-chan error) {
	for {
		select {
		case <-stopCh:
			return
		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFileName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logging.Debug("ConfigWatcher", "Configuration file changed: %s (%s)", event.Name, event.Op)
			w.triggerDebounced()
		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			logging.Error("ConfigWatcher", err, "fsnotify error")
		}
	}
}

func (w *Watcher) poll(stopCh <-chan struct{}) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			mod := w.modTime()
			w.mu.Lock()
			changed := !mod.Equal(w.lastMod)
			w.lastMod = mod
			w.mu.Unlock()
			if changed {
				w.triggerDebounced()
			}
		}
	}
}

func (w *Watcher) modTime() time.Time {
	st, err := os.Stat(ConfigFilePath(w.config.ConfigPath))
	if err != nil {
		return time.Time{}
	}
	return st.ModTime()
}

func (w *Watcher) triggerDebounced() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.config.Debounce, func() {
		w.mu.Lock()
		running := w.running
		callback := w.config.OnChange
		w.mu.Unlock()

		if running && callback != nil {
			callback()
		}
	})
}
