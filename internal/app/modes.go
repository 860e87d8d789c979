package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stackpilot/internal/api"
	"stackpilot/internal/config"
	"stackpilot/pkg/logging"
)

// shutdownTimeout bounds the shutdown after the run was interrupted.
const shutdownTimeout = 30 * time.Second

// ReportFunc receives the reports of a run: the initial start and every
// refresh triggered by a configuration change.
type ReportFunc func(report *api.Report)

// Run executes the full lifecycle in the role of the desktop shell: start,
// open the UI, then block until interrupted, re-running the idempotent
// bootstrap and launch whenever config.yaml changes.
//
// Signal Handling:
//   - SIGINT (Ctrl+C): Triggers graceful shutdown
//   - SIGTERM: Triggers graceful shutdown
func (a *Application) Run(ctx context.Context, onReport ReportFunc) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := a.lifecycle.Start(ctx)
	if report != nil && onReport != nil {
		onReport(report)
	}
	if err != nil {
		logging.Error("Lifecycle", err, "Failed to start")
		a.shutdown()
		return err
	}

	a.openUI()

	reloads := make(chan struct{}, 1)
	if a.config.ConfigPath != "" {
		watcher := config.NewWatcher(config.WatcherConfig{
			ConfigPath: a.config.ConfigPath,
			OnChange: func() {
				select {
				case reloads <- struct{}{}:
				default:
				}
			},
		})
		if err := watcher.Start(); err != nil {
			logging.Warn("Config", "Not watching configuration for changes: %v", err)
		} else {
			defer watcher.Stop()
		}
	}

	logging.Info("CLI", "Services started. Press Ctrl+C to stop all services and exit.")
	for {
		select {
		case <-ctx.Done():
			logging.Info("CLI", "--- Shutting down services ---")
			return a.shutdown()
		case <-reloads:
			if report := a.reload(ctx); report != nil && onReport != nil {
				onReport(report)
			}
		}
	}
}

// reload applies a changed config.yaml. An invalid file keeps the current
// plan.
func (a *Application) reload(ctx context.Context) *api.Report {
	logging.Info("Config", "Configuration changed, reloading")
	stackCfg, err := config.LoadConfig(a.config.ConfigPath)
	if err != nil {
		logging.Error("Config", err, "Keeping previous configuration")
		return nil
	}
	warnDefaultPassword(stackCfg)

	plan, err := a.services.BuildPlan(stackCfg, a.config.Debug)
	if err != nil {
		logging.Error("Config", err, "Keeping previous configuration")
		return nil
	}
	a.plan = plan
	a.lifecycle.Replan(plan, stackCfg.UI.URL)

	report, err := a.lifecycle.Refresh(ctx)
	if err != nil {
		logging.Error("Lifecycle", err, "Refresh after configuration change failed")
	}
	return report
}

func (a *Application) openUI() {
	url := a.lifecycle.UIURL()
	if a.config.NoBrowser || !a.plan.Config.UI.ShouldOpenBrowser() {
		logging.Info("CLI", "UI available at %s", url)
		return
	}
	open := a.config.Dependencies.OpenBrowser
	if open == nil {
		open = OpenBrowser
	}
	if err := open(url); err != nil {
		logging.Warn("CLI", "Could not open the browser (%v); UI available at %s", err, url)
	}
}

func (a *Application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.lifecycle.Shutdown(ctx)
}
