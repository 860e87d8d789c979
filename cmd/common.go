package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"stackpilot/internal/api"
	"stackpilot/internal/app"
	"stackpilot/internal/config"
	"stackpilot/internal/formatting"
	"stackpilot/internal/orchestrator"
)

// DegradedError is returned by strict runs that finished with degraded
// steps. It maps to ExitCodeDegraded.
type DegradedError struct {
	Steps []string
}

func (e *DegradedError) Error() string {
	return fmt.Sprintf("%d step(s) degraded: %s", len(e.Steps), strings.Join(e.Steps, ", "))
}

// outputOptions are the flags of commands that print a report.
type outputOptions struct {
	format string
	quiet  bool
	strict bool
}

func (o *outputOptions) register(cmd *cobra.Command, strict bool) {
	cmd.Flags().StringVarP(&o.format, "output", "o", "table", "Output format (table, json, yaml)")
	cmd.Flags().BoolVarP(&o.quiet, "quiet", "q", false, "Suppress progress output")
	if strict {
		cmd.Flags().BoolVar(&o.strict, "strict", false, "Exit with code 2 when any step is degraded")
	}
}

func (o *outputOptions) formatter(cmd *cobra.Command) (formatting.Formatter, formatting.OutputFormat, error) {
	format, err := formatting.ParseFormat(o.format)
	if err != nil {
		return nil, "", err
	}
	out := cmd.OutOrStdout()
	return formatting.New(formatting.Options{
		Format: format,
		Quiet:  o.quiet,
		Color:  out == os.Stdout && os.Getenv("NO_COLOR") == "",
		Out:    out,
	}), format, nil
}

// checkStrict turns degraded steps into a DegradedError when strict mode is
// on, from the flag or from bootstrap.strict in config.yaml.
func (o *outputOptions) checkStrict(report *api.Report, configured bool) error {
	if !o.strict && !configured {
		return nil
	}
	degraded := report.Degraded()
	if len(degraded) == 0 {
		return nil
	}
	steps := make([]string, 0, len(degraded))
	for _, d := range degraded {
		steps = append(steps, d.Step)
	}
	return &DegradedError{Steps: steps}
}

// newApplication builds the application from the global flags. Configuration
// errors are expanded to their detailed form.
func newApplication(noBrowser bool) (*app.Application, error) {
	cfg := app.NewConfig(debug, configPath, logFile)
	cfg.NoBrowser = noBrowser
	application, err := app.NewApplication(cfg)
	if err != nil {
		var cfgErr config.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, errors.New(cfgErr.DetailedError())
		}
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return application, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// showProgress renders bootstrap progress in a spinner until the returned
// function is called.
func showProgress(cmd *cobra.Command, events <-chan orchestrator.ProgressEvent, enabled bool) func() {
	if !enabled {
		return func() {}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
	s.Suffix = " Preparing..."
	s.Start()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			case ev := <-events:
				var suffix string
				switch ev.Type {
				case orchestrator.EventStepStarted:
					suffix = fmt.Sprintf(" [%d/%d] %s", ev.Index, ev.Total, ev.Step)
				case orchestrator.EventStepState:
					suffix = fmt.Sprintf(" [%d/%d] %s: %s", ev.Index, ev.Total, ev.Step, ev.State)
				case orchestrator.EventRunFinished:
					suffix = " Starting services..."
				default:
					continue
				}
				s.Lock()
				s.Suffix = suffix
				s.Unlock()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
			s.Stop()
		})
	}
}
