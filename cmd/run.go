package cmd

import (
	"sync"

	"github.com/spf13/cobra"

	"stackpilot/internal/api"
	"stackpilot/internal/formatting"
	"stackpilot/pkg/logging"
)

func newRunCmd() *cobra.Command {
	opts := &outputOptions{}
	var noBrowser bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Bootstrap, launch the backend services and open the UI",
		Long: `Runs the full launcher lifecycle:

  1. Bootstrap every dependency (see 'stackpilot bootstrap')
  2. Launch the backend services; leave already-running ones untouched
  3. Wait for readiness and open the UI in the default browser
  4. Keep running until interrupted, then stop the services it started

Services that were already running before stackpilot started are left
alone on shutdown. While running, changes to config.yaml are applied by
re-running the idempotent bootstrap and launch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, opts, noBrowser)
		},
	}
	opts.register(cmd, false)
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Do not open the UI in a browser")
	return cmd
}

func runRun(cmd *cobra.Command, opts *outputOptions, noBrowser bool) error {
	formatter, format, err := opts.formatter(cmd)
	if err != nil {
		return err
	}
	application, err := newApplication(noBrowser)
	if err != nil {
		return err
	}
	defer application.Close()

	stopProgress := showProgress(cmd, application.Progress(), !opts.quiet && format == formatting.FormatTable)
	var mu sync.Mutex
	printReport := func(report *api.Report) {
		stopProgress()
		mu.Lock()
		defer mu.Unlock()
		if err := formatter.FormatReport(report); err != nil {
			logging.Error("CLI", err, "Failed to print report")
			return
		}
		if err := formatter.FormatServices(application.Services().Supervisor.Statuses()); err != nil {
			logging.Error("CLI", err, "Failed to print service status")
		}
	}

	err = application.Run(commandContext(cmd), printReport)
	stopProgress()
	return err
}
