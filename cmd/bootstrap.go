package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stackpilot/internal/formatting"
)

func newBootstrapCmd() *cobra.Command {
	opts := &outputOptions{}
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Install and configure every dependency without launching services",
		Long: `Runs the dependency bootstrap: detects each tool, installs what is missing,
verifies it, and applies the environment configuration (shell profiles,
database authentication, service enablement).

A failing step is reported as degraded and never aborts the run; steps that
depend on it are skipped. Running bootstrap again on a prepared machine
installs nothing.

Exit codes:
  0  the run finished (degraded steps are listed in the report)
  1  configuration error, dependency cycle or interrupted run
  2  --strict (or bootstrap.strict) and at least one step degraded`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBootstrap(cmd, opts)
		},
	}
	opts.register(cmd, true)
	return cmd
}

func runBootstrap(cmd *cobra.Command, opts *outputOptions) error {
	formatter, format, err := opts.formatter(cmd)
	if err != nil {
		return err
	}
	application, err := newApplication(true)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopProgress := showProgress(cmd, application.Progress(), !opts.quiet && format == formatting.FormatTable)
	report, err := application.Bootstrap(ctx)
	stopProgress()

	if report != nil {
		if ferr := formatter.FormatReport(report); ferr != nil {
			return ferr
		}
	}
	if err != nil {
		return err
	}
	return opts.checkStrict(report, application.StackpilotConfig().Bootstrap.Strict)
}
