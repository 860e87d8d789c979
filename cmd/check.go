package cmd

import (
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	opts := &outputOptions{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report what bootstrap would do, without changing anything",
		Long: `Evaluates every bootstrap step without side effects: tools are only
detected, configuration patches are rendered but not written, and no
command that changes the machine is run.

Absent tools are reported as degraded (NotFound); configuration that still
has to be applied is reported as pending.

Examples:
  stackpilot check
  stackpilot check -o json
  stackpilot check --strict   # exit 2 when anything is missing`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts)
		},
	}
	opts.register(cmd, true)
	return cmd
}

func runCheck(cmd *cobra.Command, opts *outputOptions) error {
	formatter, _, err := opts.formatter(cmd)
	if err != nil {
		return err
	}
	application, err := newApplication(true)
	if err != nil {
		return err
	}
	defer application.Close()

	report, err := application.Check(commandContext(cmd))
	if report != nil {
		if ferr := formatter.FormatReport(report); ferr != nil {
			return ferr
		}
	}
	if err != nil {
		return err
	}
	return opts.checkStrict(report, false)
}
