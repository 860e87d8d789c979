package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"stackpilot/internal/config"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (invalid configuration, cycle, interrupted run).
	ExitCodeError = 1
	// ExitCodeDegraded indicates a strict run that finished with degraded steps.
	ExitCodeDegraded = 2
)

// Global flags shared by every subcommand.
var (
	configPath string
	debug      bool
	logFile    string
)

// rootCmd represents the base command for the stackpilot application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "stackpilot",
	Short: "Bootstrap and launch a local application stack",
	Long: `stackpilot prepares a workstation for a locally hosted application stack.

It detects and installs the runtimes the stack needs (Node.js, Python/conda,
PostgreSQL, Ollama and the project dependencies), applies the environment
configuration they require, launches the backend services and opens the UI.
Every step is idempotent: running it again on a prepared machine installs
nothing.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "stackpilot version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	var degraded *DegradedError
	if errors.As(err, &degraded) {
		return ExitCodeDegraded
	}
	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
	rootCmd.AddCommand(newBootstrapCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newRunCmd())

	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", config.GetDefaultConfigPathOrPanic(), "Configuration directory holding config.yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging and stream installer output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file")
}
