package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"stackpilot/internal/api"
	"stackpilot/internal/orchestrator"
)

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		flags []string
	}{
		{cmd: newBootstrapCmd(), flags: []string{"output", "quiet", "strict"}},
		{cmd: newCheckCmd(), flags: []string{"output", "quiet", "strict"}},
		{cmd: newRunCmd(), flags: []string{"output", "quiet", "no-browser"}},
	}
	for _, tt := range tests {
		t.Run(tt.cmd.Name(), func(t *testing.T) {
			for _, name := range tt.flags {
				if tt.cmd.Flags().Lookup(name) == nil {
					t.Errorf("Expected flag --%s on %s", name, tt.cmd.Name())
				}
			}
			if tt.cmd.RunE == nil {
				t.Error("Expected RunE function to be set")
			}
		})
	}
	if newRunCmd().Flags().Lookup("strict") != nil {
		t.Error("run should not accept --strict")
	}
}

func TestRunHelp_DescribesAlreadyRunningServices(t *testing.T) {
	long := newRunCmd().Long
	if strings.Contains(long, "adopt") {
		t.Error("run help should not claim to adopt running services")
	}
	if !strings.Contains(long, "already-running ones untouched") {
		t.Errorf("Expected run help to say running services are left untouched, got:\n%s", long)
	}
}

func TestCheckStrict(t *testing.T) {
	degraded := &api.Report{Outcomes: []api.Outcome{
		{Step: "node", State: api.StateVerified},
		{Step: "postgres", State: api.StateDegraded, Reason: api.KindInstallFailed},
	}}
	clean := &api.Report{Outcomes: []api.Outcome{{Step: "node", State: api.StateVerified}}}

	tests := []struct {
		name       string
		strict     bool
		configured bool
		report     *api.Report
		wantErr    bool
	}{
		{name: "not strict", report: degraded},
		{name: "strict flag", strict: true, report: degraded, wantErr: true},
		{name: "strict from config", configured: true, report: degraded, wantErr: true},
		{name: "strict but clean", strict: true, report: clean},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := &outputOptions{strict: tt.strict}
			err := opts.checkStrict(tt.report, tt.configured)
			if (err != nil) != tt.wantErr {
				t.Fatalf("checkStrict() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var de *DegradedError
			if !errors.As(err, &de) {
				t.Fatalf("Expected DegradedError, got %T", err)
			}
			if len(de.Steps) != 1 || de.Steps[0] != "postgres" {
				t.Errorf("Expected [postgres], got %v", de.Steps)
			}
			if getExitCode(err) != ExitCodeDegraded {
				t.Errorf("Expected exit code %d", ExitCodeDegraded)
			}
		})
	}
}

func TestOutputOptions_RejectsUnknownFormat(t *testing.T) {
	opts := &outputOptions{format: "xml"}
	if _, _, err := opts.formatter(newCheckCmd()); err == nil {
		t.Error("Expected an error for an unsupported format")
	}
}

func TestCheck_InvalidConfiguration(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("tools: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	originalPath := configPath
	configPath = dir
	defer func() { configPath = originalPath }()

	cmd := newCheckCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("Expected a configuration error")
	}
	if !strings.Contains(err.Error(), "Configuration Error in config.yaml") {
		t.Errorf("Expected the detailed configuration error, got: %v", err)
	}
	if getExitCode(err) != ExitCodeError {
		t.Errorf("Expected exit code %d", ExitCodeError)
	}
}

func TestShowProgress(t *testing.T) {
	cmd := newBootstrapCmd()
	var errOut bytes.Buffer
	cmd.SetErr(&errOut)

	events := make(chan orchestrator.ProgressEvent, 4)
	events <- orchestrator.ProgressEvent{Type: orchestrator.EventStepStarted, Step: "node", Index: 1, Total: 2}
	events <- orchestrator.ProgressEvent{Type: orchestrator.EventStepState, Step: "node", Index: 1, Total: 2, State: api.StateInstalling}

	stop := showProgress(cmd, events, true)
	time.Sleep(20 * time.Millisecond)
	stop()
	stop()

	disabled := showProgress(cmd, events, false)
	disabled()
}
