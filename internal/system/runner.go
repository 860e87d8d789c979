package system

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"stackpilot/internal/api"
	"stackpilot/internal/platform"
	"stackpilot/pkg/logging"
)

const runnerSubsystem = "Runner"

// execCommandContext is a variable to allow mocking in tests
var execCommandContext = exec.CommandContext

// Command describes one external command invocation.
type Command struct {
	// Argv is executed directly when Shell is empty.
	Argv []string
	// Shell is a script run by the platform shell (bash on unix, PowerShell on windows).
	Shell string
	// Privileged runs the command through the platform's elevation mechanism.
	Privileged bool
	Dir        string
	// Env holds extra KEY=VALUE pairs on top of the inherited environment.
	Env   []string
	Stdin io.Reader
	// Interactive attaches the terminal's stdin so prompts can be answered.
	Interactive bool
	// Stream receives a copy of stdout and stderr while the command runs.
	Stream io.Writer
	// Timeout bounds the command; zero means no limit beyond ctx.
	Timeout time.Duration
}

// String renders the command for logs.
func (c Command) String() string {
	s := c.Shell
	if s == "" {
		s = strings.Join(c.Argv, " ")
	}
	if c.Privileged {
		return "(privileged) " + s
	}
	return s
}

// Result carries the captured output of a finished command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Output returns trimmed stdout.
func (r Result) Output() string {
	return strings.TrimSpace(string(r.Stdout))
}

// Runner executes external commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExitError is returned when a command ran but exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// ExecRunner runs commands on the host.
type ExecRunner struct {
	Platform platform.Info
}

// NewExecRunner creates a runner bound to the resolved platform.
func NewExecRunner(info platform.Info) *ExecRunner {
	return &ExecRunner{Platform: info}
}

// Run executes cmd, returning an *ExitError for non-zero exits, an error
// wrapping context.DeadlineExceeded when the timeout elapsed and an error
// wrapping api.ErrPermissionDenied when elevation was refused.
func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	argv, err := BuildArgv(r.Platform.Family, c)
	if err != nil {
		return Result{}, err
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := execCommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin
	if c.Interactive && c.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	cmd.WaitDelay = 5 * time.Second
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env, "PATH="+r.Platform.PathEnv())
	cmd.Env = append(cmd.Env, c.Env...)

	var stdout, stderr bytes.Buffer
	if c.Stream != nil {
		cmd.Stdout = io.MultiWriter(&stdout, c.Stream)
		cmd.Stderr = io.MultiWriter(&stderr, c.Stream)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	logging.Debug(runnerSubsystem, "Running: %s", c)
	runErr := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if ctx.Err() == context.DeadlineExceeded {
		return res, fmt.Errorf("command %q timed out: %w", c.String(), context.DeadlineExceeded)
	}
	if runErr == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) {
		return res, fmt.Errorf("failed to run %q: %w", c.String(), runErr)
	}

	stderrText := tail(string(res.Stderr), 512)
	if c.Privileged && elevationRefused(stderrText) {
		return res, fmt.Errorf("%s: %w", strings.TrimSpace(stderrText), api.ErrPermissionDenied)
	}
	return res, &ExitError{Command: c.String(), ExitCode: res.ExitCode, Stderr: stderrText}
}

// BuildArgv turns a Command into the argv actually executed on family.
func BuildArgv(family platform.Family, c Command) ([]string, error) {
	if c.Shell == "" && len(c.Argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	if family == platform.Windows {
		script := c.Shell
		if script == "" {
			script = "& " + psJoin(c.Argv)
		}
		if c.Privileged {
			script = fmt.Sprintf(
				"$p = Start-Process -FilePath 'powershell' -ArgumentList '-NoProfile','-NonInteractive','-Command',%s -Verb RunAs -Wait -PassThru; exit $p.ExitCode",
				psQuote(script))
		}
		return []string{"powershell", "-NoProfile", "-NonInteractive", "-Command", script}, nil
	}

	var argv []string
	if c.Shell != "" {
		argv = []string{"bash", "-c", c.Shell}
	} else {
		argv = append([]string(nil), c.Argv...)
	}
	if c.Privileged {
		argv = append([]string{"sudo"}, argv...)
	}
	return argv, nil
}

func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func psJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = psQuote(a)
	}
	return strings.Join(quoted, " ")
}

var refusalMarkers = []string{
	"incorrect password",
	"a password is required",
	"is not in the sudoers",
	"no tty present",
	"authentication failure",
	"canceled by the user",
	"cancelled by the user",
	"operation was canceled",
}

func elevationRefused(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, m := range refusalMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
