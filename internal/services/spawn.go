package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"stackpilot/internal/platform"
	"stackpilot/internal/system"
	"stackpilot/pkg/logging"
)

// ExecSpawner starts services as detached child processes.
type ExecSpawner struct {
	Platform platform.Info
}

// NewExecSpawner creates a spawner resolving commands through info.
func NewExecSpawner(info platform.Info) *ExecSpawner {
	return &ExecSpawner{Platform: info}
}

// Spawn implements Spawner.
func (s *ExecSpawner) Spawn(ctx context.Context, spec Spec, logPath string) (Handle, error) {
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("service %s has no command", spec.Name)
	}
	bin, ok := system.LookPath(s.Platform, spec.Command[0])
	if !ok {
		return nil, fmt.Errorf("executable %s not found", spec.Command[0])
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// Not bound to ctx: the service outlives the call that started it.
	cmd := exec.Command(bin, spec.Command[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), "PATH="+s.Platform.PathEnv())
	cmd.Env = append(cmd.Env, spec.Env...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	configureProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, err
	}

	h := &processHandle{proc: cmd.Process, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer logFile.Close()
		if err := cmd.Wait(); err != nil {
			logging.Debug("Supervisor", "Service %s (pid %d) exited: %v", spec.Name, h.PID(), err)
			return
		}
		logging.Debug("Supervisor", "Service %s (pid %d) exited", spec.Name, h.PID())
	}()
	return h, nil
}

type processHandle struct {
	proc *os.Process
	done chan struct{}
}

func (h *processHandle) PID() int              { return h.proc.Pid }
func (h *processHandle) Done() <-chan struct{} { return h.done }
