//go:build !windows

package services

import (
	"fmt"
	"os/exec"
	"syscall"
)

// configureProcAttr runs the process in its own process group so the whole
// group can be signalled later and terminal signals do not reach it.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

func (h *processHandle) Terminate() error {
	return signalGroup(h.proc.Pid, syscall.SIGTERM)
}

func (h *processHandle) Kill() error {
	return signalGroup(h.proc.Pid, syscall.SIGKILL)
}

// signalGroup sends sig to the process group led by pid, falling back to the
// process itself.
func signalGroup(pid int, sig syscall.Signal) error {
	// Negative PID addresses the entire process group
	if err := syscall.Kill(-pid, sig); err != nil {
		if err2 := syscall.Kill(pid, sig); err2 != nil && err2 != syscall.ESRCH {
			return fmt.Errorf("failed to signal process group -%d: %v, also failed to signal process %d: %w", pid, err, pid, err2)
		}
	}
	return nil
}
