//go:build windows

package services

import (
	"os/exec"
	"strconv"
	"syscall"
)

func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// Terminate ends the process tree. Windows has no SIGTERM equivalent for
// console-less children, so taskkill without /F asks politely first.
func (h *processHandle) Terminate() error {
	return exec.Command("taskkill", "/T", "/PID", strconv.Itoa(h.proc.Pid)).Run()
}

func (h *processHandle) Kill() error {
	if err := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(h.proc.Pid)).Run(); err != nil {
		return h.proc.Kill()
	}
	return nil
}
