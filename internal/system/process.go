package system

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"strconv"
	"strings"

	"stackpilot/pkg/logging"
)

// Process is one entry of the live process table.
type Process struct {
	PID     int
	Command string
}

// ProcessRegistry answers liveness questions by scanning the process table.
//
// Matching is a loose substring test on the full command line. It can
// false-positive on unrelated processes whose arguments happen to contain the
// pattern; callers treat it as a heuristic, not as an authoritative registry.
type ProcessRegistry interface {
	// Find returns the processes whose command line contains pattern.
	Find(ctx context.Context, pattern string) ([]Process, error)
	// IsRunning reports whether any process matches pattern. Scan failures
	// are reported as false.
	IsRunning(ctx context.Context, pattern string) bool
}

// lister enumerates the process table. Implementations must leave out the
// helper process they spawn for the scan.
type lister func(ctx context.Context) ([]Process, error)

type scanRegistry struct {
	list    lister
	selfPID int
}

// NewProcessRegistry returns the registry implementation for the host OS.
func NewProcessRegistry() ProcessRegistry {
	return &scanRegistry{list: newLister(), selfPID: os.Getpid()}
}

func (r *scanRegistry) Find(ctx context.Context, pattern string) ([]Process, error) {
	procs, err := r.list(ctx)
	if err != nil {
		return nil, err
	}
	return filterProcesses(procs, pattern, r.selfPID), nil
}

func (r *scanRegistry) IsRunning(ctx context.Context, pattern string) bool {
	if strings.TrimSpace(pattern) == "" {
		return false
	}
	matches, err := r.Find(ctx, pattern)
	if err != nil {
		logging.Debug("Process", "Process scan failed while looking for %q: %v", pattern, err)
		return false
	}
	return len(matches) > 0
}

func filterProcesses(procs []Process, pattern string, selfPID int) []Process {
	if strings.TrimSpace(pattern) == "" {
		return nil
	}
	var res []Process
	for _, p := range procs {
		if p.PID == selfPID {
			continue
		}
		if strings.Contains(p.Command, pattern) {
			res = append(res, p)
		}
	}
	return res
}

// parsePSOutput parses "pid command..." lines as produced by
// `ps -axo pid=,command=`, dropping lines whose command starts with
// scanCommand (the scan's own ps invocation).
func parsePSOutput(out []byte, scanCommand string) []Process {
	var procs []Process
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		pidField, command, _ := strings.Cut(line, " ")
		pid, err := strconv.Atoi(pidField)
		if err != nil {
			continue
		}
		command = strings.TrimSpace(command)
		if scanCommand != "" && strings.HasPrefix(command, scanCommand) {
			continue
		}
		procs = append(procs, Process{PID: pid, Command: command})
	}
	return procs
}

// parseTabbedOutput parses "pid<TAB>command" lines, dropping lines that
// contain marker (the scan's own PowerShell invocation).
func parseTabbedOutput(out []byte, marker string) []Process {
	var procs []Process
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		pidField, command, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(pidField))
		if err != nil {
			continue
		}
		if marker != "" && strings.Contains(command, marker) {
			continue
		}
		procs = append(procs, Process{PID: pid, Command: strings.TrimSpace(command)})
	}
	return procs
}
