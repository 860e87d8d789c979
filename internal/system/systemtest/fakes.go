// Package systemtest provides in-memory implementations of the system
// package interfaces for tests.
package systemtest

import (
	"context"
	"io"
	"strings"
	"sync"

	"stackpilot/internal/system"
)

// Response is what a FakeRunner returns for a matching command.
type Response struct {
	Stdout string
	Err    error
	// Do runs before the response is returned, to simulate side effects
	// such as an installer creating files. stdin holds what the command was fed.
	Do func(c system.Command, stdin []byte)
}

type rule struct {
	substr string
	resp   Response
}

// FakeRunner answers commands from rules matched by substring, in the order
// they were added. Unmatched commands succeed with empty output.
type FakeRunner struct {
	mu    sync.Mutex
	rules []rule
	calls []system.Command
}

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{}
}

// On registers resp for commands whose text contains substr.
func (f *FakeRunner) On(substr string, resp Response) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{substr: substr, resp: resp})
	return f
}

// Run implements system.Runner.
func (f *FakeRunner) Run(ctx context.Context, c system.Command) (system.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	key := Key(c)
	var resp Response
	for _, r := range f.rules {
		if strings.Contains(key, r.substr) {
			resp = r.resp
			break
		}
	}
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return system.Result{}, err
	}
	var stdin []byte
	if c.Stdin != nil {
		stdin, _ = io.ReadAll(c.Stdin)
	}
	if resp.Do != nil {
		resp.Do(c, stdin)
	}
	res := system.Result{Stdout: []byte(resp.Stdout)}
	if resp.Err != nil {
		res.ExitCode = 1
	}
	return res, resp.Err
}

// Calls returns every command run so far.
func (f *FakeRunner) Calls() []system.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]system.Command(nil), f.calls...)
}

// Count returns how many commands contained substr.
func (f *FakeRunner) Count(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.Contains(Key(c), substr) {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls but keeps the rules.
func (f *FakeRunner) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Key is the text rules are matched against: the shell script or the
// space-joined argv.
func Key(c system.Command) string {
	if c.Shell != "" {
		return c.Shell
	}
	return strings.Join(c.Argv, " ")
}

// FakeProcesses is an in-memory process table.
type FakeProcesses struct {
	mu    sync.Mutex
	procs []system.Process
	Err   error
}

// NewFakeProcesses creates a process table holding procs.
func NewFakeProcesses(procs ...system.Process) *FakeProcesses {
	return &FakeProcesses{procs: procs}
}

// Add inserts a process.
func (f *FakeProcesses) Add(pid int, command string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.procs = append(f.procs, system.Process{PID: pid, Command: command})
}

// Remove deletes the process with pid.
func (f *FakeProcesses) Remove(pid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.procs {
		if p.PID == pid {
			f.procs = append(f.procs[:i], f.procs[i+1:]...)
			return
		}
	}
}

// Find implements system.ProcessRegistry.
func (f *FakeProcesses) Find(ctx context.Context, pattern string) ([]system.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if strings.TrimSpace(pattern) == "" {
		return nil, nil
	}
	var res []system.Process
	for _, p := range f.procs {
		if strings.Contains(p.Command, pattern) {
			res = append(res, p)
		}
	}
	return res, nil
}

// IsRunning implements system.ProcessRegistry.
func (f *FakeProcesses) IsRunning(ctx context.Context, pattern string) bool {
	procs, err := f.Find(ctx, pattern)
	return err == nil && len(procs) > 0
}

// FakeElevator records credential requests.
type FakeElevator struct {
	mu    sync.Mutex
	Err   error
	calls int
}

// Ensure implements system.Elevator.
func (f *FakeElevator) Ensure(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.Err
}

// Calls returns how often Ensure was called.
func (f *FakeElevator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
