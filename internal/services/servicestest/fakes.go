// Package servicestest provides in-memory fakes for the services package.
package servicestest

import (
	"context"
	"strings"
	"sync"

	"stackpilot/internal/services"
	"stackpilot/internal/system/systemtest"
)

// FakeHandle is a process that exits when terminated or killed.
type FakeHandle struct {
	mu  sync.Mutex
	pid int
	// IgnoreTerm keeps the process alive on Terminate.
	IgnoreTerm bool
	terminated int
	killed     int
	done       chan struct{}
	onExit     func()
}

// NewFakeHandle creates a live handle.
func NewFakeHandle(pid int) *FakeHandle {
	return &FakeHandle{pid: pid, done: make(chan struct{})}
}

func (h *FakeHandle) PID() int              { return h.pid }
func (h *FakeHandle) Done() <-chan struct{} { return h.done }

func (h *FakeHandle) Terminate() error {
	h.mu.Lock()
	h.terminated++
	ignore := h.IgnoreTerm
	h.mu.Unlock()
	if !ignore {
		h.Exit()
	}
	return nil
}

func (h *FakeHandle) Kill() error {
	h.mu.Lock()
	h.killed++
	h.mu.Unlock()
	h.Exit()
	return nil
}

// Exit marks the process as exited.
func (h *FakeHandle) Exit() {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
	default:
		close(h.done)
		if h.onExit != nil {
			h.onExit()
		}
	}
}

// Terminated returns how often Terminate was called.
func (h *FakeHandle) Terminated() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.terminated
}

// Killed returns how often Kill was called.
func (h *FakeHandle) Killed() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.killed
}

// FakeSpawner records spawns. When Processes is set, spawned services show
// up in it until they exit.
type FakeSpawner struct {
	mu        sync.Mutex
	Processes *systemtest.FakeProcesses
	// Err makes every spawn fail.
	Err error
	// IgnoreTerm is copied to every new handle.
	IgnoreTerm bool
	nextPID    int
	spawned    []services.Spec
	handles    map[string][]*FakeHandle
}

// NewFakeSpawner creates a spawner registering processes in procs, which may
// be nil.
func NewFakeSpawner(procs *systemtest.FakeProcesses) *FakeSpawner {
	return &FakeSpawner{Processes: procs, nextPID: 4000, handles: map[string][]*FakeHandle{}}
}

// Spawn implements services.Spawner.
func (f *FakeSpawner) Spawn(ctx context.Context, spec services.Spec, logPath string) (services.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spawned = append(f.spawned, spec)
	if f.Err != nil {
		return nil, f.Err
	}
	f.nextPID++
	h := NewFakeHandle(f.nextPID)
	h.IgnoreTerm = f.IgnoreTerm
	if f.Processes != nil {
		pid := h.pid
		f.Processes.Add(pid, strings.Join(spec.Command, " "))
		h.onExit = func() { f.Processes.Remove(pid) }
	}
	f.handles[spec.Name] = append(f.handles[spec.Name], h)
	return h, nil
}

// Spawned returns the names of spawned services in order.
func (f *FakeSpawner) Spawned() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.spawned))
	for _, s := range f.spawned {
		names = append(names, s.Name)
	}
	return names
}

// Handles returns the handles created for name.
func (f *FakeSpawner) Handles(name string) []*FakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeHandle(nil), f.handles[name]...)
}

// FakeProbe answers readiness from a map keyed by service name. Services not
// in the map are ready.
type FakeProbe struct {
	mu       sync.Mutex
	NotReady map[string]error
}

// Ready implements services.ReadinessProbe.
func (p *FakeProbe) Ready(ctx context.Context, spec services.Spec) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.NotReady[spec.Name]
}
