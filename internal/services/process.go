package services

import (
	"fmt"
	"strings"
	"time"

	"stackpilot/internal/api"
	"stackpilot/internal/config"
)

// Spec describes one backend service the launcher keeps running.
type Spec struct {
	Name string
	// MatchPattern is the command line substring of a live instance.
	MatchPattern string
	Command      []string
	Dir          string
	Env          []string
	Port         int
	// ReadinessURL is polled over HTTP; when empty Port is dialled instead.
	ReadinessURL string
}

// SpecFromDefinition renders def into a Spec.
func SpecFromDefinition(def config.ServiceDefinition, render func(string) (string, error)) (Spec, error) {
	spec := Spec{Name: def.Name, Port: def.Port}

	fields := []struct {
		in  string
		out *string
	}{
		{def.Match, &spec.MatchPattern},
		{def.Dir, &spec.Dir},
		{def.ReadinessURL, &spec.ReadinessURL},
	}
	for _, f := range fields {
		v, err := render(f.in)
		if err != nil {
			return Spec{}, fmt.Errorf("service %s: %w", def.Name, err)
		}
		*f.out = v
	}
	for _, list := range []struct {
		in  []string
		out *[]string
	}{{def.Command, &spec.Command}, {def.Env, &spec.Env}} {
		for _, item := range list.in {
			v, err := render(item)
			if err != nil {
				return Spec{}, fmt.Errorf("service %s: %w", def.Name, err)
			}
			*list.out = append(*list.out, v)
		}
	}

	if len(spec.Command) == 0 {
		return Spec{}, fmt.Errorf("service %s has no command", def.Name)
	}
	if strings.TrimSpace(spec.MatchPattern) == "" {
		return Spec{}, fmt.Errorf("service %s has no match pattern", def.Name)
	}
	return spec, nil
}

// ManagedProcess is the supervisor's record of a service. Only records with
// Owned set carry a handle; detected instances are never signalled.
type ManagedProcess struct {
	baseState

	Spec     Spec
	Owned    bool
	Detached bool
	LogPath  string
	Started  time.Time

	handle Handle
}

func newManagedProcess(spec Spec, cb StateChangeCallback) *ManagedProcess {
	return &ManagedProcess{baseState: newBaseState(spec.Name, cb), Spec: spec}
}

// Name returns the service name.
func (m *ManagedProcess) Name() string {
	return m.Spec.Name
}

// PID returns the process id of an owned process, or 0.
func (m *ManagedProcess) PID() int {
	if m.handle == nil {
		return 0
	}
	return m.handle.PID()
}

// Exited reports whether an owned process has exited.
func (m *ManagedProcess) Exited() bool {
	if m.handle == nil {
		return false
	}
	select {
	case <-m.handle.Done():
		return true
	default:
		return false
	}
}

// Status returns a snapshot for callers.
func (m *ManagedProcess) Status() api.ServiceStatus {
	return api.ServiceStatus{
		Name:    m.Spec.Name,
		State:   m.GetState(),
		Health:  m.GetHealth(),
		Owned:   m.Owned,
		PID:     m.PID(),
		Port:    m.Spec.Port,
		Detail:  m.Detail(),
		LogPath: m.LogPath,
	}
}
