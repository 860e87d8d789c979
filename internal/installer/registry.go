package installer

import (
	"fmt"
	"sync"

	"stackpilot/internal/api"
	"stackpilot/internal/config"
	"stackpilot/internal/executor"
)

// Registry holds tool specs in declaration order.
type Registry struct {
	mu    sync.RWMutex
	specs []ToolSpec
	index map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// BuildRegistry registers a spec for every definition that applies to the
// executor's platform.
func BuildRegistry(defs []config.ToolDefinition, ex *executor.Executor) (*Registry, error) {
	r := NewRegistry()
	for _, def := range defs {
		spec, ok := FromDefinition(def, ex)
		if !ok {
			continue
		}
		if err := r.Register(spec); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends a spec.
func (r *Registry) Register(spec ToolSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("tool has empty name")
	}
	if spec.Present == nil || spec.Install == nil {
		return fmt.Errorf("tool %s must define Present and Install", spec.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[spec.Name]; exists {
		return fmt.Errorf("tool %s already registered", spec.Name)
	}
	r.index[spec.Name] = len(r.specs)
	r.specs = append(r.specs, spec)
	return nil
}

// Get returns a spec by name.
func (r *Registry) Get(name string) (ToolSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return ToolSpec{}, api.NewToolNotFoundError(name)
	}
	return r.specs[i], nil
}

// List returns all specs in declaration order.
func (r *Registry) List() []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ToolSpec(nil), r.specs...)
}
