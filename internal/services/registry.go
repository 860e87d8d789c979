package services

import (
	"fmt"
	"sync"

	"stackpilot/internal/api"
)

// registry holds managed process records in registration order.
type registry struct {
	mu      sync.RWMutex
	records map[string]*ManagedProcess
	order   []string
}

func newRegistry() *registry {
	return &registry{records: make(map[string]*ManagedProcess)}
}

// Put adds or replaces the record for mp's name.
func (r *registry) Put(mp *ManagedProcess) error {
	if mp == nil {
		return fmt.Errorf("cannot register nil process")
	}
	name := mp.Name()
	if name == "" {
		return fmt.Errorf("service has empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[name]; !exists {
		r.order = append(r.order, name)
	}
	r.records[name] = mp
	return nil
}

// Get returns the record for name.
func (r *registry) Get(name string) (*ManagedProcess, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mp, exists := r.records[name]
	if !exists {
		return nil, api.NewServiceNotFoundError(name)
	}
	return mp, nil
}

// GetAll returns all records in registration order.
func (r *registry) GetAll() []*ManagedProcess {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]*ManagedProcess, 0, len(r.order))
	for _, name := range r.order {
		res = append(res, r.records[name])
	}
	return res
}
