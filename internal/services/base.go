package services

import (
	"sync"
)

// baseState tracks the state and health of a managed process and notifies a
// callback on changes.
type baseState struct {
	mu            sync.RWMutex
	name          string
	state         ServiceState
	health        HealthStatus
	lastError     error
	detail        string
	stateChangeCb StateChangeCallback
}

func newBaseState(name string, cb StateChangeCallback) baseState {
	return baseState{
		name:          name,
		state:         StateUnknown,
		health:        HealthUnknown,
		stateChangeCb: cb,
	}
}

// GetState returns the current state
func (b *baseState) GetState() ServiceState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// GetHealth returns the current health status
func (b *baseState) GetHealth() HealthStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.health
}

// GetLastError returns the last error
func (b *baseState) GetLastError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastError
}

// Detail returns the last recorded human readable detail.
func (b *baseState) Detail() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.detail
}

func (b *baseState) setDetail(detail string) {
	b.mu.Lock()
	b.detail = detail
	b.mu.Unlock()
}

// updateState updates the state and notifies the callback
func (b *baseState) updateState(newState ServiceState, health HealthStatus, err error) {
	b.mu.Lock()
	oldState := b.state
	b.state = newState
	b.health = health
	b.lastError = err
	callback := b.stateChangeCb
	b.mu.Unlock()

	// Call the callback outside of the lock to avoid deadlocks
	if callback != nil && oldState != newState {
		callback(b.name, oldState, newState, health, err)
	}
}

// updateHealth updates just the health status
func (b *baseState) updateHealth(health HealthStatus, err error) {
	b.mu.Lock()
	oldHealth := b.health
	b.health = health
	if err != nil {
		b.lastError = err
	}
	state := b.state
	callback := b.stateChangeCb
	b.mu.Unlock()

	// Notify if health changed
	if callback != nil && oldHealth != health {
		callback(b.name, state, state, health, err)
	}
}
