package system

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"stackpilot/internal/api"
	"stackpilot/internal/platform"
	"stackpilot/pkg/logging"
)

// Elevator validates that privileged commands can run before a step starts,
// so a refused prompt is reported as PermissionDenied instead of as a failed
// install.
type Elevator interface {
	Ensure(ctx context.Context) error
}

// SudoElevator asks sudo to validate (and cache) credentials. On windows the
// UAC prompt appears per command, so Ensure is a no-op there.
type SudoElevator struct {
	Runner   Runner
	Platform platform.Info

	mu        sync.Mutex
	validated bool
	denied    error
}

// NewElevator creates the elevator for the host platform.
func NewElevator(runner Runner, info platform.Info) *SudoElevator {
	return &SudoElevator{Runner: runner, Platform: info}
}

// Ensure prompts for credentials once per run. A refusal is remembered so the
// user is not prompted again for every remaining privileged step. A prompt
// cut short by cancellation or a deadline is not a refusal and is retried on
// the next call.
func (e *SudoElevator) Ensure(ctx context.Context) error {
	if e.Platform.Family == platform.Windows {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.validated {
		return nil
	}
	if e.denied != nil {
		return e.denied
	}

	logging.Info("Privilege", "Administrator privileges are required; sudo may prompt for your password")
	if _, err := e.Runner.Run(ctx, Command{Argv: []string{"sudo", "-v"}, Interactive: true}); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("sudo credential validation interrupted: %w", err)
		}
		e.denied = fmt.Errorf("sudo credential validation failed: %v: %w", err, api.ErrPermissionDenied)
		return e.denied
	}
	e.validated = true
	return nil
}
