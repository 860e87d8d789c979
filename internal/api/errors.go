package api

import (
	"context"
	"errors"
	"fmt"
)

// NotFoundError represents a lookup of a named resource that does not exist.
type NotFoundError struct {
	// ResourceType categorizes the resource (e.g. "tool", "service", "step")
	ResourceType string

	// ResourceName is the identifier that was looked up
	ResourceName string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// IsNotFound checks if an error is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceName string) *NotFoundError {
	return &NotFoundError{
		ResourceType: resourceType,
		ResourceName: resourceName,
	}
}

var (
	NewToolNotFoundError = func(name string) *NotFoundError {
		return NewNotFoundError("tool", name)
	}
	NewServiceNotFoundError = func(name string) *NotFoundError {
		return NewNotFoundError("service", name)
	}
)

// ErrorKind classifies a bootstrap failure.
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindNotFound           ErrorKind = "NotFound"
	KindInstallFailed      ErrorKind = "InstallFailed"
	KindVerifyFailed       ErrorKind = "VerifyFailed"
	KindPermissionDenied   ErrorKind = "PermissionDenied"
	KindTimedOut           ErrorKind = "TimedOut"
	KindConfigureFailed    ErrorKind = "ConfigureFailed"
	KindDependencyFailed   ErrorKind = "DependencyFailed"
	KindProcessSpawnFailed ErrorKind = "ProcessSpawnFailed"
)

// ErrPermissionDenied is returned by privileged runners when the user refused
// or cancelled the elevation prompt.
var ErrPermissionDenied = errors.New("privilege escalation denied")

// StepError is a failure of a single bootstrap step or service launch.
type StepError struct {
	Kind ErrorKind
	Step string
	Err  error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Step, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// NewStepError wraps err with a kind. Deadline and permission errors inside
// err take precedence over the supplied kind so a timed-out installer is
// reported as TimedOut rather than InstallFailed.
func NewStepError(kind ErrorKind, step string, err error) *StepError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimedOut
	case errors.Is(err, ErrPermissionDenied):
		kind = KindPermissionDenied
	}
	return &StepError{Kind: kind, Step: step, Err: err}
}

// KindOf extracts the ErrorKind from err. Errors that are not StepErrors are
// classified by their cause, falling back to fallback.
func KindOf(err error, fallback ...ErrorKind) ErrorKind {
	if err == nil {
		return KindNone
	}
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimedOut
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case IsNotFound(err):
		return KindNotFound
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return KindInstallFailed
}
