package api

import "time"

// StepKind distinguishes the kinds of work recorded in a report.
type StepKind string

const (
	StepInstall   StepKind = "install"
	StepConfigure StepKind = "configure"
	StepService   StepKind = "service"
)

// StepState is the terminal state of a step.
//
// Install steps move absent → installing → verified, or end in degraded.
// A step whose prerequisites degraded is skipped without running.
type StepState string

const (
	StateAbsent     StepState = "absent"
	StateInstalling StepState = "installing"
	StateVerified   StepState = "verified"
	StateDegraded   StepState = "degraded"
	StateSkipped    StepState = "skipped"
	// StateUnchanged marks a configure step that found nothing to do.
	StateUnchanged StepState = "unchanged"
	// StateApplied marks a configure step that changed the system.
	StateApplied StepState = "applied"
	// StateStarted marks a service the launcher spawned and owns.
	StateStarted StepState = "started"
	// StateDetected marks a service found already running; it is not owned.
	StateDetected StepState = "detected"
	// StatePending marks a configure step a check found still to do.
	StatePending StepState = "pending"
)

// Succeeded reports whether the state counts as a healthy end state.
func (s StepState) Succeeded() bool {
	switch s {
	case StateVerified, StateUnchanged, StateApplied, StateStarted, StateDetected:
		return true
	}
	return false
}

// Outcome is the result of one bootstrap step or service launch.
type Outcome struct {
	Step           string        `json:"step"`
	Branch         string        `json:"branch,omitempty"`
	Kind           StepKind      `json:"kind"`
	State          StepState     `json:"state"`
	Reason         ErrorKind     `json:"reason,omitempty"`
	Detail         string        `json:"detail,omitempty"`
	InstallInvoked bool          `json:"installInvoked,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// Degraded reports whether the outcome represents a non-fatal failure. A
// step skipped because it does not apply to the host is not degraded.
func (o Outcome) Degraded() bool {
	return o.State == StateDegraded || o.Reason != KindNone
}

// FailedOutcome builds a degraded outcome from err.
func FailedOutcome(step, branch string, kind StepKind, err error) Outcome {
	o := Outcome{
		Step:   step,
		Branch: branch,
		Kind:   kind,
		State:  StateDegraded,
		Reason: KindOf(err),
	}
	if err != nil {
		o.Detail = err.Error()
	}
	return o
}
