package api

import (
	"time"
)

// Report aggregates the outcomes of one bootstrap run.
type Report struct {
	RunID      string    `json:"runId"`
	Platform   string    `json:"platform"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Add appends an outcome.
func (r *Report) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Get returns the outcome recorded for step.
func (r *Report) Get(step string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Step == step {
			return o, true
		}
	}
	return Outcome{}, false
}

// Degraded returns all outcomes that did not succeed.
func (r *Report) Degraded() []Outcome {
	var res []Outcome
	for _, o := range r.Outcomes {
		if o.Degraded() {
			res = append(res, o)
		}
	}
	return res
}

// OK reports whether every step succeeded.
func (r *Report) OK() bool {
	return len(r.Degraded()) == 0
}

// InstallCount returns how many steps actually invoked an installer.
func (r *Report) InstallCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.InstallInvoked {
			n++
		}
	}
	return n
}

// Installed returns the names of steps that invoked an installer, in order.
func (r *Report) Installed() []string {
	var names []string
	for _, o := range r.Outcomes {
		if o.InstallInvoked {
			names = append(names, o.Step)
		}
	}
	return names
}

// Duration is the wall-clock time of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
