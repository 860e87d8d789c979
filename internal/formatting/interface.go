// Package formatting renders bootstrap reports and service statuses for the
// CLI as tables, JSON or YAML.
package formatting

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"stackpilot/internal/api"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unsupported output format %q (use table, json or yaml)", s)
}

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Quiet  bool // Suppress decorative elements
	Color  bool // Enable colored output
	// Out defaults to os.Stdout.
	Out io.Writer
}

func (o Options) out() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

// Formatter renders stackpilot results.
type Formatter interface {
	FormatReport(report *api.Report) error
	FormatServices(statuses []api.ServiceStatus) error
}

// New creates the formatter for options.Format.
func New(options Options) Formatter {
	switch options.Format {
	case FormatJSON:
		return NewJSONFormatter(options)
	case FormatYAML:
		return NewYAMLFormatter(options)
	default:
		return NewTableFormatter(options)
	}
}

// reportView is the serialised shape of a report: durations are rendered
// as strings and a summary is added.
type reportView struct {
	RunID      string        `json:"runId"`
	Platform   string        `json:"platform,omitempty"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Duration   string        `json:"duration"`
	Summary    summaryView   `json:"summary"`
	Outcomes   []outcomeView `json:"outcomes"`
}

type summaryView struct {
	Steps    int      `json:"steps"`
	Installs int      `json:"installs"`
	Degraded []string `json:"degraded,omitempty"`
}

type outcomeView struct {
	Step           string `json:"step"`
	Branch         string `json:"branch,omitempty"`
	Kind           string `json:"kind"`
	State          string `json:"state"`
	Reason         string `json:"reason,omitempty"`
	Detail         string `json:"detail,omitempty"`
	InstallInvoked bool   `json:"installInvoked,omitempty"`
	Duration       string `json:"duration"`
}

func newReportView(r *api.Report) reportView {
	v := reportView{
		RunID:      r.RunID,
		Platform:   r.Platform,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Duration:   formatDuration(r.Duration()),
		Summary:    summaryView{Steps: len(r.Outcomes), Installs: r.InstallCount()},
		Outcomes:   make([]outcomeView, 0, len(r.Outcomes)),
	}
	for _, o := range r.Degraded() {
		v.Summary.Degraded = append(v.Summary.Degraded, o.Step)
	}
	for _, o := range r.Outcomes {
		v.Outcomes = append(v.Outcomes, outcomeView{
			Step:           o.Step,
			Branch:         o.Branch,
			Kind:           string(o.Kind),
			State:          string(o.State),
			Reason:         string(o.Reason),
			Detail:         o.Detail,
			InstallInvoked: o.InstallInvoked,
			Duration:       formatDuration(o.Duration),
		})
	}
	return v
}

func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}
