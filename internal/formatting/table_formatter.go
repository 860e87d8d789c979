package formatting

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"stackpilot/internal/api"
	pkgstrings "stackpilot/pkg/strings"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(options Options) Formatter {
	return &TableFormatter{
		options: options,
	}
}

// FormatReport renders one row per step followed by a summary line.
func (f *TableFormatter) FormatReport(report *api.Report) error {
	if len(report.Outcomes) == 0 {
		f.printf("%s\n", f.color(text.FgYellow, "No steps to run on this platform"))
		return nil
	}

	t := f.createTable()
	t.AppendHeader(f.header("STEP", "KIND", "STATE", "REASON", "DETAIL", "DURATION"))
	for _, o := range report.Outcomes {
		t.AppendRow(table.Row{
			o.Step,
			string(o.Kind),
			f.stateText(o),
			string(o.Reason),
			pkgstrings.Truncate(o.Detail, pkgstrings.DefaultDetailMaxLen),
			formatDuration(o.Duration),
		})
	}
	t.Render()

	if f.options.Quiet {
		return nil
	}
	degraded := report.Degraded()
	summary := fmt.Sprintf("%d steps, %d installed, %d degraded in %s",
		len(report.Outcomes), report.InstallCount(), len(degraded), formatDuration(report.Duration()))
	if len(degraded) == 0 {
		f.printf("\n%s %s\n", f.color(text.FgGreen, "✓"), summary)
		return nil
	}
	names := make([]string, 0, len(degraded))
	for _, o := range degraded {
		names = append(names, o.Step)
	}
	f.printf("\n%s %s: %s\n", f.color(text.FgRed, "✗"), summary, strings.Join(names, ", "))
	return nil
}

// FormatServices renders the supervisor's records.
func (f *TableFormatter) FormatServices(statuses []api.ServiceStatus) error {
	if len(statuses) == 0 {
		f.printf("%s\n", f.color(text.FgYellow, "No services"))
		return nil
	}

	t := f.createTable()
	t.AppendHeader(f.header("SERVICE", "STATE", "HEALTH", "OWNED", "PID", "PORT", "DETAIL"))
	for _, s := range statuses {
		pid := "-"
		if s.PID > 0 {
			pid = strconv.Itoa(s.PID)
		}
		port := "-"
		if s.Port > 0 {
			port = strconv.Itoa(s.Port)
		}
		owned := "no"
		if s.Owned {
			owned = "yes"
		}
		t.AppendRow(table.Row{
			s.Name,
			f.serviceStateText(s.State),
			f.healthText(s.Health),
			owned,
			pid,
			port,
			pkgstrings.Truncate(s.Detail, pkgstrings.DefaultDetailMaxLen),
		})
	}
	t.Render()
	return nil
}

// Helper methods

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.options.out())
	t.SetStyle(table.StyleRounded)
	return t
}

func (f *TableFormatter) header(names ...string) table.Row {
	row := make(table.Row, 0, len(names))
	for _, n := range names {
		row = append(row, f.color(text.FgHiCyan, n))
	}
	return row
}

func (f *TableFormatter) stateText(o api.Outcome) string {
	switch {
	case o.Degraded():
		return f.color(text.FgRed, string(o.State))
	case o.State.Succeeded():
		return f.color(text.FgGreen, string(o.State))
	default:
		return f.color(text.FgYellow, string(o.State))
	}
}

func (f *TableFormatter) serviceStateText(s api.ServiceState) string {
	switch s {
	case api.StateRunning:
		return f.color(text.FgGreen, string(s))
	case api.StateFailed:
		return f.color(text.FgRed, string(s))
	default:
		return f.color(text.FgYellow, string(s))
	}
}

func (f *TableFormatter) healthText(h api.HealthStatus) string {
	switch h {
	case api.HealthHealthy:
		return f.color(text.FgGreen, string(h))
	case api.HealthUnhealthy:
		return f.color(text.FgRed, string(h))
	default:
		return string(h)
	}
}

// color applies c unless colors are disabled.
func (f *TableFormatter) color(c text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return c.Sprint(s)
}

func (f *TableFormatter) printf(format string, args ...interface{}) {
	fmt.Fprintf(f.options.out(), format, args...)
}
