package formatting

import (
	"fmt"

	"stackpilot/internal/api"
)

// JSONFormatter provides structured JSON output formatting
type JSONFormatter struct {
	options Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(options Options) Formatter {
	return &JSONFormatter{
		options: options,
	}
}

// FormatReport implements Formatter.
func (f *JSONFormatter) FormatReport(report *api.Report) error {
	return f.write(newReportView(report))
}

// FormatServices implements Formatter.
func (f *JSONFormatter) FormatServices(statuses []api.ServiceStatus) error {
	if statuses == nil {
		statuses = []api.ServiceStatus{}
	}
	return f.write(map[string]interface{}{"services": statuses})
}

func (f *JSONFormatter) write(v interface{}) error {
	_, err := fmt.Fprintln(f.options.out(), PrettyJSON(v))
	return err
}
