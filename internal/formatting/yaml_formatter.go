package formatting

import (
	"fmt"

	"sigs.k8s.io/yaml"

	"stackpilot/internal/api"
)

// YAMLFormatter provides YAML output formatting. Field names follow the
// JSON output.
type YAMLFormatter struct {
	options Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(options Options) Formatter {
	return &YAMLFormatter{
		options: options,
	}
}

// FormatReport implements Formatter.
func (f *YAMLFormatter) FormatReport(report *api.Report) error {
	return f.write(newReportView(report))
}

// FormatServices implements Formatter.
func (f *YAMLFormatter) FormatServices(statuses []api.ServiceStatus) error {
	if statuses == nil {
		statuses = []api.ServiceStatus{}
	}
	return f.write(map[string]interface{}{"services": statuses})
}

func (f *YAMLFormatter) write(v interface{}) error {
	yamlBytes, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to format YAML: %w", err)
	}
	_, err = f.options.out().Write(yamlBytes)
	return err
}
