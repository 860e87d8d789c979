package formatting

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	"stackpilot/internal/api"
)

func sampleReport() *api.Report {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := &api.Report{RunID: "run-1", Platform: "linux", StartedAt: start, FinishedAt: start.Add(90 * time.Second)}
	r.Add(api.Outcome{Step: "node", Kind: api.StepInstall, State: api.StateVerified, InstallInvoked: true, Detail: "installed", Duration: 42 * time.Second})
	r.Add(api.Outcome{Step: "postgres", Kind: api.StepInstall, State: api.StateDegraded, Reason: api.KindInstallFailed, Detail: "apt exited 100", Duration: 3 * time.Second})
	r.Add(api.Outcome{Step: "postgres-auth", Kind: api.StepConfigure, State: api.StateSkipped, Reason: api.KindDependencyFailed})
	return r
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": FormatTable, "table": FormatTable, "JSON": FormatJSON, " yaml ": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	assert.IsType(t, &TableFormatter{}, New(Options{}))
	assert.IsType(t, &JSONFormatter{}, New(Options{Format: FormatJSON}))
	assert.IsType(t, &YAMLFormatter{}, New(Options{Format: FormatYAML}))
}

func TestTableFormatter_Report(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Format: FormatTable, Out: &buf}).FormatReport(sampleReport()))

	out := buf.String()
	for _, want := range []string{"STEP", "node", "verified", "postgres", "InstallFailed", "postgres-auth", "DependencyFailed", "42s"} {
		assert.Contains(t, out, want)
	}
	assert.Contains(t, out, "3 steps, 1 installed, 2 degraded in 1m30s: postgres, postgres-auth")
	assert.NotContains(t, out, "\x1b[", "no colors unless enabled")
}

func TestTableFormatter_Color(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Out: &buf, Color: true}).FormatReport(sampleReport()))
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestTableFormatter_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Out: &buf}).FormatReport(&api.Report{}))
	assert.Contains(t, buf.String(), "No steps")
}

func TestTableFormatter_Services(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Out: &buf}).FormatServices([]api.ServiceStatus{
		{Name: "node-backend", State: api.StateRunning, Health: api.HealthHealthy, Owned: true, PID: 4242, Port: 3000},
		{Name: "python-backend", State: api.StateRunning, Health: api.HealthUnknown, Port: 8000, Detail: "already running"},
	}))

	out := buf.String()
	assert.Contains(t, out, "4242")
	assert.Contains(t, out, "already running")
	assert.Contains(t, out, "yes")
}

func TestJSONFormatter_Report(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Format: FormatJSON, Out: &buf}).FormatReport(sampleReport()))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-1", got["runId"])
	assert.Equal(t, "1m30s", got["duration"])

	summary := got["summary"].(map[string]interface{})
	assert.EqualValues(t, 1, summary["installs"])
	assert.Equal(t, []interface{}{"postgres", "postgres-auth"}, summary["degraded"])

	outcomes := got["outcomes"].([]interface{})
	first := outcomes[0].(map[string]interface{})
	assert.Equal(t, "42s", first["duration"])
	assert.Equal(t, true, first["installInvoked"])
}

func TestYAMLFormatter_Report(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Format: FormatYAML, Out: &buf}).FormatReport(sampleReport()))

	assert.Contains(t, buf.String(), "runId: run-1")
	assert.Contains(t, buf.String(), "reason: InstallFailed")

	var got reportView
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Len(t, got.Outcomes, 3)
	assert.Equal(t, "skipped", got.Outcomes[2].State)
}

func TestFormatServices_EmptyList(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Format: FormatJSON, Out: &buf}).FormatServices(nil))
	assert.JSONEq(t, `{"services": []}`, buf.String())
}
