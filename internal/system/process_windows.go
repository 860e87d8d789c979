//go:build windows

package system

import (
	"context"
	"fmt"
)

const cimScanMarker = "stackpilot-process-scan"

const cimScanScript = "# " + cimScanMarker + "\n" +
	"Get-CimInstance Win32_Process | ForEach-Object { \"$($_.ProcessId)`t$($_.CommandLine)\" }"

func newLister() lister {
	return func(ctx context.Context) ([]Process, error) {
		out, err := execCommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", cimScanScript).Output()
		if err != nil {
			return nil, fmt.Errorf("failed to list processes: %w", err)
		}
		return parseTabbedOutput(out, cimScanMarker), nil
	}
}
