//go:build !linux && !windows

package system

import (
	"context"
	"fmt"
)

const psScanCommand = "ps -axo pid=,command="

func newLister() lister {
	return func(ctx context.Context) ([]Process, error) {
		out, err := execCommandContext(ctx, "ps", "-axo", "pid=,command=").Output()
		if err != nil {
			return nil, fmt.Errorf("failed to list processes: %w", err)
		}
		return parsePSOutput(out, psScanCommand), nil
	}
}
