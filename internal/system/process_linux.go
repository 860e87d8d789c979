//go:build linux

package system

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/procfs"
)

// newLister reads /proc directly, so no helper process shows up in the scan.
func newLister() lister {
	return func(ctx context.Context) ([]Process, error) {
		procs, err := procfs.AllProcs()
		if err != nil {
			return nil, fmt.Errorf("failed to read process table: %w", err)
		}

		res := make([]Process, 0, len(procs))
		for _, p := range procs {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			args, err := p.CmdLine()
			if err != nil {
				// Process exited between listing and reading.
				continue
			}
			command := strings.Join(args, " ")
			if command == "" {
				// Kernel threads have no command line.
				if comm, err := p.Comm(); err == nil {
					command = comm
				}
			}
			res = append(res, Process{PID: p.PID, Command: command})
		}
		return res, nil
	}
}
