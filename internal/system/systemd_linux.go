//go:build linux

package system

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
)

// UnitActive reports whether the systemd unit is in the "active" state. It
// only reads from the system bus and needs no privileges.
func UnitActive(ctx context.Context, unit string) (bool, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to connect to systemd: %w", err)
	}
	defer conn.Close()

	prop, err := conn.GetUnitPropertyContext(ctx, unitName(unit), "ActiveState")
	if err != nil {
		return false, fmt.Errorf("failed to query unit %s: %w", unit, err)
	}
	state, ok := prop.Value.Value().(string)
	if !ok {
		return false, fmt.Errorf("unexpected ActiveState value for %s: %v", unit, prop.Value)
	}
	return state == "active", nil
}
