//go:build !linux

package system

import (
	"context"
	"errors"
)

// UnitActive is only available on linux.
func UnitActive(ctx context.Context, unit string) (bool, error) {
	return false, errors.ErrUnsupported
}
