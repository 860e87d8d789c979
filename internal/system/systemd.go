package system

import "strings"

// unitName appends the .service suffix when the unit has no type suffix.
func unitName(unit string) string {
	if strings.Contains(unit, ".") {
		return unit
	}
	return unit + ".service"
}
