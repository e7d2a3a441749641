package profile

import (
	"strconv"
	"strings"
)

// formatShort formats v with prec significant digits in the general format
// FISPACT scenarios are written with: trailing zeros are trimmed and a
// fixed-point result always keeps one decimal ("25.0", "1.25", "4.5643e+12").
func formatShort(v float64, prec int) string {
	s := strconv.FormatFloat(v, 'g', prec, 64)
	if strings.ContainsAny(s, ".eEnN") {
		return s
	}
	return s + ".0"
}
