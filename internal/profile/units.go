package profile

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// TimeUnit is a FISPACT time unit keyword.
type TimeUnit string

const (
	Secs  TimeUnit = "SECS"
	Mins  TimeUnit = "MINS"
	Hours TimeUnit = "HOURS"
	Days  TimeUnit = "DAYS"
	Years TimeUnit = "YEARS"
)

var unitSeconds = map[TimeUnit]float64{
	Secs:  1,
	Mins:  60,
	Hours: 3600,
	Days:  3600 * 24,
	Years: 3600 * 24 * 365,
}

// adjustOrder lists units from the largest down.
var adjustOrder = []TimeUnit{Years, Days, Hours, Mins, Secs}

// ParseTimeUnit parses a unit keyword, case-insensitively.
func ParseTimeUnit(s string) (TimeUnit, error) {
	u := TimeUnit(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := unitSeconds[u]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownUnits, s)
	}
	return u, nil
}

// Seconds returns the length of one unit in seconds, or 0 for unknown units.
func (u TimeUnit) Seconds() float64 { return unitSeconds[u] }

func (u TimeUnit) valid() bool {
	_, ok := unitSeconds[u]
	return ok
}

// AdjustTime expresses seconds in the largest unit giving a value >= 1.
func AdjustTime(seconds float64) (float64, TimeUnit) {
	for _, u := range adjustOrder {
		if d := seconds / u.Seconds(); d >= 1 {
			return d, u
		}
	}
	return seconds, Secs
}

var literalSeconds = map[rune]float64{
	's': 1,
	'm': 60,
	'h': 3600,
	'd': 24 * 3600,
	'y': 24 * 3600 * 365,
}

// ConvertTimeLiteral converts literals such as "30s", "1.5h", "d" or "209"
// to whole seconds. A bare number is in seconds and a bare unit means one.
func ConvertTimeLiteral(lit string) (int, error) {
	lit = strings.TrimSpace(lit)
	if lit == "" {
		return 0, fmt.Errorf("%w: empty time literal", ErrValidation)
	}

	value, mult := lit, 1.0
	last := rune(lit[len(lit)-1])
	if unicode.IsLetter(last) {
		m, ok := literalSeconds[unicode.ToLower(last)]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownUnits, lit)
		}
		value, mult = lit[:len(lit)-1], m
	}
	if value == "" {
		value = "1"
	}

	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: time literal %q", ErrValidation, lit)
	}
	return int(v * mult), nil
}
