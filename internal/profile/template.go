package profile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	fluxKeyword = regexp.MustCompile(`(?i)FLUX +`)
	zeroFlux    = regexp.MustCompile(`^0(?:[ \n]|$)`)
	fluxNumber  = longest(`^(?:\d*\.\d+(?:[eE][-+]?\d+)?|\d+\.?(?:[eE][-+]?\d+)?)`)
)

func longest(expr string) *regexp.Regexp {
	re := regexp.MustCompile(expr)
	re.Longest()
	return re
}

// ScenarioTemplate is an irradiation scenario read from a text template.
// Every non-zero "FLUX <value>" becomes a coefficient value/norm, and
// rendering writes nominal*coefficient in its place.
//
// A ScenarioTemplate is immutable and safe for concurrent use.
type ScenarioTemplate struct {
	parts  []string
	coeffs []float64
}

// ParseScenarioTemplate builds a template from scenario text normalized to
// norm.
func ParseScenarioTemplate(text string, norm float64) (*ScenarioTemplate, error) {
	if norm <= 0 {
		return nil, fmt.Errorf("%w: normalization flux %g must be positive", ErrValidation, norm)
	}

	st := &ScenarioTemplate{}
	var cur strings.Builder
	rest := text
	for {
		loc := fluxKeyword.FindStringIndex(rest)
		if loc == nil {
			cur.WriteString(rest)
			break
		}
		cur.WriteString(rest[:loc[1]])
		rest = rest[loc[1]:]

		if zeroFlux.MatchString(rest) {
			continue
		}
		m := fluxNumber.FindString(rest)
		if m == "" || !endsNumber(rest[len(m):]) {
			return nil, fmt.Errorf("%w: scenario template has a malformed flux near %q",
				ErrValidation, firstLine(rest))
		}
		v, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: flux %q: %v", ErrValidation, m, err)
		}
		st.parts = append(st.parts, cur.String())
		st.coeffs = append(st.coeffs, v/norm)
		cur.Reset()
		rest = rest[len(m):]
	}
	st.parts = append(st.parts, cur.String())
	return st, nil
}

func endsNumber(s string) bool {
	return s == "" || strings.ContainsAny(s[:1], " \n-+\r\t")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Render substitutes nominal-scaled fluxes into the template.
func (st *ScenarioTemplate) Render(nominal float64) string {
	var b strings.Builder
	for i, c := range st.coeffs {
		b.WriteString(st.parts[i])
		fmt.Fprintf(&b, "%.4e", nominal*c)
	}
	b.WriteString(st.parts[len(st.parts)-1])
	return b.String()
}

// Lines renders the template and splits it into lines, dropping a trailing
// empty line.
func (st *ScenarioTemplate) Lines(nominal float64) []string {
	return strings.Split(strings.TrimRight(st.Render(nominal), "\n"), "\n")
}
