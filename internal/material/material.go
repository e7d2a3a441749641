// Package material describes material compositions and renders the FISPACT
// initial inventory block for a volume of material.
package material

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Avogadro is the Avogadro constant in 1/mol.
const Avogadro = 6.02214076e23

// ErrComposition is returned for empty, mixed or non-positive compositions.
var ErrComposition = errors.New("material: invalid composition")

// Material is a homogeneous mixture at a given density.
//
// Natural holds element weight fractions for elements of natural isotopic
// abundance; Isotopes holds atomic fractions of explicit nuclides. Exactly
// one of them is set. Fractions need not be normalized.
type Material struct {
	Name     string             `yaml:"-" json:"name"`
	Density  float64            `yaml:"density" json:"density" validate:"gt=0"`
	Natural  map[string]float64 `yaml:"natural,omitempty" json:"natural,omitempty"`
	Isotopes map[string]float64 `yaml:"isotopes,omitempty" json:"isotopes,omitempty"`
}

// Validate checks and normalizes the composition in place.
func (m *Material) Validate() error {
	if m.Density <= 0 {
		return fmt.Errorf("%w: %s: density %g must be positive", ErrComposition, m.Name, m.Density)
	}
	if (len(m.Natural) == 0) == (len(m.Isotopes) == 0) {
		return fmt.Errorf("%w: %s: exactly one of natural and isotopes is required", ErrComposition, m.Name)
	}
	if len(m.Natural) > 0 {
		out, err := normalize(m.Name, m.Natural, func(s string) (string, error) { return Element(s) })
		if err != nil {
			return err
		}
		m.Natural = out
		return nil
	}
	out, err := normalize(m.Name, m.Isotopes, func(s string) (string, error) {
		n, err := ParseNuclide(s)
		return n.String(), err
	})
	if err != nil {
		return err
	}
	m.Isotopes = out
	return nil
}

func normalize(name string, fr map[string]float64, key func(string) (string, error)) (map[string]float64, error) {
	var total float64
	out := make(map[string]float64, len(fr))
	for k, v := range fr {
		if v <= 0 {
			return nil, fmt.Errorf("%w: %s: fraction of %s is %g", ErrComposition, name, k, v)
		}
		nk, err := key(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrComposition, name, err)
		}
		out[nk] += v
		total += v
	}
	for k := range out {
		out[k] /= total
	}
	return out, nil
}

// Concentration returns the number of atoms per cm3 of an isotopic material.
// The molar mass of a nuclide is approximated by its mass number.
func (m *Material) Concentration() float64 {
	var molar float64
	for name, x := range m.Isotopes {
		n, err := ParseNuclide(name)
		if err != nil {
			continue
		}
		molar += x * float64(n.A)
	}
	if molar == 0 {
		return 0
	}
	return m.Density * Avogadro / molar
}

// Mass returns the mass in kg of volume cm3 of the material.
func (m *Material) Mass(volume float64) float64 {
	return volume * m.Density / 1000
}

type component struct {
	code  string
	value float64
}

// Block renders the FISPACT material description of volume cm3: DENSITY,
// then MASS with element weight percents for natural compositions or FUEL
// with atom counts for isotopic ones. Components are sorted by decreasing
// value.
func (m *Material) Block(volume float64) []string {
	lines := []string{"DENSITY " + repr(m.Density)}

	var comps []component
	if len(m.Natural) > 0 {
		for e, w := range m.Natural {
			comps = append(comps, component{e, w * 100})
		}
		lines = append(lines, fmt.Sprintf("MASS %s %d", short(m.Mass(volume)), len(comps)))
	} else {
		atoms := volume * m.Concentration()
		for n, x := range m.Isotopes {
			comps = append(comps, component{n, x * atoms})
		}
		lines = append(lines, fmt.Sprintf("FUEL  %d", len(comps)))
	}

	sort.Slice(comps, func(i, j int) bool {
		if comps[i].value != comps[j].value {
			return comps[i].value > comps[j].value
		}
		return comps[i].code < comps[j].code
	})
	for _, c := range comps {
		lines = append(lines, fmt.Sprintf("  %-2s   %.5e", c.code, c.value))
	}
	return lines
}

// repr formats like a shortest round-trip float with a mandatory decimal.
func repr(v float64) string {
	return withPoint(strconv.FormatFloat(v, 'g', -1, 64))
}

// short formats with five significant digits.
func short(v float64) string {
	return withPoint(strconv.FormatFloat(v, 'g', 5, 64))
}

func withPoint(s string) string {
	if strings.ContainsAny(s, ".eEnN") {
		return s
	}
	return s + ".0"
}
