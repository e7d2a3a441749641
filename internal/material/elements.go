package material

import (
	"fmt"
	"regexp"
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var symbols = []string{
	"H", "He", "Li", "Be", "B", "C", "N", "O", "F", "Ne",
	"Na", "Mg", "Al", "Si", "P", "S", "Cl", "Ar", "K", "Ca",
	"Sc", "Ti", "V", "Cr", "Mn", "Fe", "Co", "Ni", "Cu", "Zn",
	"Ga", "Ge", "As", "Se", "Br", "Kr", "Rb", "Sr", "Y", "Zr",
	"Nb", "Mo", "Tc", "Ru", "Rh", "Pd", "Ag", "Cd", "In", "Sn",
	"Sb", "Te", "I", "Xe", "Cs", "Ba", "La", "Ce", "Pr", "Nd",
	"Pm", "Sm", "Eu", "Gd", "Tb", "Dy", "Ho", "Er", "Tm", "Yb",
	"Lu", "Hf", "Ta", "W", "Re", "Os", "Ir", "Pt", "Au", "Hg",
	"Tl", "Pb", "Bi", "Po", "At", "Rn", "Fr", "Ra", "Ac", "Th",
	"Pa", "U", "Np", "Pu", "Am", "Cm", "Bk", "Cf", "Es", "Fm",
}

var known = func() map[string]bool {
	m := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		m[s] = true
	}
	return m
}()

var nuclideRE = regexp.MustCompile(`^([A-Za-z]{1,2})-?(\d{1,3})([mn]?)$`)

// Element normalizes an element symbol ("FE", "fe" -> "Fe").
func Element(s string) (string, error) {
	// Casers are stateful, so each call gets its own.
	e := cases.Title(language.Und).String(s)
	if !known[e] {
		return "", fmt.Errorf("unknown element %q", s)
	}
	return e, nil
}

// Nuclide is an isotope identified by element, mass number and isomeric state.
type Nuclide struct {
	Element string
	A       int
	State   string
}

// String returns the FISPACT name, e.g. "Co60" or "Co60m".
func (n Nuclide) String() string {
	return n.Element + strconv.Itoa(n.A) + n.State
}

// ParseNuclide parses names such as "Fe56", "fe-56" or "Co60m".
func ParseNuclide(s string) (Nuclide, error) {
	m := nuclideRE.FindStringSubmatch(s)
	if m == nil {
		return Nuclide{}, fmt.Errorf("malformed nuclide %q", s)
	}
	e, err := Element(m[1])
	if err != nil {
		return Nuclide{}, err
	}
	a, _ := strconv.Atoi(m[2])
	if a == 0 {
		return Nuclide{}, fmt.Errorf("nuclide %q: mass number must be positive", s)
	}
	return Nuclide{Element: e, A: a, State: m[3]}, nil
}
