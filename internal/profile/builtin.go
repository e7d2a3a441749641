package profile

import (
	"fmt"
	"sort"
)

// Named returns a built-in profile by name.
func Named(name string) (*Profile, error) {
	build, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: no built-in profile %q (have %v)", ErrValidation, name, BuiltinNames())
	}
	return build(), nil
}

// BuiltinNames lists the built-in profiles.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var builtins = map[string]func() *Profile{
	"sa2": SA2,
}

// SA2 returns the ITER SA2 irradiation scenario followed by the standard
// set of cooling times, normalized to 4.5643e12.
func SA2() *Profile {
	p := New(4.5643e12)
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(p.Irradiate(2.4452e10, 2, Years, RecordAtoms, false))
	must(p.Irradiate(1.8828e11, 10, Years, RecordAtoms, false))
	must(p.Relax(0.667, Years, RecordAtoms))
	must(p.Irradiate(3.7900e11, 1.330, Years, RecordAtoms, false))
	for range 17 {
		must(p.Relax(3920, Secs, RecordAtoms))
		must(p.Irradiate(4.5643e12, 400, Secs, RecordAtoms, false))
	}
	for range 3 {
		must(p.Relax(3920, Secs, RecordAtoms))
		must(p.Irradiate(6.3900e12, 400, Secs, RecordAtoms, false))
	}

	cooling := []struct {
		d float64
		u TimeUnit
	}{
		{1, Secs}, {299, Secs}, {25, Mins}, {30, Mins}, {2, Hours}, {2, Hours},
		{5, Hours}, {14, Hours}, {2, Days}, {4, Days}, {23, Days}, {60, Days},
		{275.25, Days}, {2, Years}, {7, Years}, {20, Years}, {20, Years},
		{50, Years}, {900, Years},
	}
	for _, c := range cooling {
		must(p.Relax(c.d, c.u, RecordAtoms))
	}
	return p
}
