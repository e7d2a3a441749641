package fispact

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Standard file names of a case directory.
const (
	FilesName        = "files"
	ConvertFilesName = "files.convert"
	ConvertInput     = "convert"
	CollapseInput    = "collapse"
	CondenseInput    = "condense"
	InventoryInput   = "inventory"
	ArbFluxName      = "arb_flux"
	FluxesName       = "fluxes"
	CollapxName      = "COLLAPX"
	ArrayxName       = "ARRAYX"
	ReportName       = InventoryInput + ".json"
)

// GroupStructure is the FISPACT group structure fluxes are converted to.
const GroupStructure = 709

// Scenario renders the irradiation directives of an inventory input for a
// point whose nominal flux is nominal.
type Scenario interface {
	Lines(nominal float64) []string
}

// Manifest holds the non-library entries of a files manifest.
type Manifest struct {
	Fluxes  string
	Collapx string
	Arrayx  string
}

// Files renders the files manifest. Libraries are written in LibraryOrder,
// names padded to the longest library name plus two spaces.
func Files(libs map[string]string, m Manifest) (string, error) {
	width := 0
	for name := range libs {
		if !IsLibrary(name) {
			return "", fmt.Errorf("unknown FISPACT library %q", name)
		}
		width = max(width, len(name))
	}

	var b strings.Builder
	for _, name := range LibraryOrder {
		if path, ok := libs[name]; ok {
			fmt.Fprintf(&b, "%s%s%s\n", name, strings.Repeat(" ", width-len(name)+2), path)
		}
	}
	fmt.Fprintf(&b, "fluxes  %s\n", m.Fluxes)
	fmt.Fprintf(&b, "collapxi  %s\n", m.Collapx)
	fmt.Fprintf(&b, "collapxo  %s\n", m.Collapx)
	fmt.Fprintf(&b, "arrayx  %s\n", m.Arrayx)
	return b.String(), nil
}

// ConvertFiles renders the manifest of the flux conversion step.
func ConvertFiles() string {
	return fmt.Sprintf("fluxes  %s\narb_flux  %s\n", FluxesName, ArbFluxName)
}

// ArbFlux renders an arbitrary group flux for conversion. ebins are group
// boundaries in MeV; FISPACT reads them in eV, highest energy first.
func ArbFlux(ebins, flux []float64) string {
	var b strings.Builder
	writeColumns(&b, len(ebins), func(i int) float64 { return ebins[len(ebins)-1-i] * 1e6 })
	writeColumns(&b, len(flux), func(i int) float64 { return flux[len(flux)-1-i] })
	b.WriteString("1\n")
	fmt.Fprintf(&b, "total flux=%.6e", floats.Sum(flux))
	return b.String()
}

func writeColumns(b *strings.Builder, n int, at func(int) float64) {
	const ncols = 6
	for i := range n {
		fmt.Fprintf(b, "%.6e", at(i))
		if (i+1)%ncols == 0 || i == n-1 {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
	}
}

// Convert renders the input converting an arbitrary flux of groups groups.
func Convert(groups int) string {
	return strings.Join([]string{
		"<< convert flux to 709 group structure >>",
		"CLOBBER",
		fmt.Sprintf("GRPCONVERT %d %d", groups, GroupStructure),
		"FISPACT",
		"* SPECTRAL MODIFICATION",
		"END",
		"* END",
	}, "\n")
}

// Collapse renders the cross section collapse input.
func Collapse(libxs int) string {
	return strings.Join([]string{
		"<< collapse cross section data >>",
		"CLOBBER",
		fmt.Sprintf("GETXS %d %d", libxs, GroupStructure),
		"FISPACT",
		"* COLLAPSE",
		"END",
		"* END OF RUN",
	}, "\n")
}

// Condense renders the decay data condense input, run once per task.
func Condense() string {
	return strings.Join([]string{
		"<< Condense decay data >>",
		"CLOBBER",
		"SPEK",
		"GETDECAY 1",
		"FISPACT",
		"* CONDENSE",
		"END",
		"* END OF RUN",
	}, "\n")
}

// Inventory renders an inventory input: header, the material block,
// calculation parameters, the scenario and the footer.
func Inventory(title string, materialBlock []string, s Settings, scenario Scenario, nominal float64) string {
	text := []string{
		fmt.Sprintf("<< %s >>", title),
		"CLOBBER",
		"GETXS 0",
		"GETDECAY 0",
		"FISPACT",
		"* " + title,
	}
	text = append(text, materialBlock...)

	text = append(text, fmt.Sprintf("MIND  %.5e", s.Mind))
	for _, p := range []struct {
		on  bool
		key string
	}{
		{s.UseFission, "USEFISSION"},
		{s.Half, "HALF"},
		{s.Hazards, "HAZARDS"},
		{s.Tab1, "TAB1 1"},
		{s.Tab2, "TAB2 1"},
		{s.Tab3, "TAB3 1"},
		{s.Tab4, "TAB4 1"},
		{s.NoStable, "NOSTABLE"},
	} {
		if p.on {
			text = append(text, p.key)
		}
	}
	if t := s.InventoryTolerance; len(t) == 2 {
		text = append(text, fmt.Sprintf("TOLERANCE  0  %.5e  %.5e", t[0], t[1]))
	}
	if t := s.PathTolerance; len(t) == 2 {
		text = append(text, fmt.Sprintf("TOLERANCE  1  %.5e  %.5e", t[0], t[1]))
	}
	if s.Uncertainty > 0 {
		text = append(text, fmt.Sprintf("UNCERTAINTY %d", s.Uncertainty))
	}
	text = append(text, "JSON")

	text = append(text, scenario.Lines(nominal)...)
	text = append(text, "END", "* END of calculations")
	return strings.Join(text, "\n")
}
