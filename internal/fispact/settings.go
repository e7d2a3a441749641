package fispact

import "slices"

// LibraryOrder is the order FISPACT expects nuclear data entries in the
// files manifest.
var LibraryOrder = []string{
	"ind_nuc", "xs_endf", "xs_endfb", "prob_tab", "fy_endf", "sf_endf",
	"dk_endf", "hazards", "clear", "a2data", "absorp",
}

// Settings are the inventory calculation parameters shared by every case.
type Settings struct {
	Libraries          map[string]string `json:"libs" yaml:"libs" validate:"required,min=1"`
	BinaryLibs         bool              `json:"binary_libs" yaml:"binary_libs"`
	Mind               float64           `json:"mind" yaml:"mind" validate:"gte=0"`
	UseFission         bool              `json:"use_fission" yaml:"use_fission"`
	Half               bool              `json:"half" yaml:"half"`
	Hazards            bool              `json:"hazards" yaml:"hazards"`
	Tab1               bool              `json:"tab1" yaml:"tab1"`
	Tab2               bool              `json:"tab2" yaml:"tab2"`
	Tab3               bool              `json:"tab3" yaml:"tab3"`
	Tab4               bool              `json:"tab4" yaml:"tab4"`
	NoStable           bool              `json:"nostable" yaml:"nostable"`
	InventoryTolerance []float64         `json:"inventory_tolerance,omitempty" yaml:"inventory_tolerance" validate:"omitempty,len=2"`
	PathTolerance      []float64         `json:"path_tolerance,omitempty" yaml:"path_tolerance" validate:"omitempty,len=2"`
	Uncertainty        int               `json:"uncertainty" yaml:"uncertainty" validate:"gte=0,lte=3"`
}

// IsLibrary reports whether name is a FISPACT library entry.
func IsLibrary(name string) bool { return slices.Contains(LibraryOrder, name) }

// LibXS returns the GETXS library flag: -1 for binary, 1 for text libraries.
func (s Settings) LibXS() int {
	if s.BinaryLibs {
		return -1
	}
	return 1
}
