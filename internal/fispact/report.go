package fispact

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/roach88/r2s/internal/material"
)

type reportJSON struct {
	InventoryData []struct {
		Duration      float64 `json:"duration"`
		GammaSpectrum *struct {
			Boundaries []float64 `json:"boundaries"`
			Values     []float64 `json:"values"`
		} `json:"gamma_spectrum"`
		Nuclides []struct {
			Element  string  `json:"element"`
			Isotope  int     `json:"isotope"`
			State    string  `json:"state"`
			Atoms    float64 `json:"atoms"`
			Activity float64 `json:"activity"`
		} `json:"nuclides"`
	} `json:"inventory_data"`
}

// NuclideTime addresses a nuclide quantity at a time label.
type NuclideTime struct {
	Time    int
	Nuclide string
}

// Report is the content of an inventory report the workflow uses.
type Report struct {
	// Times are the step end times in whole seconds.
	Times []int

	// EBins are the gamma group boundaries in MeV.
	EBins []float64

	Atoms    map[NuclideTime]float64
	Activity map[NuclideTime]float64

	// Gamma is the photon yield per group and time, in photons per second.
	Gamma map[int][]float64
}

// ReadReport reads the JSON inventory report at path.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	r, err := ParseReport(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// ParseReport decodes a JSON inventory report. Time labels are the running
// sums of step durations. Gamma yields are the spectrum values divided by
// the mean energy of each group.
func ParseReport(data []byte) (*Report, error) {
	var rj reportJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	if len(rj.InventoryData) == 0 {
		return nil, fmt.Errorf("parse report: no inventory data")
	}

	r := &Report{
		Atoms:    make(map[NuclideTime]float64),
		Activity: make(map[NuclideTime]float64),
		Gamma:    make(map[int][]float64),
	}
	for _, step := range rj.InventoryData {
		if gs := step.GammaSpectrum; gs != nil && len(gs.Boundaries) > 1 {
			r.EBins = gs.Boundaries
			break
		}
	}

	var elapsed float64
	for n, step := range rj.InventoryData {
		elapsed += step.Duration
		t := int(elapsed)
		r.Times = append(r.Times, t)

		if gs := step.GammaSpectrum; gs != nil && len(gs.Values) > 0 {
			if len(gs.Values) != len(r.EBins)-1 {
				return nil, fmt.Errorf("parse report: step %d has %d gamma values for %d groups",
					n, len(gs.Values), len(r.EBins)-1)
			}
			yield := make([]float64, len(gs.Values))
			for g, v := range gs.Values {
				yield[g] = v / (0.5 * (r.EBins[g] + r.EBins[g+1]))
			}
			r.Gamma[t] = yield
		}

		for _, nuc := range step.Nuclides {
			name, err := nuclideName(nuc.Element, nuc.Isotope, nuc.State)
			if err != nil {
				return nil, fmt.Errorf("parse report: step %d: %w", n, err)
			}
			k := NuclideTime{Time: t, Nuclide: name}
			if !math.IsNaN(nuc.Atoms) {
				r.Atoms[k] = nuc.Atoms
			}
			if !math.IsNaN(nuc.Activity) {
				r.Activity[k] = nuc.Activity
			}
		}
	}
	return r, nil
}

func nuclideName(element string, isotope int, state string) (string, error) {
	e, err := material.Element(element)
	if err != nil {
		return "", err
	}
	return material.Nuclide{Element: e, A: isotope, State: state}.String(), nil
}
