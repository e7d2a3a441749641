// Package profile describes irradiation scenarios and renders them as
// FISPACT FLUX/TIME/ZERO directives.
package profile

import (
	"fmt"
	"slices"
)

// Record selects the FISPACT output produced at the end of a step.
type Record string

const (
	RecordNone  Record = ""
	RecordAtoms Record = "ATOMS"
	RecordSpec  Record = "SPEC"
)

// ParseRecord validates a record keyword.
func ParseRecord(s string) (Record, error) {
	switch r := Record(s); r {
	case RecordNone, RecordAtoms, RecordSpec:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRecord, s)
}

// Profile is an ordered list of irradiation and relaxation steps.
//
// The zero index is the last irradiation step: rendering switches the flux
// off and emits ZERO right after it, so later times are cooling times.
//
// A Profile is built by one goroutine; once built, Render may be called
// concurrently.
type Profile struct {
	norm    float64
	flux    []float64
	times   TimeSeries
	records []Record
	zero    int
}

// New returns an empty profile. norm is the flux the step fluxes are
// normalized to; zero disables scaling on Render.
func New(norm float64) *Profile {
	return &Profile{norm: norm}
}

// Norm returns the normalization flux.
func (p *Profile) Norm() float64 { return p.norm }

// Len returns the number of steps.
func (p *Profile) Len() int { return len(p.flux) }

// ZeroIndex returns the index of the step that ends irradiation.
func (p *Profile) ZeroIndex() int { return p.zero }

// MeasureTimes returns the end time of every step in seconds.
func (p *Profile) MeasureTimes() []float64 { return p.times.Points() }

// Durations returns the step durations in seconds.
func (p *Profile) Durations() []float64 { return p.times.Durations() }

// Fluxes returns the step fluxes.
func (p *Profile) Fluxes() []float64 { return slices.Clone(p.flux) }

// Records returns the step records.
func (p *Profile) Records() []Record { return slices.Clone(p.records) }

// Irradiate appends an irradiation step. When nominal is set the step flux
// becomes the normalization flux.
func (p *Profile) Irradiate(flux, duration float64, units TimeUnit, record Record, nominal bool) error {
	if _, err := ParseRecord(string(record)); err != nil {
		return err
	}
	if flux < 0 {
		return fmt.Errorf("%w: %g", ErrNegativeFlux, flux)
	}
	if err := p.times.AppendInterval(duration, units); err != nil {
		return err
	}
	p.flux = append(p.flux, flux)
	p.records = append(p.records, record)
	p.zero = p.times.Len() - 1
	if nominal {
		p.norm = flux
	}
	return nil
}

// Relax appends a zero-flux step.
func (p *Profile) Relax(duration float64, units TimeUnit, record Record) error {
	if _, err := ParseRecord(string(record)); err != nil {
		return err
	}
	if err := p.times.AppendInterval(duration, units); err != nil {
		return err
	}
	p.flux = append(p.flux, 0)
	p.records = append(p.records, record)
	return nil
}

// InsertRecord adds an observation point at time t from the profile start.
// The step containing t is split in two, both halves keeping its flux. A
// point after the last step extends the profile with the last step's flux.
// At an existing step end the record is set on that step, unless the step
// already records.
func (p *Profile) InsertRecord(record Record, t float64, units TimeUnit) (int, error) {
	if _, err := ParseRecord(string(record)); err != nil {
		return 0, err
	}
	i, inserted, err := p.times.InsertPoint(t, units)
	if err != nil {
		return 0, err
	}
	if !inserted {
		if p.records[i] == RecordNone {
			p.records[i] = record
		}
		return i, nil
	}

	var flux float64
	switch {
	case i < len(p.flux):
		flux = p.flux[i]
	case len(p.flux) > 0:
		flux = p.flux[len(p.flux)-1]
	}
	p.flux = slices.Insert(p.flux, i, flux)
	p.records = slices.Insert(p.records, i, record)
	if i <= p.zero {
		p.zero++
	}
	return i, nil
}

// Render returns the scenario directives for a point whose nominal flux is
// nominal. Step fluxes are scaled by nominal/norm when the profile has a
// normalization flux. A FLUX directive is only written when the flux
// changes.
func (p *Profile) Render(nominal float64) []string {
	factor := 1.0
	if p.norm != 0 {
		factor = nominal / p.norm
	}

	var lines []string
	var last float64
	for i, d := range p.times.Durations() {
		cur := p.flux[i] * factor
		if cur != last {
			lines = append(lines, "FLUX "+formatShort(cur, 5))
		}
		v, u := AdjustTime(d)
		lines = append(lines, fmt.Sprintf("TIME %s %s %s", formatShort(v, 5), u, p.records[i]))
		last = cur
		if i == p.zero {
			last = 0
			lines = append(lines, "FLUX 0", "ZERO")
		}
	}
	return lines
}

// Lines implements the scenario interface of the inventory renderer.
func (p *Profile) Lines(nominal float64) []string { return p.Render(nominal) }
