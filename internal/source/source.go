// Package source writes the decay gamma source of a gamma frame as an MCNP
// SDEF card with nested cell, energy and position distributions.
package source

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/r2s/internal/spatial"
)

// ErrZeroIntensity is returned for a frame without any gamma intensity.
var ErrZeroIntensity = errors.New("source: total intensity is zero")

// LineWidth is the longest card line written.
const LineWidth = 80

const continuation = "     "

var particles = map[string]int{"n": 1, "p": 2, "e": 3}

// Options control source synthesis.
type Options struct {
	// StartDistribution is the number of the first distribution. Zero
	// means 1.
	StartDistribution int

	// IntensityFilter rejects entries below this fraction of the total
	// intensity.
	IntensityFilter float64

	// VolumeFilter rejects entries whose cell volume is below this fraction
	// of the voxel volume.
	VolumeFilter float64

	// Particle is the source particle, "p" when empty.
	Particle string
}

// Distribution is a histogram source distribution with one probability per
// pair of consecutive values.
type Distribution struct {
	Name   int
	Values []float64
	Probs  []float64
}

// Lines returns the SI and SP cards of d.
func (d Distribution) Lines() []string {
	si := []string{"SI" + strconv.Itoa(d.Name), "H"}
	for _, v := range d.Values {
		si = append(si, formatFloat(v))
	}
	sp := []string{"SP" + strconv.Itoa(d.Name), "D", "0"}
	for _, p := range d.Probs {
		sp = append(sp, formatProb(p))
	}
	return append(wrap(si), wrap(sp)...)
}

// BinDistributions returns one uniform distribution per bin of bins,
// numbered from start, and the next free number.
func BinDistributions(bins []float64, start int) (int, []Distribution) {
	if len(bins) < 2 {
		return start, nil
	}
	out := make([]Distribution, len(bins)-1)
	for i := range out {
		out[i] = Distribution{
			Name:   start + i,
			Values: []float64{bins[i], bins[i+1]},
			Probs:  []float64{1},
		}
	}
	return start + len(out), out
}

// Source is a synthesized SDEF.
type Source struct {
	Total             float64
	IntensityRejected float64
	VolumeRejected    float64
	Entries           int

	// Peak is the cell part with the largest intensity summed over
	// groups, before filtering.
	Peak          spatial.Key
	PeakIntensity float64

	lines []string
}

// IntensityRejectedPct returns the share of the total rejected by the
// intensity filter, in percent.
func (s *Source) IntensityRejectedPct() float64 { return 100 * s.IntensityRejected / s.Total }

// VolumeRejectedPct returns the share of the total rejected by the volume
// filter, in percent.
func (s *Source) VolumeRejectedPct() float64 { return 100 * s.VolumeRejected / s.Total }

// String returns the cards, one per line.
func (s *Source) String() string { return strings.Join(s.lines, "\n") + "\n" }

// WriteTo writes the cards to w.
func (s *Source) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, s.String())
	return int64(n), err
}

// Build synthesizes the source of a gamma frame. volumes holds the volume
// of every (cell, i, j, k) of the frame index.
func Build(f *spatial.Frame, volumes map[spatial.Key]float64, opts Options) (*Source, error) {
	if f.Kind != spatial.KindGamma || len(f.Bins) < 2 {
		return nil, fmt.Errorf("source: frame %s/%d has no gamma groups", f.Kind, f.Time)
	}
	par, ok := particles[opts.particle()]
	if !ok {
		return nil, fmt.Errorf("source: unknown particle %q", opts.Particle)
	}
	start := opts.StartDistribution
	if start <= 0 {
		start = 1
	}

	src := &Source{Total: f.Total()}
	if !(src.Total > 0) {
		return nil, ErrZeroIntensity
	}
	for k, v := range f.ColumnTotals() {
		if v > src.PeakIntensity || v == src.PeakIntensity && spatial.CompareKeys(k, src.Peak) < 0 {
			src.Peak, src.PeakIntensity = k, v
		}
	}

	var accepted []spatial.Entry
	for _, e := range f.Nonzero() {
		switch {
		case e.Value < opts.IntensityFilter*src.Total:
			src.IntensityRejected += e.Value
		case volumes[e.Key] < opts.VolumeFilter*f.VoxelVolume(e.Key.I, e.Key.J, e.Key.K):
			src.VolumeRejected += e.Value
		default:
			accepted = append(accepted, e)
		}
	}
	src.Entries = len(accepted)
	if len(accepted) == 0 {
		return nil, fmt.Errorf("%w: every entry was rejected", ErrZeroIntensity)
	}

	cel, erg, x, y, z := start, start+1, start+2, start+3, start+4
	next, ergDist := BinDistributions(f.Bins, start+5)
	next, xDist := BinDistributions(f.XBins, next)
	next, yDist := BinDistributions(f.YBins, next)
	_, zDist := BinDistributions(f.ZBins, next)

	src.lines = append(src.lines,
		fmt.Sprintf("C total intensity %s gamma/s", formatProb(src.Total)),
		fmt.Sprintf("C rejected by intensity %.4f%%, by volume %.4f%%", src.IntensityRejectedPct(), src.VolumeRejectedPct()),
	)
	src.lines = append(src.lines, wrap(strings.Fields(fmt.Sprintf(
		"SDEF PAR=%d CEL=D%d ERG=FCEL D%d X=FCEL D%d Y=FCEL D%d Z=FCEL D%d",
		par, cel, erg, x, y, z)))...)

	si := []string{fmt.Sprintf("SI%d", cel), "L"}
	sp := []string{fmt.Sprintf("SP%d", cel)}
	ds := [4][]string{
		{fmt.Sprintf("DS%d", erg), "S"},
		{fmt.Sprintf("DS%d", x), "S"},
		{fmt.Sprintf("DS%d", y), "S"},
		{fmt.Sprintf("DS%d", z), "S"},
	}
	used := make(map[int]bool)
	for _, e := range accepted {
		si = append(si, strconv.Itoa(e.Key.Cell))
		sp = append(sp, formatProb(e.Value))
		for a, d := range []Distribution{ergDist[e.Bin], xDist[e.Key.I], yDist[e.Key.J], zDist[e.Key.K]} {
			ds[a] = append(ds[a], strconv.Itoa(d.Name))
			used[d.Name] = true
		}
	}
	src.lines = append(src.lines, wrap(si)...)
	src.lines = append(src.lines, wrap(sp)...)
	for _, d := range ds {
		src.lines = append(src.lines, wrap(d)...)
	}
	for _, dists := range [][]Distribution{ergDist, xDist, yDist, zDist} {
		for _, d := range dists {
			if used[d.Name] {
				src.lines = append(src.lines, d.Lines()...)
			}
		}
	}
	return src, nil
}

func (o Options) particle() string {
	if o.Particle == "" {
		return "p"
	}
	return strings.ToLower(o.Particle)
}

// wrap joins tokens into lines of at most LineWidth columns. Continuation
// lines start with five spaces.
func wrap(tokens []string) []string {
	var lines []string
	var b strings.Builder
	for _, tok := range tokens {
		switch {
		case b.Len() == 0:
			b.WriteString(tok)
		case b.Len()+1+len(tok) > LineWidth:
			lines = append(lines, b.String())
			b.Reset()
			b.WriteString(continuation)
			b.WriteString(tok)
		default:
			b.WriteByte(' ')
			b.WriteString(tok)
		}
	}
	if b.Len() > 0 {
		lines = append(lines, b.String())
	}
	return lines
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', 6, 64) }

func formatProb(v float64) string { return strconv.FormatFloat(v, 'e', 5, 64) }
