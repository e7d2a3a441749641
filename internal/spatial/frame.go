package spatial

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
)

// Frame kinds.
const (
	KindAtoms    = "atoms"
	KindActivity = "activity"
	KindGamma    = "gamma"
)

// Frame is a sparse (bins x spatial positions) matrix of one result kind at
// one time. Gamma frames label rows by energy group, with Bins holding the
// group boundaries; nuclide frames label rows with Nuclides.
type Frame struct {
	Kind     string
	Time     int
	Bins     []float64
	Nuclides []string
	XBins    []float64
	YBins    []float64
	ZBins    []float64

	index  *Index
	values map[[2]int]float64
}

// Entry is one non-zero frame value.
type Entry struct {
	Bin   int
	Key   Key
	Value float64
}

// NewFrame creates an empty frame over index. Exactly one of bins (energy
// boundaries) and nuclides must be set.
func NewFrame(kind string, time int, index *Index, bins []float64, nuclides []string, xbins, ybins, zbins []float64) (*Frame, error) {
	if (len(bins) == 0) == (len(nuclides) == 0) {
		return nil, fmt.Errorf("frame %s/%d: exactly one of energy bins and nuclides is required", kind, time)
	}
	if len(nuclides) == 0 && len(bins) < 2 {
		return nil, fmt.Errorf("frame %s/%d: need at least two energy boundaries", kind, time)
	}
	return &Frame{
		Kind:     kind,
		Time:     time,
		Bins:     slices.Clone(bins),
		Nuclides: slices.Clone(nuclides),
		XBins:    slices.Clone(xbins),
		YBins:    slices.Clone(ybins),
		ZBins:    slices.Clone(zbins),
		index:    index,
		values:   make(map[[2]int]float64),
	}, nil
}

// Index returns the frame's spatial index.
func (f *Frame) Index() *Index { return f.index }

// Rows returns the number of bins.
func (f *Frame) Rows() int {
	if len(f.Nuclides) > 0 {
		return len(f.Nuclides)
	}
	return len(f.Bins) - 1
}

// Cols returns the number of spatial positions.
func (f *Frame) Cols() int { return f.index.Len() }

// Add accumulates v at (bin, key). Keys outside the index are rejected.
func (f *Frame) Add(bin int, key Key, v float64) error {
	if bin < 0 || bin >= f.Rows() {
		return fmt.Errorf("%w: bin %d not in [0, %d)", ErrOutOfRange, bin, f.Rows())
	}
	col, ok := f.index.Flat(key)
	if !ok {
		return fmt.Errorf("%w: key %s is not indexed", ErrOutOfRange, key)
	}
	if v == 0 {
		return nil
	}
	f.values[[2]int{bin, col}] += v
	return nil
}

// At returns the value at (bin, key).
func (f *Frame) At(bin int, key Key) float64 {
	col, ok := f.index.Flat(key)
	if !ok {
		return 0
	}
	return f.values[[2]int{bin, col}]
}

// NNZ returns the number of stored values.
func (f *Frame) NNZ() int { return len(f.values) }

// Nonzero returns the stored values ordered by (bin, flat position).
func (f *Frame) Nonzero() []Entry {
	cells := make([][2]int, 0, len(f.values))
	for rc := range f.values {
		cells = append(cells, rc)
	}
	slices.SortFunc(cells, func(a, b [2]int) int {
		if a[0] != b[0] {
			return a[0] - b[0]
		}
		return a[1] - b[1]
	})
	out := make([]Entry, len(cells))
	for n, rc := range cells {
		out[n] = Entry{Bin: rc[0], Key: f.index.keys[rc[1]], Value: f.values[rc]}
	}
	return out
}

// Total returns the sum of all values.
func (f *Frame) Total() float64 {
	var s float64
	for _, e := range f.Nonzero() {
		s += e.Value
	}
	return s
}

// ColumnTotals sums values over bins per key.
func (f *Frame) ColumnTotals() map[Key]float64 {
	out := make(map[Key]float64)
	for _, e := range f.Nonzero() {
		out[e.Key] += e.Value
	}
	return out
}

// VoxelVolume returns the volume of voxel (i, j, k) from the mesh bins.
func (f *Frame) VoxelVolume(i, j, k int) float64 {
	return (f.XBins[i+1] - f.XBins[i]) * (f.YBins[j+1] - f.YBins[j]) * (f.ZBins[k+1] - f.ZBins[k])
}

type frameEntryJSON struct {
	Row   int     `json:"row"`
	Col   int     `json:"col"`
	Value float64 `json:"value"`
}

type frameJSON struct {
	Kind     string           `json:"kind"`
	Time     int              `json:"time"`
	Bins     []float64        `json:"bins,omitempty"`
	Nuclides []string         `json:"nuclides,omitempty"`
	XBins    []float64        `json:"xbins"`
	YBins    []float64        `json:"ybins"`
	ZBins    []float64        `json:"zbins"`
	Index    []Key            `json:"index"`
	Entries  []frameEntryJSON `json:"entries"`
}

// MarshalJSON implements json.Marshaler.
func (f *Frame) MarshalJSON() ([]byte, error) {
	fj := frameJSON{
		Kind:     f.Kind,
		Time:     f.Time,
		Bins:     f.Bins,
		Nuclides: f.Nuclides,
		XBins:    f.XBins,
		YBins:    f.YBins,
		ZBins:    f.ZBins,
		Index:    f.index.Keys(),
		Entries:  []frameEntryJSON{},
	}
	for _, e := range f.Nonzero() {
		col, _ := f.index.Flat(e.Key)
		fj.Entries = append(fj.Entries, frameEntryJSON{Row: e.Bin, Col: col, Value: e.Value})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fj); err != nil {
		return nil, fmt.Errorf("marshal frame: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Frame) UnmarshalJSON(data []byte) error {
	var fj frameJSON
	if err := json.Unmarshal(data, &fj); err != nil {
		return fmt.Errorf("unmarshal frame: %w", err)
	}
	nf, err := NewFrame(fj.Kind, fj.Time, NewIndexFromKeys(fj.Index), fj.Bins, fj.Nuclides, fj.XBins, fj.YBins, fj.ZBins)
	if err != nil {
		return err
	}
	for _, e := range fj.Entries {
		if e.Col < 0 || e.Col >= nf.Cols() || e.Row < 0 || e.Row >= nf.Rows() {
			return fmt.Errorf("unmarshal frame: %w: entry (%d, %d)", ErrOutOfRange, e.Row, e.Col)
		}
		nf.values[[2]int{e.Row, e.Col}] = e.Value
	}
	*f = *nf
	return nil
}

// WriteFrame writes f as JSON.
func WriteFrame(w io.Writer, f *Frame) error {
	data, err := f.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// ReadFrame reads a frame written by WriteFrame.
func ReadFrame(r io.Reader) (*Frame, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	var f Frame
	if err := f.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return &f, nil
}
