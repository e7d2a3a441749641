// Package fetch collects FISPACT inventory reports of every case into
// labeled tensors and persists them as per-time spatial frames.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"github.com/roach88/r2s/internal/fispact"
	"github.com/roach88/r2s/internal/runner"
	"github.com/roach88/r2s/internal/spatial"
	sp "github.com/roach88/r2s/internal/superpose"
	"github.com/roach88/r2s/internal/tensor"
)

// Approach names.
const (
	ApproachFull   = "full"
	ApproachSimple = "simple"
)

// ErrPartial is returned when some cases could not be collected.
var ErrPartial = errors.New("fetch: some cases failed")

// CaseResult is the content of one case report.
type CaseResult = fispact.Report

// Case identifies a case and the coordinate of its results: (cell, i, j, k)
// in the full approach, (n_erg, material) in the simple one.
type Case struct {
	Name   string
	Report string
	Labels []tensor.Label
}

// ResultKey addresses a persisted frame.
type ResultKey struct {
	Kind string
	Time int
}

// CollectInput describes a collection.
type CollectInput struct {
	Approach string
	Cases    []Case

	// Index is the set of (cell, i, j, k) results are reported on.
	Index *spatial.Index
	XBins []float64
	YBins []float64
	ZBins []float64

	// Groups and Materials label the unit cases of the simple approach,
	// which are expanded with Coefficients.
	Groups       int
	Materials    []string
	Coefficients *sp.Coefficients

	Pool         *runner.Pool
	Writer       FrameWriter
	AllowPartial bool
	Logger       *slog.Logger
}

// Output is the result of a collection.
type Output struct {
	Index  map[ResultKey]string
	Failed []*runner.CaseError
}

// Collect reads every case report, assembles atoms, activity and gamma
// tensors, applies superposition in the simple approach and writes one
// frame per kind and time. Reports are parsed on the pool; a case whose
// report cannot be read fails alone. Collect returns ErrPartial when a case
// failed unless AllowPartial is set.
func Collect(ctx context.Context, in CollectInput) (*Output, error) {
	log := in.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	idxAxes, fixed, err := in.layout()
	if err != nil {
		return nil, err
	}

	kinds := []string{spatial.KindAtoms, spatial.KindActivity, spatial.KindGamma}
	builders := map[string]*Builder{
		spatial.KindAtoms:    NewBuilder(append([]string{sp.AxisTime, sp.AxisNuclide}, idxAxes...)...),
		spatial.KindActivity: NewBuilder(append([]string{sp.AxisTime, sp.AxisNuclide}, idxAxes...)...),
		spatial.KindGamma:    NewBuilder(append([]string{sp.AxisTime, sp.AxisGroup}, idxAxes...)...),
	}

	var mu sync.Mutex
	var ebins []float64
	jobs := make([]runner.Job, len(in.Cases))
	for n, c := range in.Cases {
		jobs[n] = runner.Job{Name: c.Name, Dir: filepath.Dir(c.Report), Run: func(ctx context.Context) error {
			r, err := fispact.ReadReport(c.Report)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if ebins == nil {
				ebins = r.EBins
			} else if len(r.Gamma) > 0 && !slices.Equal(ebins, r.EBins) {
				return fmt.Errorf("gamma group boundaries differ from other cases")
			}
			return addReport(builders, r, c.Labels)
		}}
	}

	pool := in.Pool
	if pool == nil {
		pool = &runner.Pool{Logger: log}
	}
	res, err := pool.Run(ctx, jobs)
	if err != nil {
		return nil, err
	}
	out := &Output{Index: make(map[ResultKey]string), Failed: res.Failed}
	if len(res.Failed) > 0 {
		log.Warn("cases not collected", "failed", len(res.Failed), "total", len(jobs))
		if !in.AllowPartial {
			return out, fmt.Errorf("%w: %d of %d: %w", ErrPartial, len(res.Failed), len(jobs), res.Err())
		}
	}

	fixed[sp.AxisGroup] = tensor.Range(max(len(ebins)-1, 0))
	for _, kind := range kinds {
		t, err := builders[kind].Build(fixed)
		if err != nil {
			return out, fmt.Errorf("build %s: %w", kind, err)
		}
		if in.Approach == ApproachSimple {
			if t, err = in.Coefficients.Apply(t); err != nil {
				return out, fmt.Errorf("superpose %s: %w", kind, err)
			}
		}
		repl := map[string]tensor.Replacement{
			sp.AxisI: {Name: "xbins", Labels: tensor.Floats(in.XBins...)},
			sp.AxisJ: {Name: "ybins", Labels: tensor.Floats(in.YBins...)},
			sp.AxisK: {Name: "zbins", Labels: tensor.Floats(in.ZBins...)},
		}
		if kind == spatial.KindGamma {
			repl[sp.AxisGroup] = tensor.Replacement{Name: "g_erg", Labels: tensor.Floats(ebins...)}
		}
		if t, err = t.ReplaceAxes(repl); err != nil {
			return out, fmt.Errorf("relabel %s: %w", kind, err)
		}

		var bins []float64
		if kind == spatial.KindGamma {
			bins = ebins
		}
		frames, err := toFrames(t, kind, in.Index, bins, in.XBins, in.YBins, in.ZBins)
		if err != nil {
			return out, fmt.Errorf("frames %s: %w", kind, err)
		}
		for _, f := range frames {
			path, err := in.Writer.WriteFrame(f)
			if err != nil {
				return out, err
			}
			out.Index[ResultKey{Kind: kind, Time: f.Time}] = path
		}
		log.Info("results written", "kind", kind, "frames", len(frames), "nonzero", t.NNZ())
	}
	return out, nil
}

func (in *CollectInput) layout() ([]string, map[string][]tensor.Label, error) {
	nx, ny, nz := len(in.XBins)-1, len(in.YBins)-1, len(in.ZBins)-1
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, nil, fmt.Errorf("fetch: mesh bins are missing")
	}
	if in.Index == nil || in.Writer == nil {
		return nil, nil, fmt.Errorf("fetch: index and writer are required")
	}
	switch in.Approach {
	case ApproachFull:
		return []string{sp.AxisCell, sp.AxisI, sp.AxisJ, sp.AxisK}, map[string][]tensor.Label{
			sp.AxisCell: tensor.Ints(in.Index.Cells()...),
			sp.AxisI:    tensor.Range(nx),
			sp.AxisJ:    tensor.Range(ny),
			sp.AxisK:    tensor.Range(nz),
		}, nil
	case ApproachSimple:
		if in.Coefficients == nil {
			return nil, nil, fmt.Errorf("fetch: simple approach needs superposition coefficients")
		}
		return []string{sp.AxisEnergy, sp.AxisMaterial}, map[string][]tensor.Label{
			sp.AxisEnergy:   tensor.Range(in.Groups),
			sp.AxisMaterial: tensor.Strs(in.Materials...),
		}, nil
	}
	return nil, nil, fmt.Errorf("fetch: unknown approach %q", in.Approach)
}

func addReport(builders map[string]*Builder, r *CaseResult, index []tensor.Label) error {
	add := func(kind string, v float64, labels ...tensor.Label) error {
		return builders[kind].Add(v, append(labels, index...)...)
	}
	for k, v := range r.Atoms {
		if err := add(spatial.KindAtoms, v, tensor.Int(k.Time), tensor.Str(k.Nuclide)); err != nil {
			return err
		}
	}
	for k, v := range r.Activity {
		if err := add(spatial.KindActivity, v, tensor.Int(k.Time), tensor.Str(k.Nuclide)); err != nil {
			return err
		}
	}
	for t, ys := range r.Gamma {
		for g, y := range ys {
			if err := add(spatial.KindGamma, y, tensor.Int(t), tensor.Int(g)); err != nil {
				return err
			}
		}
	}
	return nil
}

// toFrames splits a (time, bin, cell, x, y, z) tensor into one frame per
// time label. Spatial positions are voxel indices.
func toFrames(t *tensor.Tensor, kind string, index *spatial.Index, bins, xbins, ybins, zbins []float64) ([]*spatial.Frame, error) {
	var nuclides []string
	if kind == spatial.KindGamma {
		if len(bins) < 2 {
			return nil, nil
		}
	} else {
		for _, l := range t.Labels(1) {
			s, _ := l.AsString()
			nuclides = append(nuclides, s)
		}
		if len(nuclides) == 0 {
			return nil, nil
		}
	}

	times := t.Labels(0)
	frames := make([]*spatial.Frame, len(times))
	for p, l := range times {
		tl, _ := l.AsInt()
		f, err := spatial.NewFrame(kind, tl, index, bins, nuclides, xbins, ybins, zbins)
		if err != nil {
			return nil, err
		}
		frames[p] = f
	}

	var ferr error
	t.Each(func(pos []int, v float64) {
		if ferr != nil {
			return
		}
		cell, _ := t.Label(2, pos[2]).AsInt()
		key := spatial.Key{Cell: cell, I: pos[3], J: pos[4], K: pos[5]}
		ferr = frames[pos[0]].Add(pos[1], key, v)
	})
	return frames, ferr
}
