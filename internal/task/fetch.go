package task

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/r2s/internal/fetch"
	"github.com/roach88/r2s/internal/fispact"
	"github.com/roach88/r2s/internal/spatial"
	"github.com/roach88/r2s/internal/store"
	"github.com/roach88/r2s/internal/superpose"
	"github.com/roach88/r2s/internal/tensor"
)

// Fetch collects the case reports into frames under results/ and indexes
// them in the store. allowPartial lets a fetch succeed with failed cases
// left out, as does the allow_partial setting.
func (t *Task) Fetch(ctx context.Context, allowPartial bool) (*fetch.Output, error) {
	cfg, err := t.Config(ctx)
	if err != nil {
		return nil, err
	}
	layout, err := t.Layout(ctx)
	if err != nil {
		return nil, err
	}
	cases, err := t.Store.Cases(ctx, "")
	if err != nil {
		return nil, err
	}
	pool, err := t.pool(cfg)
	if err != nil {
		return nil, err
	}

	root := filepath.Join(t.Dir, ResultsDir)
	in := fetch.CollectInput{
		Approach:     layout.Approach,
		Index:        spatial.NewIndex(layout.volumes()),
		XBins:        layout.Mesh.XBins,
		YBins:        layout.Mesh.YBins,
		ZBins:        layout.Mesh.ZBins,
		Groups:       len(layout.Mesh.EBins) - 1,
		Materials:    layout.Materials,
		Pool:         pool,
		Writer:       fetch.DirWriter{Root: root},
		AllowPartial: allowPartial || cfg.AllowPartial,
		Logger:       t.logger(),
	}
	for _, c := range cases {
		labels, err := caseLabels(layout.Approach, c.Labels)
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", c.Name, err)
		}
		in.Cases = append(in.Cases, fetch.Case{
			Name:   c.Name,
			Report: filepath.Join(c.Dir, fispact.ReportName),
			Labels: labels,
		})
	}
	if layout.Approach == fetch.ApproachSimple {
		in.Coefficients, err = superpose.NewCoefficients(layout.Mesh, layout.masses(), layout.CellMaterial, layout.Materials)
		if err != nil {
			return nil, err
		}
	}
	if err := os.RemoveAll(root); err != nil {
		return nil, fmt.Errorf("clean results: %w", err)
	}

	id := t.ids().Generate()
	if _, err := t.Store.StartRun(ctx, id, PhaseFetch); err != nil {
		return nil, err
	}
	out, collectErr := fetch.Collect(ctx, in)
	status := store.RunFinished
	if collectErr != nil {
		status = store.RunFailed
	}
	var failed int
	if out != nil {
		failed = len(out.Failed)
	}
	if err := t.Store.FinishRun(context.WithoutCancel(ctx), id, status, len(in.Cases)-failed, failed, 0); err != nil {
		return out, err
	}
	if collectErr != nil {
		return out, collectErr
	}

	results := make([]store.Result, 0, len(out.Index))
	for key, path := range out.Index {
		results = append(results, store.Result{Kind: key.Kind, Time: key.Time, Path: path})
	}
	slices.SortFunc(results, func(a, b store.Result) int {
		return cmp.Or(strings.Compare(a.Kind, b.Kind), cmp.Compare(a.Time, b.Time))
	})
	if err := t.Store.PutResults(ctx, id, results); err != nil {
		return out, err
	}
	return out, nil
}

// caseLabels converts stored case labels, decoded from JSON, back to the
// labels of the approach.
func caseLabels(approach string, raw []any) ([]tensor.Label, error) {
	num := func(v any) (int, error) {
		f, ok := v.(float64)
		if !ok {
			if n, ok := v.(int); ok {
				return n, nil
			}
			return 0, fmt.Errorf("label %v is not a number", v)
		}
		return int(f), nil
	}

	switch approach {
	case fetch.ApproachFull:
		if len(raw) != 4 {
			return nil, fmt.Errorf("%w: want (cell, i, j, k), got %v", tensor.ErrLabel, raw)
		}
		out := make([]tensor.Label, 4)
		for n, v := range raw {
			i, err := num(v)
			if err != nil {
				return nil, err
			}
			out[n] = tensor.Int(i)
		}
		return out, nil
	case fetch.ApproachSimple:
		if len(raw) != 2 {
			return nil, fmt.Errorf("%w: want (group, material), got %v", tensor.ErrLabel, raw)
		}
		g, err := num(raw[0])
		if err != nil {
			return nil, err
		}
		mat, ok := raw[1].(string)
		if !ok {
			return nil, fmt.Errorf("%w: material %v", tensor.ErrLabel, raw[1])
		}
		return []tensor.Label{tensor.Int(g), tensor.Str(mat)}, nil
	}
	return nil, fmt.Errorf("unknown approach %q", approach)
}
