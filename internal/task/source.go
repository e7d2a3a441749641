package task

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/r2s/internal/fetch"
	"github.com/roach88/r2s/internal/profile"
	"github.com/roach88/r2s/internal/source"
	"github.com/roach88/r2s/internal/spatial"
	"github.com/roach88/r2s/internal/store"
)

// SourceOptions override the source settings of the configuration.
type SourceOptions struct {
	// Time is a time literal; empty selects the configured time, or the
	// last gamma frame when none is configured.
	Time string

	// Output is the SDEF file; relative paths are under the task
	// directory.
	Output string
}

// Source writes the SDEF of one gamma frame and returns it with the path
// written.
func (t *Task) Source(ctx context.Context, opts SourceOptions) (*source.Source, string, error) {
	cfg, err := t.Config(ctx)
	if err != nil {
		return nil, "", err
	}
	layout, err := t.Layout(ctx)
	if err != nil {
		return nil, "", err
	}

	lit := opts.Time
	if lit == "" {
		lit = cfg.Source.Time
	}
	path, err := t.gammaFrame(ctx, lit)
	if err != nil {
		return nil, "", err
	}
	frame, err := fetch.ReadFrameFile(path)
	if err != nil {
		return nil, "", err
	}

	src, err := source.Build(frame, layout.volumes(), source.Options{
		StartDistribution: cfg.Source.StartDistribution,
		IntensityFilter:   cfg.Source.IntensityFilter,
		VolumeFilter:      cfg.Source.VolumeFilter,
		Particle:          cfg.Source.Particle,
	})
	if err != nil {
		return nil, "", err
	}

	out := opts.Output
	if out == "" {
		out = cfg.Source.Output
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(t.Dir, out)
	}
	if err := os.WriteFile(out, []byte(src.String()), 0o644); err != nil {
		return nil, "", fmt.Errorf("write source: %w", err)
	}
	t.logger().Info("source written", "path", out, "time", frame.Time, "entries", src.Entries,
		"intensity_rejected_pct", src.IntensityRejectedPct(), "volume_rejected_pct", src.VolumeRejectedPct(),
		"peak", src.Peak, "peak_intensity", src.PeakIntensity)
	return src, out, nil
}

// gammaFrame finds the gamma frame at the time literal lit, or the last
// one when lit is empty.
func (t *Task) gammaFrame(ctx context.Context, lit string) (string, error) {
	if lit != "" {
		secs, err := profile.ConvertTimeLiteral(lit)
		if err != nil {
			return "", err
		}
		return t.Store.ResultPath(ctx, spatial.KindGamma, secs)
	}
	results, err := t.Store.Results(ctx)
	if err != nil {
		return "", err
	}
	var path string
	for _, r := range results {
		if r.Kind == spatial.KindGamma {
			path = r.Path
		}
	}
	if path == "" {
		return "", fmt.Errorf("no gamma results: %w", store.ErrNotFound)
	}
	return path, nil
}
