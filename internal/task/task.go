// Package task runs the phases of an R2S task in a task directory:
// prepare writes the FISPACT cases, run executes them, fetch collects their
// reports into per-time frames and source writes the gamma source of one
// frame.
package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"gonum.org/v1/gonum/mat"

	"github.com/roach88/r2s/internal/config"
	"github.com/roach88/r2s/internal/fispact"
	"github.com/roach88/r2s/internal/mesh"
	"github.com/roach88/r2s/internal/runner"
	"github.com/roach88/r2s/internal/spatial"
	"github.com/roach88/r2s/internal/store"
	"github.com/roach88/r2s/internal/superpose"
)

// Task directory entries.
const (
	StoreName    = "task.db"
	CasesDir     = "cases"
	CondenseDir  = "condense"
	ResultsDir   = "results"
	settingTask  = "task"
	settingShape = "layout"
)

// ErrCasesFailed is returned by Run when some cases failed.
var ErrCasesFailed = errors.New("task: cases failed")

// Volume is the volume and mass of one cell part inside one voxel.
type Volume struct {
	Key    spatial.Key `json:"key"`
	Volume float64     `json:"volume"`
	Mass   float64     `json:"mass"`
}

// Layout is what prepare learned about the geometry, saved for the later
// phases.
type Layout struct {
	Approach     string         `json:"approach"`
	Mesh         *mesh.FluxMesh `json:"mesh"`
	Volumes      []Volume       `json:"volumes"`
	CellMaterial map[int]string `json:"cell_material"`
	Materials    []string       `json:"materials"`
}

func (l *Layout) volumes() map[spatial.Key]float64 {
	out := make(map[spatial.Key]float64, len(l.Volumes))
	for _, v := range l.Volumes {
		out[v.Key] = v.Volume
	}
	return out
}

func (l *Layout) masses() map[spatial.Key]float64 {
	out := make(map[spatial.Key]float64, len(l.Volumes))
	for _, v := range l.Volumes {
		out[v.Key] = v.Mass
	}
	return out
}

// MaterialMasses returns the mass of every material inside the mesh.
func (l *Layout) MaterialMasses() map[string]float64 {
	out := make(map[string]float64, len(l.Materials))
	if len(l.Volumes) == 0 || len(l.Materials) == 0 {
		return out
	}
	masses := l.masses()
	m := superpose.FlattenMass(spatial.NewIndex(masses), masses, l.CellMaterial, l.Materials)
	for r, name := range l.Materials {
		out[name] = mat.Sum(m.RowView(r))
	}
	return out
}

// Task is an open task directory.
type Task struct {
	Dir    string
	Store  *store.Store
	Solver fispact.Solver
	Logger *slog.Logger
	IDs    runner.IDGenerator

	// Registry, when set, receives the case metrics of run.
	Registry prometheus.Registerer

	// Progress, when set, is called as cases finish.
	Progress func(done, total int)
}

// EnsureDir checks that dir is a directory. A missing directory is created
// when create is set and is an error otherwise.
func EnsureDir(dir string, create bool) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("task: %s exists and is not a directory", dir)
	case err == nil:
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("task: %w", err)
	case !create:
		return fmt.Errorf("task: directory %s does not exist", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("task: %w", err)
	}
	return nil
}

// Open opens the task in dir, creating the directory when create is set.
func Open(dir string, create bool) (*Task, error) {
	if err := EnsureDir(dir, create); err != nil {
		return nil, err
	}
	st, err := store.Open(filepath.Join(dir, StoreName))
	if err != nil {
		return nil, fmt.Errorf("task store: %w", err)
	}
	return &Task{Dir: dir, Store: st, IDs: runner.UUIDv7Generator{}}, nil
}

// Close closes the task store.
func (t *Task) Close() error { return t.Store.Close() }

func (t *Task) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (t *Task) ids() runner.IDGenerator {
	if t.IDs != nil {
		return t.IDs
	}
	return runner.UUIDv7Generator{}
}

// Config returns the configuration saved by prepare with the environment
// overrides applied.
func (t *Task) Config(ctx context.Context) (*config.Task, error) {
	var cfg config.Task
	if err := t.Store.GetSetting(ctx, settingTask, &cfg); err != nil {
		return nil, fmt.Errorf("task not prepared: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Layout returns the geometry layout saved by prepare.
func (t *Task) Layout(ctx context.Context) (*Layout, error) {
	var l Layout
	if err := t.Store.GetSetting(ctx, settingShape, &l); err != nil {
		return nil, fmt.Errorf("task not prepared: %w", err)
	}
	return &l, nil
}

func (t *Task) pool(cfg *config.Task) (*runner.Pool, error) {
	policy, err := runner.ParsePolicy(cfg.Failure)
	if err != nil {
		return nil, err
	}
	p := &runner.Pool{
		Workers:  cfg.Threads,
		Policy:   policy,
		Logger:   t.logger(),
		Progress: t.Progress,
	}
	if t.Registry != nil {
		p.Metrics = runner.NewMetrics(t.Registry)
	}
	return p, nil
}
