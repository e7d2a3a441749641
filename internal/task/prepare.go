package task

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/roach88/r2s/internal/config"
	"github.com/roach88/r2s/internal/fetch"
	"github.com/roach88/r2s/internal/fispact"
	"github.com/roach88/r2s/internal/geometry"
	"github.com/roach88/r2s/internal/material"
	"github.com/roach88/r2s/internal/mesh"
	"github.com/roach88/r2s/internal/runner"
	"github.com/roach88/r2s/internal/spatial"
	"github.com/roach88/r2s/internal/store"
	"github.com/roach88/r2s/internal/superpose"
)

// caseSpec is a case to be written.
type caseSpec struct {
	name     string
	labels   []any
	material *material.Material
	volume   float64
	spectrum []float64
	nominal  float64
}

// Prepare computes the cell volumes of the model inside the mesh, writes
// the condense case and one FISPACT case per point of the configured
// approach, and saves everything later phases need. Earlier cases and
// results are replaced.
func (t *Task) Prepare(ctx context.Context, cfg *config.Task) error {
	log := t.logger()
	cfg.Model = absolute(cfg.Resolve(cfg.Model))
	cfg.Mesh = absolute(cfg.Resolve(cfg.Mesh))
	cfg.Scenario.Template = absolute(cfg.Resolve(cfg.Scenario.Template))

	model, err := geometry.Load(cfg.Model)
	if err != nil {
		return err
	}
	fm, err := mesh.Load(cfg.Mesh)
	if err != nil {
		return err
	}
	scenario, err := Scenario(&cfg.Scenario)
	if err != nil {
		return err
	}

	layout, err := t.computeLayout(ctx, cfg, model, fm)
	if err != nil {
		return err
	}
	log.Info("volumes computed", "cells", len(layout.CellMaterial), "parts", len(layout.Volumes))

	var specs []caseSpec
	switch cfg.Approach {
	case fetch.ApproachFull:
		specs = fullCases(layout, model)
	case fetch.ApproachSimple:
		if specs, err = simpleCases(layout, model); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: approach %q", config.ErrInvalidConfig, cfg.Approach)
	}
	if len(specs) == 0 {
		return fmt.Errorf("task: no material inside the mesh")
	}

	for _, dir := range []string{CasesDir, CondenseDir, ResultsDir} {
		if err := os.RemoveAll(filepath.Join(t.Dir, dir)); err != nil {
			return fmt.Errorf("clean task: %w", err)
		}
	}
	if err := t.writeCondense(cfg); err != nil {
		return err
	}
	cases := make([]store.Case, 0, len(specs))
	for _, s := range specs {
		dir, err := t.writeCase(cfg, layout.Mesh.EBins, scenario, s)
		if err != nil {
			return fmt.Errorf("case %s: %w", s.name, err)
		}
		cases = append(cases, store.Case{Name: s.name, Dir: dir, Labels: s.labels})
	}

	if err := t.Store.PutSetting(ctx, settingTask, cfg); err != nil {
		return err
	}
	if err := t.Store.PutSetting(ctx, settingShape, layout); err != nil {
		return err
	}
	if err := t.Store.PutResults(ctx, "", nil); err != nil {
		return err
	}
	if err := t.Store.PutCases(ctx, cases); err != nil {
		return err
	}
	log.Info("cases prepared", "approach", cfg.Approach, "count", len(cases))
	return nil
}

func absolute(p string) string {
	if p == "" {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// computeLayout selects the cells inside the mesh and computes their
// volumes per voxel, one pool job per cell.
func (t *Task) computeLayout(ctx context.Context, cfg *config.Task, model *geometry.Model, fm *mesh.FluxMesh) (*Layout, error) {
	cells, err := geometry.SelectCells(model, fm.Bounds())
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	volumes := make(map[spatial.Key]float64)
	cellMaterial := make(map[int]string)
	jobs := make([]runner.Job, len(cells))
	for n, c := range cells {
		jobs[n] = runner.Job{Name: fmt.Sprintf("cell %d", c.Name), Run: func(ctx context.Context) error {
			part := geometry.CellVolumes(c, fm, cfg.MinVolume)
			mu.Lock()
			defer mu.Unlock()
			if m, ok := cellMaterial[c.Name]; ok && m != c.Material {
				return fmt.Errorf("%w: cell %d holds both %s and %s", geometry.ErrModel, c.Name, m, c.Material)
			}
			cellMaterial[c.Name] = c.Material
			for k, v := range part {
				volumes[k] += v
			}
			return nil
		}}
	}
	pool := &runner.Pool{Workers: cfg.Threads, Policy: runner.FailFast, Logger: t.logger()}
	res, err := pool.Run(ctx, jobs)
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		return nil, err
	}

	layout := &Layout{
		Approach:     cfg.Approach,
		Mesh:         fm,
		CellMaterial: make(map[int]string),
	}
	for _, k := range spatial.NewIndex(volumes).Keys() {
		mt := model.Materials[cellMaterial[k.Cell]]
		layout.Volumes = append(layout.Volumes, Volume{Key: k, Volume: volumes[k], Mass: mt.Mass(volumes[k])})
		layout.CellMaterial[k.Cell] = cellMaterial[k.Cell]
	}
	layout.Materials = slices.Sorted(maps.Values(layout.CellMaterial))
	layout.Materials = slices.Compact(layout.Materials)
	return layout, nil
}

// fullCases makes one case per cell part in a voxel with the voxel
// spectrum. Parts in voxels without flux are not activated.
func fullCases(layout *Layout, model *geometry.Model) []caseSpec {
	if len(layout.Volumes) == 0 {
		return nil
	}
	volumes := layout.volumes()
	index := spatial.NewIndex(volumes)
	flux := superpose.FlattenFlux(index, layout.Mesh)

	var specs []caseSpec
	for c, k := range index.Keys() {
		nominal := layout.Mesh.Total(k.I, k.J, k.K)
		if nominal == 0 {
			continue
		}
		specs = append(specs, caseSpec{
			name:     fmt.Sprintf("c%d_%d_%d_%d", k.Cell, k.I, k.J, k.K),
			labels:   []any{k.Cell, k.I, k.J, k.K},
			material: model.Materials[layout.CellMaterial[k.Cell]],
			volume:   volumes[k],
			spectrum: mat.Col(nil, c, flux),
			nominal:  nominal,
		})
	}
	return specs
}

// simpleCases makes one unit case per material and energy group: the
// reference mass M0 irradiated by the reference flux F0 in that group
// alone.
func simpleCases(layout *Layout, model *geometry.Model) ([]caseSpec, error) {
	f0, err := superpose.ReferenceFlux(layout.Mesh)
	if err != nil {
		return nil, err
	}
	m0, err := superpose.ReferenceMass(layout.masses())
	if err != nil {
		return nil, err
	}
	groups := len(layout.Mesh.EBins) - 1

	var specs []caseSpec
	for _, name := range layout.Materials {
		mt := model.Materials[name]
		for g := range groups {
			spectrum := make([]float64, groups)
			spectrum[g] = f0
			specs = append(specs, caseSpec{
				name:     fmt.Sprintf("%s_g%d", caseSafe(name), g),
				labels:   []any{g, name},
				material: mt,
				volume:   m0 * 1000 / mt.Density,
				spectrum: spectrum,
				nominal:  f0,
			})
		}
	}
	return specs, nil
}

func caseSafe(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == ' ' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, name)
}

func (t *Task) writeCondense(cfg *config.Task) error {
	dir := filepath.Join(t.Dir, CondenseDir)
	files, err := fispact.Files(cfg.Fispact.Libraries, fispact.Manifest{
		Fluxes:  fispact.FluxesName,
		Collapx: fispact.CollapxName,
		Arrayx:  fispact.ArrayxName,
	})
	if err != nil {
		return err
	}
	return writeFiles(dir, []inputFile{
		{fispact.FilesName, files},
		{fispact.CondenseInput + ".i", fispact.Condense()},
	})
}

func (t *Task) writeCase(cfg *config.Task, ebins []float64, scenario fispact.Scenario, s caseSpec) (string, error) {
	dir := filepath.Join(t.Dir, CasesDir, s.name)
	files, err := fispact.Files(cfg.Fispact.Libraries, fispact.Manifest{
		Fluxes:  fispact.FluxesName,
		Collapx: fispact.CollapxName,
		Arrayx:  filepath.ToSlash(filepath.Join("..", "..", CondenseDir, fispact.ArrayxName)),
	})
	if err != nil {
		return "", err
	}
	title := "case " + s.name
	block := s.material.Block(s.volume)
	return dir, writeFiles(dir, []inputFile{
		{fispact.ConvertFilesName, fispact.ConvertFiles()},
		{fispact.ConvertInput + ".i", fispact.Convert(len(ebins) - 1)},
		{fispact.ArbFluxName, fispact.ArbFlux(ebins, s.spectrum)},
		{fispact.FilesName, files},
		{fispact.CollapseInput + ".i", fispact.Collapse(cfg.Fispact.LibXS())},
		{fispact.InventoryInput + ".i", fispact.Inventory(title, block, cfg.Fispact.Settings, scenario, s.nominal)},
	})
}

type inputFile struct {
	name    string
	content string
}

func writeFiles(dir string, files []inputFile) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.name), []byte(f.content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	return nil
}
