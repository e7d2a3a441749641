// Package geometry is a minimal constructive model: axis-aligned box cells
// grouped into universes, which other cells may fill with a translation.
package geometry

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/r2s/internal/material"
	"github.com/roach88/r2s/internal/mesh"
)

// ErrModel is returned for inconsistent models.
var ErrModel = errors.New("geometry: invalid model")

// RootUniverse is the universe the model starts from.
const RootUniverse = 0

// Fill places a universe inside a cell.
type Fill struct {
	Universe  int        `yaml:"universe"`
	Translate [3]float64 `yaml:"translate,omitempty"`
}

// Cell is a box region holding a material, a filling universe, or nothing.
type Cell struct {
	Name     int      `yaml:"name"`
	Material string   `yaml:"material,omitempty"`
	Box      mesh.Box `yaml:"box"`
	Fill     *Fill    `yaml:"fill,omitempty"`
}

// Model is the geometry and material description of a task.
type Model struct {
	Materials map[string]*material.Material `yaml:"materials"`
	Universes map[int][]Cell                `yaml:"universes"`
}

// Validate checks references and material compositions.
func (m *Model) Validate() error {
	if len(m.Universes[RootUniverse]) == 0 {
		return fmt.Errorf("%w: root universe %d has no cells", ErrModel, RootUniverse)
	}
	for name, mat := range m.Materials {
		if mat == nil {
			return fmt.Errorf("%w: material %q is empty", ErrModel, name)
		}
		mat.Name = name
		if err := mat.Validate(); err != nil {
			return err
		}
	}
	for u, cells := range m.Universes {
		for _, c := range cells {
			if c.Box.Volume() == 0 {
				return fmt.Errorf("%w: universe %d cell %d has an empty box", ErrModel, u, c.Name)
			}
			if c.Fill != nil {
				if c.Material != "" {
					return fmt.Errorf("%w: cell %d is both filled and has material %q", ErrModel, c.Name, c.Material)
				}
				if _, ok := m.Universes[c.Fill.Universe]; !ok {
					return fmt.Errorf("%w: cell %d fills unknown universe %d", ErrModel, c.Name, c.Fill.Universe)
				}
				if c.Fill.Universe == RootUniverse {
					return fmt.Errorf("%w: cell %d fills the root universe", ErrModel, c.Name)
				}
				continue
			}
			if c.Material != "" && m.Materials[c.Material] == nil {
				return fmt.Errorf("%w: cell %d uses unknown material %q", ErrModel, c.Name, c.Material)
			}
		}
	}
	return nil
}

// MaterialNames returns the material names in sorted order.
func (m *Model) MaterialNames() []string {
	names := make([]string, 0, len(m.Materials))
	for n := range m.Materials {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Load reads a model from a YAML file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var m Model
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse model YAML: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}
