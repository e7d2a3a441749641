package geometry

import (
	"fmt"

	"github.com/roach88/r2s/internal/mesh"
	"github.com/roach88/r2s/internal/spatial"
)

// maxFillDepth bounds universe nesting; deeper nesting means a fill cycle.
const maxFillDepth = 64

// Resolved is a material cell after fills were expanded: its box is already
// clipped by every enclosing cell and placed in global coordinates.
type Resolved struct {
	Name     int
	Material string
	Box      mesh.Box
}

type pending struct {
	cell   Cell
	clip   *mesh.Box
	offset [3]float64
	depth  int
}

// SelectCells expands the model into the material cells that can
// contribute inside bounds. Cells outside bounds and void cells are
// dropped. Filled cells are replaced by their universe's cells, translated
// and clipped by the filled cell.
func SelectCells(m *Model, bounds mesh.Box) ([]Resolved, error) {
	var queue []pending
	for _, c := range m.Universes[RootUniverse] {
		queue = append(queue, pending{cell: c})
	}

	var out []Resolved
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		box := p.cell.Box.Translate(p.offset)
		if p.clip != nil {
			var ok bool
			if box, ok = box.Intersect(*p.clip); !ok {
				continue
			}
		}
		if _, ok := box.Intersect(bounds); !ok {
			continue
		}

		if f := p.cell.Fill; f != nil {
			if p.depth >= maxFillDepth {
				return nil, fmt.Errorf("%w: fill nesting deeper than %d at cell %d", ErrModel, maxFillDepth, p.cell.Name)
			}
			offset := p.offset
			for a := range 3 {
				offset[a] += f.Translate[a]
			}
			clip := box
			for _, uc := range m.Universes[f.Universe] {
				queue = append(queue, pending{cell: uc, clip: &clip, offset: offset, depth: p.depth + 1})
			}
			continue
		}
		if p.cell.Material != "" {
			out = append(out, Resolved{Name: p.cell.Name, Material: p.cell.Material, Box: box})
		}
	}
	return out, nil
}

// CellVolumes returns the volume of c inside every voxel of fm. Volumes
// smaller than minVolume are dropped.
func CellVolumes(c Resolved, fm *mesh.FluxMesh, minVolume float64) map[spatial.Key]float64 {
	out := make(map[spatial.Key]float64)
	_, nx, ny, nz := fm.Shape()
	for i := range nx {
		for j := range ny {
			for k := range nz {
				ov, ok := c.Box.Intersect(fm.Voxel(i, j, k))
				if !ok {
					continue
				}
				if v := ov.Volume(); v >= minVolume && v > 0 {
					out[spatial.Key{Cell: c.Name, I: i, J: j, K: k}] = v
				}
			}
		}
	}
	return out
}
