// Package mesh holds the rectilinear neutron flux mesh tally the workflow
// starts from.
package mesh

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"
)

// ErrMesh is returned for inconsistent mesh data.
var ErrMesh = errors.New("mesh: invalid flux mesh")

// Box is an axis-aligned box [Min, Max).
type Box struct {
	Min [3]float64 `yaml:"min" json:"min"`
	Max [3]float64 `yaml:"max" json:"max"`
}

// Volume returns the box volume, zero for empty boxes.
func (b Box) Volume() float64 {
	v := 1.0
	for a := range 3 {
		d := b.Max[a] - b.Min[a]
		if d <= 0 {
			return 0
		}
		v *= d
	}
	return v
}

// Intersect returns the overlap of two boxes and whether it is non-empty.
func (b Box) Intersect(o Box) (Box, bool) {
	var r Box
	for a := range 3 {
		r.Min[a] = max(b.Min[a], o.Min[a])
		r.Max[a] = min(b.Max[a], o.Max[a])
		if r.Max[a] <= r.Min[a] {
			return Box{}, false
		}
	}
	return r, true
}

// Translate shifts the box by d.
func (b Box) Translate(d [3]float64) Box {
	for a := range 3 {
		b.Min[a] += d[a]
		b.Max[a] += d[a]
	}
	return b
}

// FluxMesh is a group flux tally on a rectilinear mesh. Energies are in MeV.
// Flux is stored row-major over (group, i, j, k).
type FluxMesh struct {
	EBins []float64 `yaml:"ebins" json:"ebins"`
	XBins []float64 `yaml:"xbins" json:"xbins"`
	YBins []float64 `yaml:"ybins" json:"ybins"`
	ZBins []float64 `yaml:"zbins" json:"zbins"`
	Flux  []float64 `yaml:"flux" json:"flux"`
}

// Shape returns the number of groups and voxels along each axis.
func (m *FluxMesh) Shape() (groups, nx, ny, nz int) {
	return len(m.EBins) - 1, len(m.XBins) - 1, len(m.YBins) - 1, len(m.ZBins) - 1
}

// Validate checks bins are ascending and the flux size matches them.
func (m *FluxMesh) Validate() error {
	for name, bins := range map[string][]float64{"ebins": m.EBins, "xbins": m.XBins, "ybins": m.YBins, "zbins": m.ZBins} {
		if len(bins) < 2 {
			return fmt.Errorf("%w: %s needs at least two boundaries", ErrMesh, name)
		}
		for i := 1; i < len(bins); i++ {
			if bins[i] <= bins[i-1] {
				return fmt.Errorf("%w: %s are not strictly ascending at %d", ErrMesh, name, i)
			}
		}
	}
	g, nx, ny, nz := m.Shape()
	if want := g * nx * ny * nz; len(m.Flux) != want {
		return fmt.Errorf("%w: %d flux values for %dx%dx%dx%d mesh", ErrMesh, len(m.Flux), g, nx, ny, nz)
	}
	for _, f := range m.Flux {
		if f < 0 {
			return fmt.Errorf("%w: negative flux %g", ErrMesh, f)
		}
	}
	return nil
}

// NVoxels returns the number of voxels.
func (m *FluxMesh) NVoxels() int {
	_, nx, ny, nz := m.Shape()
	return nx * ny * nz
}

// VoxelIndex returns the row-major position of voxel (i, j, k).
func (m *FluxMesh) VoxelIndex(i, j, k int) int {
	_, _, ny, nz := m.Shape()
	return (i*ny+j)*nz + k
}

// At returns the flux of group e in voxel (i, j, k).
func (m *FluxMesh) At(e, i, j, k int) float64 {
	return m.Flux[e*m.NVoxels()+m.VoxelIndex(i, j, k)]
}

// Spectrum returns the group fluxes of voxel (i, j, k).
func (m *FluxMesh) Spectrum(i, j, k int) []float64 {
	g, _, _, _ := m.Shape()
	out := make([]float64, g)
	for e := range out {
		out[e] = m.At(e, i, j, k)
	}
	return out
}

// Total returns the total flux of voxel (i, j, k).
func (m *FluxMesh) Total(i, j, k int) float64 {
	return floats.Sum(m.Spectrum(i, j, k))
}

// Max returns the largest group flux of the mesh.
func (m *FluxMesh) Max() float64 {
	if len(m.Flux) == 0 {
		return 0
	}
	return floats.Max(m.Flux)
}

// Voxel returns the box of voxel (i, j, k).
func (m *FluxMesh) Voxel(i, j, k int) Box {
	return Box{
		Min: [3]float64{m.XBins[i], m.YBins[j], m.ZBins[k]},
		Max: [3]float64{m.XBins[i+1], m.YBins[j+1], m.ZBins[k+1]},
	}
}

// Bounds returns the box covering the whole mesh.
func (m *FluxMesh) Bounds() Box {
	return Box{
		Min: [3]float64{m.XBins[0], m.YBins[0], m.ZBins[0]},
		Max: [3]float64{m.XBins[len(m.XBins)-1], m.YBins[len(m.YBins)-1], m.ZBins[len(m.ZBins)-1]},
	}
}

// Clone returns a deep copy.
func (m *FluxMesh) Clone() *FluxMesh {
	return &FluxMesh{
		EBins: slices.Clone(m.EBins),
		XBins: slices.Clone(m.XBins),
		YBins: slices.Clone(m.YBins),
		ZBins: slices.Clone(m.ZBins),
		Flux:  slices.Clone(m.Flux),
	}
}

// Load reads a flux mesh from a YAML file.
func Load(path string) (*FluxMesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mesh file: %w", err)
	}

	var m FluxMesh
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse mesh YAML: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}
