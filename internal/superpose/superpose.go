// Package superpose rebuilds per-voxel activation results from unit
// calculations run once per material and neutron energy group.
//
// A unit calculation irradiates the reference mass M0 of one material with
// the reference flux F0 confined to one group. Point depletion is close to
// linear in both flux and mass, so the response of cell c in voxel (i,j,k)
// is the sum over groups of the unit response of c's material scaled by
// alpha = flux/F0 and beta = mass/M0.
package superpose

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/roach88/r2s/internal/mesh"
	"github.com/roach88/r2s/internal/spatial"
	"github.com/roach88/r2s/internal/tensor"
)

// ErrDegenerate is returned when a reference flux or mass is not positive.
var ErrDegenerate = errors.New("superpose: degenerate reference")

// Axis names shared with the collection pipeline.
const (
	AxisTime     = "time"
	AxisNuclide  = "nuclide"
	AxisGroup    = "g"
	AxisEnergy   = "n_erg"
	AxisMaterial = "material"
	AxisCell     = "cell"
	AxisI        = "i"
	AxisJ        = "j"
	AxisK        = "k"
)

// ReferenceFlux returns F0, the largest group flux anywhere in the mesh.
func ReferenceFlux(fm *mesh.FluxMesh) (float64, error) {
	f0 := fm.Max()
	if !(f0 > 0) {
		return 0, fmt.Errorf("%w: flux %g", ErrDegenerate, f0)
	}
	return f0, nil
}

// ReferenceMass returns M0, the largest mass of a cell part in a voxel.
func ReferenceMass(masses map[spatial.Key]float64) (float64, error) {
	var m0 float64
	for _, m := range masses {
		m0 = max(m0, m)
	}
	if !(m0 > 0) {
		return 0, fmt.Errorf("%w: mass %g", ErrDegenerate, m0)
	}
	return m0, nil
}

// Alpha returns the flux fractions flux/f0 with axes (n_erg, i, j, k).
// Groups and voxels are labeled by position.
func Alpha(fm *mesh.FluxMesh, f0 float64) (*tensor.Tensor, error) {
	if !(f0 > 0) {
		return nil, fmt.Errorf("%w: flux %g", ErrDegenerate, f0)
	}
	g, nx, ny, nz := fm.Shape()
	frac := mat.NewDense(g, fm.NVoxels(), slices.Clone(fm.Flux))
	frac.Scale(1/f0, frac)

	return tensor.FromDense(
		[]string{AxisEnergy, AxisI, AxisJ, AxisK},
		[][]tensor.Label{tensor.Range(g), tensor.Range(nx), tensor.Range(ny), tensor.Range(nz)},
		frac.RawMatrix().Data,
	)
}

// Beta returns the mass fractions mass/m0 with axes (cell, i, j, k). Cells
// are the ones present in masses; voxels span the whole mesh.
func Beta(masses map[spatial.Key]float64, m0 float64, fm *mesh.FluxMesh) (*tensor.Tensor, error) {
	if !(m0 > 0) {
		return nil, fmt.Errorf("%w: mass %g", ErrDegenerate, m0)
	}
	_, nx, ny, nz := fm.Shape()
	entries := make(map[tensor.Key]float64, len(masses))
	for k, m := range masses {
		entries[tensor.K(tensor.Int(k.Cell), tensor.Int(k.I), tensor.Int(k.J), tensor.Int(k.K))] = m / m0
	}
	return tensor.FromEntries(
		[]string{AxisCell, AxisI, AxisJ, AxisK},
		[][]tensor.Label{tensor.Ints(spatial.NewIndex(masses).Cells()...), tensor.Range(nx), tensor.Range(ny), tensor.Range(nz)},
		entries,
	)
}

// Incidence returns the material/cell map with axes (material, cell): one
// for the material each cell is made of, absent otherwise.
func Incidence(cellMaterial map[int]string, cells []int, materials []string) (*tensor.Tensor, error) {
	entries := make(map[tensor.Key]float64, len(cells))
	for _, c := range cells {
		m, ok := cellMaterial[c]
		if !ok {
			return nil, fmt.Errorf("superpose: cell %d has no material", c)
		}
		entries[tensor.K(tensor.Str(m), tensor.Int(c))] = 1
	}
	return tensor.FromEntries(
		[]string{AxisMaterial, AxisCell},
		[][]tensor.Label{tensor.Strs(materials...), tensor.Ints(cells...)},
		entries,
	)
}

// Coefficients are the tensors of one superposition.
type Coefficients struct {
	F0        float64
	M0        float64
	Alpha     *tensor.Tensor
	Beta      *tensor.Tensor
	Incidence *tensor.Tensor
}

// NewCoefficients computes the references and coefficient tensors for a
// mesh and the cell masses per voxel.
func NewCoefficients(fm *mesh.FluxMesh, masses map[spatial.Key]float64, cellMaterial map[int]string, materials []string) (*Coefficients, error) {
	f0, err := ReferenceFlux(fm)
	if err != nil {
		return nil, err
	}
	m0, err := ReferenceMass(masses)
	if err != nil {
		return nil, err
	}
	alpha, err := Alpha(fm, f0)
	if err != nil {
		return nil, err
	}
	beta, err := Beta(masses, m0, fm)
	if err != nil {
		return nil, err
	}
	inc, err := Incidence(cellMaterial, spatial.NewIndex(masses).Cells(), materials)
	if err != nil {
		return nil, err
	}
	return &Coefficients{F0: f0, M0: m0, Alpha: alpha, Beta: beta, Incidence: inc}, nil
}

// Apply expands unit results with axes (time, nuclide|g, n_erg, material)
// to (time, nuclide|g, cell, i, j, k).
func (c *Coefficients) Apply(unit *tensor.Tensor) (*tensor.Tensor, error) {
	return Apply(unit, c.Incidence, c.Alpha, c.Beta)
}

// Apply computes ((unit . alpha) . incidence) * beta and orders the result
// axes as (time, nuclide|g, cell, i, j, k).
func Apply(unit, incidence, alpha, beta *tensor.Tensor) (*tensor.Tensor, error) {
	if unit.NDim() != 4 {
		return nil, fmt.Errorf("%w: unit result has axes %v", tensor.ErrShape, unit.Axes())
	}
	second := unit.Axes()[1]

	t, err := unit.TensorDot(alpha)
	if err != nil {
		return nil, fmt.Errorf("contract flux fractions: %w", err)
	}
	if t, err = t.TensorDot(incidence); err != nil {
		return nil, fmt.Errorf("contract material incidence: %w", err)
	}
	if t, err = t.Multiply(beta); err != nil {
		return nil, fmt.Errorf("multiply mass fractions: %w", err)
	}
	return t.Transpose(AxisTime, second, AxisCell, AxisI, AxisJ, AxisK)
}
