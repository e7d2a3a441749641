package superpose

import (
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/roach88/r2s/internal/mesh"
	"github.com/roach88/r2s/internal/spatial"
)

// FlattenFlux returns the group spectrum of every indexed point as a
// groups x index.Len() matrix. index must not be empty.
func FlattenFlux(index *spatial.Index, fm *mesh.FluxMesh) *mat.Dense {
	g, _, _, _ := fm.Shape()
	out := mat.NewDense(g, index.Len(), nil)
	for c, k := range index.Keys() {
		out.SetCol(c, fm.Spectrum(k.I, k.J, k.K))
	}
	return out
}

// FlattenMass returns a len(materials) x index.Len() matrix holding the
// mass of every indexed point in the row of its cell's material. index and
// materials must not be empty.
func FlattenMass(index *spatial.Index, masses map[spatial.Key]float64, cellMaterial map[int]string, materials []string) *mat.Dense {
	out := mat.NewDense(len(materials), index.Len(), nil)
	for c, k := range index.Keys() {
		if r := slices.Index(materials, cellMaterial[k.Cell]); r >= 0 {
			out.Set(r, c, masses[k])
		}
	}
	return out
}
