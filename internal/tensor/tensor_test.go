package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cellVoxels returns the (cell, i, j) fixture shared by most tests.
func cellVoxels(t *testing.T, cells ...int) *Tensor {
	t.Helper()
	if len(cells) == 0 {
		cells = []int{1, 2, 3, 4}
	}
	tn, err := FromEntries(
		[]string{"cell", "i", "j"},
		[][]Label{Ints(cells...), Ints(0, 1, 2), Ints(0, 1)},
		map[Key]float64{
			K(Int(1), Int(0), Int(0)): 3,
			K(Int(1), Int(2), Int(0)): 2,
			K(Int(2), Int(1), Int(1)): 4,
			K(Int(3), Int(1), Int(0)): 5,
			K(Int(4), Int(0), Int(0)): 1,
		},
	)
	require.NoError(t, err)
	return tn
}

func positions(tn *Tensor) map[[3]int]float64 {
	out := make(map[[3]int]float64)
	tn.Each(func(pos []int, v float64) {
		out[[3]int{pos[0], pos[1], pos[2]}] = v
	})
	return out
}

// TestFromEntries_ResolvesLabelPositions tests that entries are stored at
// the position of their label, not at the label value.
func TestFromEntries_ResolvesLabelPositions(t *testing.T) {
	tn := cellVoxels(t, 4, 2, 3, 1)

	assert.Equal(t, 5, tn.NNZ())
	assert.Equal(t, []int{4, 3, 2}, tn.Shape())
	assert.Equal(t, map[[3]int]float64{
		{3, 0, 0}: 3,
		{3, 2, 0}: 2,
		{1, 1, 1}: 4,
		{2, 1, 0}: 5,
		{0, 0, 0}: 1,
	}, positions(tn))

	v, err := tn.Get(Int(1), Int(0), Int(0))
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}

func TestFromEntries_Errors(t *testing.T) {
	tests := []struct {
		name    string
		axes    []string
		labels  [][]Label
		entries map[Key]float64
		want    error
	}{
		{
			name:   "axes and labels differ in length",
			axes:   []string{"cell", "i"},
			labels: [][]Label{Ints(1)},
			want:   ErrShape,
		},
		{
			name:   "duplicate axis",
			axes:   []string{"cell", "cell"},
			labels: [][]Label{Ints(1), Ints(1)},
			want:   ErrShape,
		},
		{
			name:   "duplicate label",
			axes:   []string{"cell"},
			labels: [][]Label{Ints(1, 1)},
			want:   ErrShape,
		},
		{
			name:    "undeclared label",
			axes:    []string{"cell"},
			labels:  [][]Label{Ints(1, 2)},
			entries: map[Key]float64{K(Int(7)): 1},
			want:    ErrLabel,
		},
		{
			name:    "wrong arity",
			axes:    []string{"cell"},
			labels:  [][]Label{Ints(1, 2)},
			entries: map[Key]float64{K(Int(1), Int(0)): 1},
			want:    ErrLabel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEntries(tt.axes, tt.labels, tt.entries)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrShape)
		})
	}
}

func TestFromEntries_DropsZeros(t *testing.T) {
	tn, err := FromEntries([]string{"g"}, [][]Label{Ints(0, 1)}, map[Key]float64{
		K(Int(0)): 0,
		K(Int(1)): 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, tn.NNZ())
}

func TestFromDense(t *testing.T) {
	tn, err := FromDense([]string{"i", "j"}, [][]Label{Ints(0, 1), Strs("a", "b", "c")},
		[]float64{0, 1, 2, 3, 0, 5})
	require.NoError(t, err)
	assert.Equal(t, 4, tn.NNZ())

	v, err := tn.Get(Int(1), Str("a"))
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	_, err = FromDense([]string{"i"}, [][]Label{Ints(0, 1)}, []float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrShape)
}

// TestScale_Density tests the masses = density x volumes step.
func TestScale_Density(t *testing.T) {
	tn := cellVoxels(t)

	got, err := tn.Scale("cell", map[Label]float64{Int(1): 2, Int(2): 0.5, Int(3): 4, Int(4): 0.1})
	require.NoError(t, err)

	assert.Equal(t, map[[3]int]float64{
		{0, 0, 0}: 6,
		{0, 2, 0}: 4,
		{1, 1, 1}: 2,
		{2, 1, 0}: 20,
		{3, 0, 0}: 0.1,
	}, positions(got))

	_, err = tn.Scale("material", nil)
	assert.ErrorIs(t, err, ErrShape)
}

func TestTensorDot_ContractsSharedAxis(t *testing.T) {
	tn := cellVoxels(t)
	density, err := FromEntries([]string{"cell"}, [][]Label{Ints(1, 2, 3, 4)}, map[Key]float64{
		K(Int(1)): 2, K(Int(2)): 0.5, K(Int(3)): 4, K(Int(4)): 0.1,
	})
	require.NoError(t, err)

	got, err := tn.TensorDot(density)
	require.NoError(t, err)
	assert.Equal(t, []string{"i", "j"}, got.Axes())

	want := map[Key]float64{
		K(Int(0), Int(0)): 6.1,
		K(Int(2), Int(0)): 4,
		K(Int(1), Int(1)): 2,
		K(Int(1), Int(0)): 20,
	}
	entries := got.Entries()
	require.Len(t, entries, len(want))
	for k, v := range want {
		assert.InDelta(t, v, entries[k], 1e-12, "entry %s", k)
	}
}

// TestTensorDot_MatchesByLabelValue tests that a shared axis listing the same
// labels in another order contracts to the same result.
func TestTensorDot_MatchesByLabelValue(t *testing.T) {
	weights := func(cells ...int) *Tensor {
		w, err := FromEntries([]string{"cell", "material"},
			[][]Label{Ints(cells...), Strs("steel", "water")},
			map[Key]float64{
				K(Int(1), Str("steel")): 1,
				K(Int(2), Str("water")): 1,
				K(Int(3), Str("steel")): 1,
				K(Int(4), Str("water")): 1,
			})
		require.NoError(t, err)
		return w
	}

	ordered, err := cellVoxels(t).TensorDot(weights(1, 2, 3, 4))
	require.NoError(t, err)
	permuted, err := cellVoxels(t).TensorDot(weights(4, 3, 1, 2))
	require.NoError(t, err)

	assert.Equal(t, []string{"i", "j", "material"}, ordered.Axes())
	assert.Equal(t, ordered.Entries(), permuted.Entries())

	v, err := ordered.Get(Int(1), Int(0), Str("steel"))
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
}

// TestTensorDot_Symmetric tests that A.B equals B.A up to axis order.
func TestTensorDot_Symmetric(t *testing.T) {
	a := cellVoxels(t)
	b, err := FromEntries([]string{"j", "g"}, [][]Label{Ints(1, 0), Ints(0, 1)}, map[Key]float64{
		K(Int(0), Int(0)): 2,
		K(Int(1), Int(1)): 3,
		K(Int(0), Int(1)): 0.5,
	})
	require.NoError(t, err)

	ab, err := a.TensorDot(b)
	require.NoError(t, err)
	ba, err := b.TensorDot(a)
	require.NoError(t, err)
	assert.Equal(t, []string{"cell", "i", "g"}, ab.Axes())
	assert.Equal(t, []string{"g", "cell", "i"}, ba.Axes())

	back, err := ba.Transpose("cell", "i", "g")
	require.NoError(t, err)
	assert.Equal(t, ab.Entries(), back.Entries())
}

func TestTensorDot_Errors(t *testing.T) {
	a := cellVoxels(t)

	disjoint, err := FromEntries([]string{"g"}, [][]Label{Ints(0)}, nil)
	require.NoError(t, err)
	_, err = a.TensorDot(disjoint)
	assert.ErrorIs(t, err, ErrShape)
	assert.Contains(t, err.Error(), "no coincident axes")

	short, err := FromEntries([]string{"cell"}, [][]Label{Ints(1, 2, 3)}, nil)
	require.NoError(t, err)
	_, err = a.TensorDot(short)
	assert.ErrorIs(t, err, ErrShape)

	other, err := FromEntries([]string{"cell"}, [][]Label{Ints(1, 2, 3, 9)}, nil)
	require.NoError(t, err)
	_, err = a.TensorDot(other)
	assert.ErrorIs(t, err, ErrShape)
}

func TestTensorDot_FullContractionIsScalar(t *testing.T) {
	a := cellVoxels(t)
	ones, err := FromDense([]string{"j", "i", "cell"},
		[][]Label{Ints(0, 1), Ints(0, 1, 2), Ints(1, 2, 3, 4)},
		[]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1})
	require.NoError(t, err)

	got, err := a.TensorDot(ones)
	require.NoError(t, err)
	assert.Equal(t, 0, got.NDim())
	assert.Equal(t, 15.0, got.Sum())
}

func TestMultiply_Broadcast(t *testing.T) {
	weights, err := FromEntries([]string{"i", "j"}, [][]Label{Ints(0, 1, 2), Ints(0, 1)},
		map[Key]float64{
			K(Int(0), Int(0)): 2,
			K(Int(2), Int(0)): 3,
			K(Int(1), Int(0)): 4,
		})
	require.NoError(t, err)

	want := map[Key]float64{
		K(Int(1), Int(0), Int(0)): 6,
		K(Int(1), Int(2), Int(0)): 6,
		K(Int(3), Int(1), Int(0)): 20,
		K(Int(4), Int(0), Int(0)): 2,
	}

	got, err := cellVoxels(t).Multiply(weights)
	require.NoError(t, err)
	assert.Equal(t, []string{"cell", "i", "j"}, got.Axes())
	assert.Equal(t, want, got.Entries())

	// Operand order does not matter.
	rev, err := weights.Multiply(cellVoxels(t))
	require.NoError(t, err)
	assert.Equal(t, want, rev.Entries())
}

// TestMultiply_PermutedSuperset tests broadcasting into a superset whose
// axes are in another order.
func TestMultiply_PermutedSuperset(t *testing.T) {
	big, err := FromEntries([]string{"i", "cell", "j"},
		[][]Label{Ints(0, 1, 2), Ints(1, 2, 3, 4), Ints(0, 1)},
		map[Key]float64{
			K(Int(0), Int(1), Int(0)): 3,
			K(Int(2), Int(1), Int(0)): 2,
			K(Int(1), Int(2), Int(1)): 4,
			K(Int(1), Int(3), Int(0)): 5,
			K(Int(0), Int(4), Int(0)): 1,
		})
	require.NoError(t, err)
	small, err := FromEntries([]string{"j", "i"}, [][]Label{Ints(0, 1), Ints(2, 1, 0)},
		map[Key]float64{
			K(Int(0), Int(0)): 2,
			K(Int(0), Int(2)): 3,
			K(Int(0), Int(1)): 4,
		})
	require.NoError(t, err)

	got, err := big.Multiply(small)
	require.NoError(t, err)
	assert.Equal(t, []string{"i", "cell", "j"}, got.Axes())
	assert.Equal(t, map[Key]float64{
		K(Int(0), Int(1), Int(0)): 6,
		K(Int(2), Int(1), Int(0)): 6,
		K(Int(1), Int(3), Int(0)): 20,
		K(Int(0), Int(4), Int(0)): 2,
	}, got.Entries())
}

// TestMultiply_SliceProperty tests that every slice of A*B along the extra
// axis equals A multiplied element-wise with the matching slice of B.
func TestMultiply_SliceProperty(t *testing.T) {
	a, err := FromDense([]string{"p", "q"}, [][]Label{Ints(0, 1), Ints(0, 1, 2)},
		[]float64{1, 2, 0, 4, 5, 6})
	require.NoError(t, err)
	b, err := FromDense([]string{"p", "q", "r"}, [][]Label{Ints(0, 1), Ints(0, 1, 2), Strs("x", "y")},
		[]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 0})
	require.NoError(t, err)

	ab, err := a.Multiply(b)
	require.NoError(t, err)

	for _, r := range Strs("x", "y") {
		slice, err := ab.Slice("r", r)
		require.NoError(t, err)
		bs, err := b.Slice("r", r)
		require.NoError(t, err)
		for p := 0; p < 2; p++ {
			for q := 0; q < 3; q++ {
				av, _ := a.Get(Int(p), Int(q))
				bv, _ := bs.Get(Int(p), Int(q))
				got, _ := slice.Get(Int(p), Int(q))
				assert.Equal(t, av*bv, got, "r=%s p=%d q=%d", r, p, q)
			}
		}
	}
}

func TestMultiply_Errors(t *testing.T) {
	a := cellVoxels(t)

	notSubset, err := FromEntries([]string{"i", "g"}, [][]Label{Ints(0, 1, 2), Ints(0)}, nil)
	require.NoError(t, err)
	_, err = a.Multiply(notSubset)
	assert.ErrorIs(t, err, ErrShape)

	otherLabels, err := FromEntries([]string{"i"}, [][]Label{Ints(0, 1, 5)}, nil)
	require.NoError(t, err)
	_, err = a.Multiply(otherLabels)
	assert.ErrorIs(t, err, ErrShape)
}

func TestReplaceAxes_BinEdges(t *testing.T) {
	tn := cellVoxels(t)

	got, err := tn.ReplaceAxes(map[string]Replacement{
		"i": {Name: "xbins", Labels: Floats(-1, 1, 3, 6)},
		"j": {Name: "ybins", Labels: Floats(-5, 5, 10)},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"cell", "xbins", "ybins"}, got.Axes())
	assert.Equal(t, []int{4, 4, 3}, got.Shape())
	assert.Equal(t, positions(tn), positions(got))

	v, err := got.Get(Int(3), Float(1), Float(-5))
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)

	// The input is untouched.
	assert.Equal(t, []string{"cell", "i", "j"}, tn.Axes())
}

func TestReplaceAxes_Errors(t *testing.T) {
	tn := cellVoxels(t)

	_, err := tn.ReplaceAxes(map[string]Replacement{"k": {Name: "zbins", Labels: Floats(0, 1)}})
	assert.ErrorIs(t, err, ErrShape)

	_, err = tn.ReplaceAxes(map[string]Replacement{"i": {Name: "xbins", Labels: Floats(0, 1, 2, 3, 4)}})
	assert.ErrorIs(t, err, ErrShape)

	_, err = tn.ReplaceAxes(map[string]Replacement{"i": {Name: "j", Labels: Ints(0, 1, 2)}})
	assert.ErrorIs(t, err, ErrShape)
}

func TestSlice(t *testing.T) {
	tn := cellVoxels(t)

	got, err := tn.Slice("j", Int(0))
	require.NoError(t, err)
	assert.Equal(t, []string{"cell", "i"}, got.Axes())
	assert.Equal(t, 4, got.NNZ())
	assert.Equal(t, 11.0, got.Sum())

	_, err = tn.Slice("j", Int(9))
	assert.ErrorIs(t, err, ErrLabel)
}

func TestTranspose(t *testing.T) {
	tn := cellVoxels(t)

	got, err := tn.Transpose("j", "cell", "i")
	require.NoError(t, err)
	v, err := got.Get(Int(1), Int(2), Int(1))
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)

	_, err = tn.Transpose("cell", "i")
	assert.ErrorIs(t, err, ErrShape)
}

func TestLabel(t *testing.T) {
	assert.NotEqual(t, Int(1), Float(1))
	assert.Equal(t, Tuple(1, 2, 3), Tuple(1, 2, 3))

	parts, ok := Tuple(4, -1).AsTuple()
	require.True(t, ok)
	assert.Equal(t, []int{4, -1}, parts)

	assert.Equal(t, "(1, Co60, 0.5)", K(Int(1), Str("Co60"), Float(0.5)).String())
	assert.Negative(t, Compare(Int(1), Int(2)))
	assert.Negative(t, Compare(Tuple(1, 2), Tuple(1, 3)))
	assert.Zero(t, Compare(Str("a"), Str("a")))
}
