package source

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/r2s/internal/spatial"
	"github.com/roach88/r2s/internal/testutil"
)

var (
	keyA = spatial.Key{Cell: 1, I: 0}
	keyB = spatial.Key{Cell: 2, I: 0}
	keyC = spatial.Key{Cell: 2, I: 1}
)

func testFrame(t *testing.T) (*spatial.Frame, map[spatial.Key]float64) {
	t.Helper()
	volumes := map[spatial.Key]float64{keyA: 1, keyB: 0.01, keyC: 1}
	f, err := spatial.NewFrame(spatial.KindGamma, 3600, spatial.NewIndex(volumes),
		[]float64{0, 1, 2}, nil, []float64{0, 1, 2}, []float64{0, 1}, []float64{0, 1})
	require.NoError(t, err)
	for _, e := range []spatial.Entry{
		{Bin: 0, Key: keyA, Value: 50},
		{Bin: 1, Key: keyA, Value: 30},
		{Bin: 0, Key: keyB, Value: 10},
		{Bin: 1, Key: keyC, Value: 9.5},
		{Bin: 0, Key: keyC, Value: 0.5},
	} {
		require.NoError(t, f.Add(e.Bin, e.Key, e.Value))
	}
	return f, volumes
}

func TestBuild(t *testing.T) {
	f, volumes := testFrame(t)
	src, err := Build(f, volumes, Options{IntensityFilter: 0.01, VolumeFilter: 0.05})
	require.NoError(t, err)

	assert.Equal(t, 100.0, src.Total)
	assert.Equal(t, 0.5, src.IntensityRejected)
	assert.Equal(t, 10.0, src.VolumeRejected)
	assert.Equal(t, 3, src.Entries)
	assert.InDelta(t, 10.0, src.VolumeRejectedPct(), 1e-12)
	assert.Equal(t, keyA, src.Peak)
	assert.Equal(t, 80.0, src.PeakIntensity)

	var buf bytes.Buffer
	_, err = src.WriteTo(&buf)
	require.NoError(t, err)
	testutil.AssertGolden(t, "sdef", buf.Bytes())
}

func TestBuild_RejectionsAccounted(t *testing.T) {
	f, volumes := testFrame(t)
	for _, opts := range []Options{
		{},
		{IntensityFilter: 0.2},
		{VolumeFilter: 0.5},
		{IntensityFilter: 0.1, VolumeFilter: 2},
	} {
		src, err := Build(f, volumes, opts)
		if err != nil {
			assert.ErrorIs(t, err, ErrZeroIntensity)
			continue
		}
		var kept float64
		for _, line := range strings.Split(src.String(), "\n") {
			if strings.HasPrefix(line, "SP1 ") {
				for _, tok := range strings.Fields(line)[1:] {
					kept += parse(t, tok)
				}
			}
		}
		assert.InDelta(t, src.Total, kept+src.IntensityRejected+src.VolumeRejected, 1e-9, "%+v", opts)
	}
}

func TestBuild_VolumeFilterRejects(t *testing.T) {
	f, volumes := testFrame(t)
	src, err := Build(f, volumes, Options{VolumeFilter: 0.05})
	require.NoError(t, err)
	assert.Equal(t, 10.0, src.VolumeRejected)
	assert.Equal(t, 4, src.Entries)
	out := src.String()
	assert.Contains(t, out, "\nSI1 L 1 2 1 2\n")
	assert.Contains(t, out, "\nSP1 5.00000e+01 5.00000e-01 3.00000e+01 9.50000e+00\n")
	assert.Contains(t, out, "\nDS3 S 8 9 8 9\n")
}

func TestBuild_Errors(t *testing.T) {
	index := spatial.NewIndex(map[spatial.Key]float64{keyA: 1})
	empty, err := spatial.NewFrame(spatial.KindGamma, 0, index, []float64{0, 1}, nil, []float64{0, 1}, []float64{0, 1}, []float64{0, 1})
	require.NoError(t, err)
	_, err = Build(empty, nil, Options{})
	assert.ErrorIs(t, err, ErrZeroIntensity)

	atoms, err := spatial.NewFrame(spatial.KindAtoms, 0, index, nil, []string{"H3"}, []float64{0, 1}, []float64{0, 1}, []float64{0, 1})
	require.NoError(t, err)
	_, err = Build(atoms, nil, Options{})
	assert.Error(t, err)

	f, volumes := testFrame(t)
	_, err = Build(f, volumes, Options{Particle: "x"})
	assert.Error(t, err)

	src, err := Build(f, volumes, Options{Particle: "N", StartDistribution: 10})
	require.NoError(t, err)
	assert.Contains(t, src.String(), "SDEF PAR=1 CEL=D10 ERG=FCEL D11")
}

func TestBinDistributions(t *testing.T) {
	for _, start := range []int{1, 2} {
		bins := []float64{1, 2, 3, 4}
		next, dists := BinDistributions(bins, start)
		require.Len(t, dists, len(bins)-1)
		assert.Equal(t, start+len(dists), next)
		for i, d := range dists {
			assert.Equal(t, []float64{bins[i], bins[i+1]}, d.Values)
			assert.Equal(t, []float64{1}, d.Probs)
			assert.Equal(t, start+i, d.Name)
		}
	}
}

func TestWrap(t *testing.T) {
	tokens := []string{"SP1"}
	for range 30 {
		tokens = append(tokens, "1.00000e+00")
	}
	lines := wrap(tokens)
	require.Greater(t, len(lines), 1)
	for i, l := range lines {
		assert.LessOrEqual(t, len(l), LineWidth)
		if i > 0 {
			assert.True(t, strings.HasPrefix(l, "     1"), l)
		}
	}
	assert.Equal(t, tokens, strings.Fields(strings.Join(lines, " ")))
}
