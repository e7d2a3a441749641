package profile

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioText = `FLUX 2.0e12
TIME 1.0 YEARS ATOMS
FLUX 0
ZERO
TIME 1 HOURS ATOMS
flux  1.
TIME 2 HOURS SPEC
`

func TestParseScenarioTemplate(t *testing.T) {
	st, err := ParseScenarioTemplate(scenarioText, 1e12)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1e-12}, st.coeffs)

	assert.Equal(t, []string{
		"FLUX 6.0000e+12",
		"TIME 1.0 YEARS ATOMS",
		"FLUX 0",
		"ZERO",
		"TIME 1 HOURS ATOMS",
		"flux  3.0000e+00",
		"TIME 2 HOURS SPEC",
	}, st.Lines(3e12))
}

func TestParseScenarioTemplate_Errors(t *testing.T) {
	_, err := ParseScenarioTemplate("FLUX abc\n", 1)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ParseScenarioTemplate("FLUX 1.0x\n", 1)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ParseScenarioTemplate("FLUX 1\n", 0)
	assert.ErrorIs(t, err, ErrValidation)
}

// TestScenarioTemplate_ConcurrentRender tests that one template renders the
// same text from many goroutines.
func TestScenarioTemplate_ConcurrentRender(t *testing.T) {
	st, err := ParseScenarioTemplate(scenarioText, 1e12)
	require.NoError(t, err)
	want := st.Render(5e11)

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = st.Render(5e11)
		}()
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}
