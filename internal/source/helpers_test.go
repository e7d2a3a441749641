package source

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, s string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(s, 64)
	require.NoError(t, err)
	return v
}
