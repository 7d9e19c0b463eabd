package stats

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCointegrationADF_CointegratedPair(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	const n = 500
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 1; i < n; i++ {
		x[i] = x[i-1] + rng.NormFloat64()
	}
	for i := 0; i < n; i++ {
		y[i] = 1.5*x[i] + 3 + rng.NormFloat64()*0.3
	}

	res, err := CointegrationADF(x, y, 1)
	require.NoError(t, err)
	assert.True(t, res.Cointegrated)
	assert.Less(t, res.ADFStatistic, res.CriticalValues["5%"],
		"classification must come from the 5%% critical-value comparison")
}

func TestCointegrationADF_IndependentWalks(t *testing.T) {
	rng := rand.New(rand.NewSource(22))
	const n = 500
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 1; i < n; i++ {
		x[i] = x[i-1] + rng.NormFloat64()
		y[i] = y[i-1] + rng.NormFloat64()
	}

	res, err := CointegrationADF(x, y, 1)
	require.NoError(t, err)
	assert.False(t, res.Cointegrated)
}

func TestCointegrationADF_LengthMismatch(t *testing.T) {
	_, err := CointegrationADF([]float64{1, 2, 3}, []float64{1, 2}, 1)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}
