package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHalfLife_MeanReverting(t *testing.T) {
	// Deterministic exponential decay toward zero: y_t = 0.5 * y_{t-1}.
	series := make([]float64, 40)
	series[0] = 100
	for i := 1; i < len(series); i++ {
		series[i] = 0.5 * series[i-1]
	}
	hl, ok, err := HalfLife(series)
	require.NoError(t, err)
	require.True(t, ok)
	// beta = 0.5 gives -ln(2)/ln(0.5) = 1.
	assert.InDelta(t, 1.0, hl, 1e-6)
}

func TestHalfLife_NoisyAR1(t *testing.T) {
	series := ar1Series(2000, 0.9, 9)
	hl, ok, err := HalfLife(series)
	require.NoError(t, err)
	require.True(t, ok)
	want := -math.Ln2 / math.Log(0.9)
	assert.InDelta(t, want, hl, want*0.5, "half-life should be near the generating process")
	assert.Greater(t, hl, 0.0)
}

func TestHalfLife_NoReversion(t *testing.T) {
	// Pure trend: beta = 1, so no mean reversion exists.
	series := make([]float64, 50)
	for i := range series {
		series[i] = float64(i)
	}
	_, ok, err := HalfLife(series)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHalfLife_TooShort(t *testing.T) {
	_, _, err := HalfLife([]float64{1, 2})
	assert.ErrorIs(t, err, ErrSeriesTooShort)
}
