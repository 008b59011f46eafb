package physics

import (
	"math/rand"
	"testing"

	"hexplanet/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyAndNormalizePercentiles(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	heights := make([]float64, 10000)
	for i := range heights {
		heights[i] = rng.NormFloat64()
	}

	s := Shaping{Roughness: 0.6, OceanDepth: 0.7}
	th, err := s.ClassifyAndNormalize(heights, 60, 65)
	require.NoError(t, err)

	below, continental := 0, 0
	for _, h := range heights {
		if h < SeaLevel {
			below++
		}
		if h >= th.ContinentalHeight {
			continental++
		}
		assert.GreaterOrEqual(t, h, SeaLevel-s.OceanDepth-1e-12)
		assert.LessOrEqual(t, h, SeaLevel+s.Roughness+1e-12)
	}
	assert.InDelta(t, 6000, below, 1)
	assert.InDelta(t, 3500, continental, 1)
	assert.Greater(t, th.ContinentalHeight, SeaLevel)
}

func TestClassifyAndNormalizeIndependentOfAmplitude(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	small := make([]float64, 2000)
	for i := range small {
		small[i] = rng.Float64() * 0.01
	}
	large := make([]float64, len(small))
	for i, h := range small {
		large[i] = h * 1000
	}

	s := Shaping{Roughness: 0.5, OceanDepth: 0.5}
	_, err := s.ClassifyAndNormalize(small, 70, 75)
	require.NoError(t, err)
	_, err = s.ClassifyAndNormalize(large, 70, 75)
	require.NoError(t, err)
	for i := range small {
		assert.InDelta(t, small[i], large[i], 1e-9)
	}
}

func TestClassifyAndNormalizeRejectsBadPercentiles(t *testing.T) {
	tests := []struct {
		name               string
		ocean, continental float64
	}{
		{"negative ocean", -1, 50},
		{"ocean over 100", 101, 101},
		{"continental over 100", 50, 100.5},
		{"ocean above continental", 70, 60},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			heights := []float64{1, 2, 3}
			_, err := Shaping{Roughness: 1, OceanDepth: 0.5}.ClassifyAndNormalize(heights, tc.ocean, tc.continental)
			assert.ErrorIs(t, err, ErrInvalidPercentile)
			assert.Equal(t, []float64{1, 2, 3}, heights)
		})
	}
}

func TestClassifyAndNormalizeEdges(t *testing.T) {
	s := Shaping{Roughness: 0.5, OceanDepth: 0.5}

	_, err := s.ClassifyAndNormalize(nil, 50, 60)
	assert.NoError(t, err)

	flat := []float64{2, 2, 2, 2}
	_, err = s.ClassifyAndNormalize(flat, 50, 60)
	require.NoError(t, err)
	assert.Equal(t, []float64{SeaLevel, SeaLevel, SeaLevel, SeaLevel}, flat)
}

func TestPercentile(t *testing.T) {
	sorted := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	assert.Equal(t, 0.0, Percentile(sorted, 0))
	assert.Equal(t, 6.0, Percentile(sorted, 60))
	assert.Equal(t, 9.0, Percentile(sorted, 100))
}

func TestGenerateHeightField(t *testing.T) {
	g := core.BuildGrid(2)

	a := GenerateHeightField(g, 42, 5, 1.5)
	b := GenerateHeightField(g, 42, 5, 1.5)
	c := GenerateHeightField(g, 43, 5, 1.5)
	require.Len(t, a, g.NumCells())
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	minH, maxH := a[0], a[0]
	for _, h := range a {
		minH, maxH = min(minH, h), max(maxH, h)
	}
	assert.Greater(t, maxH-minH, 0.1)

	none := GenerateHeightField(g, 42, 0, 1.5)
	for _, h := range none {
		assert.Zero(t, h)
	}
}
