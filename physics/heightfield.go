package physics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"hexplanet/core"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// ErrInvalidPercentile is returned for percentile targets outside [0, 100]
// or an ocean target above the continental one.
var ErrInvalidPercentile = errors.New("physics: invalid percentile")

// Sphere is the read-only grid view the crust builders need.
type Sphere interface {
	NumCells() int
	Position(cell int) core.Vector3
	Neighbors(cell int) []int
}

// GenerateHeightField samples fractal 3D noise at every cell direction.
// Each octave doubles the frequency and halves the amplitude.
func GenerateHeightField(grid Sphere, seed int64, octaves int, frequency float64) []float64 {
	noise := opensimplex.New(seed)
	heights := make([]float64, grid.NumCells())
	for cell := range heights {
		p := grid.Position(cell)
		heights[cell] = octaveNoise(noise, p, octaves, frequency)
	}
	return heights
}

func octaveNoise(noise opensimplex.Noise, p core.Vector3, octaves int, frequency float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval3(p.X*frequency, p.Y*frequency, p.Z*frequency) * amplitude
		maxVal += amplitude
		amplitude *= 0.5
		frequency *= 2
	}

	if maxVal == 0 {
		return 0
	}
	return total / maxVal
}

// Shaping controls how raw noise is rescaled around sea level.
type Shaping struct {
	// Land rises at most this far above sea level.
	Roughness float64
	// The deepest ocean floor sits this far below sea level.
	OceanDepth float64
}

// Thresholds records the classification of a height field.
type Thresholds struct {
	Ocean       float64 // raw height at the ocean percentile
	Continental float64 // raw height at the continental percentile
	Min, Max    float64

	// ContinentalHeight is the continental cutoff after normalization.
	ContinentalHeight float64
}

// Percentile returns the value at round(n·p/100) of an ascending slice.
func Percentile(sorted []float64, p float64) float64 {
	idx := int(math.Round(float64(len(sorted)) * p / 100))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// ClassifyAndNormalize picks the ocean and continental thresholds from the
// sorted distribution of heights and rescales heights in place so sea level
// is SeaLevel. Cells below the ocean threshold end up under water.
func (s Shaping) ClassifyAndNormalize(heights []float64, percentOcean, percentContinental float64) (Thresholds, error) {
	if percentOcean < 0 || percentOcean > 100 {
		return Thresholds{}, fmt.Errorf("%w: ocean %.2f", ErrInvalidPercentile, percentOcean)
	}
	if percentContinental < 0 || percentContinental > 100 {
		return Thresholds{}, fmt.Errorf("%w: continental %.2f", ErrInvalidPercentile, percentContinental)
	}
	if percentOcean > percentContinental {
		return Thresholds{}, fmt.Errorf("%w: ocean %.2f above continental %.2f", ErrInvalidPercentile, percentOcean, percentContinental)
	}
	if len(heights) == 0 {
		return Thresholds{}, nil
	}

	sorted := append([]float64(nil), heights...)
	sort.Float64s(sorted)

	th := Thresholds{
		Ocean:       Percentile(sorted, percentOcean),
		Continental: Percentile(sorted, percentContinental),
		Min:         sorted[0],
		Max:         sorted[len(sorted)-1],
	}
	th.ContinentalHeight = s.normalize(th.Continental, th)

	for i, h := range heights {
		heights[i] = s.normalize(h, th)
	}
	return th, nil
}

func (s Shaping) normalize(h float64, th Thresholds) float64 {
	if h >= th.Ocean {
		span := th.Max - th.Ocean
		if span <= 0 {
			return SeaLevel
		}
		return SeaLevel + s.Roughness*(h-th.Ocean)/span
	}
	span := th.Ocean - th.Min
	if span <= 0 {
		return SeaLevel
	}
	return SeaLevel - s.OceanDepth*(th.Ocean-h)/span
}

// CrustField builds the initial crust for every cell from a normalized
// height field.
func (m Isostasy) CrustField(heights []float64) []CrustCell {
	cells := make([]CrustCell, len(heights))
	for i, h := range heights {
		cells[i] = m.DeriveCrustCell(h)
		cells[i].Plate = core.NoCell
	}
	return cells
}
