package rendering

import (
	"math"
	"math/rand"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// heightStop is one point on the height colour ramp, relative to sea level.
type heightStop struct {
	offset float64
	color  rl.Color
}

var heightRamp = []heightStop{
	{-0.7, rl.NewColor(8, 20, 70, 255)},     // abyssal plain
	{-0.25, rl.NewColor(20, 60, 140, 255)},  // ocean floor
	{-0.02, rl.NewColor(60, 130, 200, 255)}, // shelf
	{0, rl.NewColor(215, 200, 140, 255)},    // coast
	{0.08, rl.NewColor(80, 150, 60, 255)},   // lowland
	{0.25, rl.NewColor(140, 120, 70, 255)},  // highland
	{0.4, rl.NewColor(110, 100, 95, 255)},   // mountain
	{0.5, rl.NewColor(245, 245, 250, 255)},  // peak
}

// HeightColor maps a crust height to the colour ramp.
func HeightColor(height, seaLevel float64) rl.Color {
	d := height - seaLevel
	if d <= heightRamp[0].offset {
		return heightRamp[0].color
	}
	for i := 1; i < len(heightRamp); i++ {
		hi := heightRamp[i]
		if d <= hi.offset {
			lo := heightRamp[i-1]
			return lerpColor(lo.color, hi.color, (d-lo.offset)/(hi.offset-lo.offset))
		}
	}
	return heightRamp[len(heightRamp)-1].color
}

func lerpColor(a, b rl.Color, t float64) rl.Color {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return rl.NewColor(mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), mix(a.A, b.A))
}

// PlateColors returns n distinct colours. Hues are spread by the golden
// angle from a seeded start so neighbouring plate indices contrast.
func PlateColors(n int, seed int64) []rl.Color {
	rng := rand.New(rand.NewSource(seed))
	hue := rng.Float64()
	out := make([]rl.Color, n)
	for i := range out {
		sat := 0.55 + 0.3*rng.Float64()
		val := 0.7 + 0.25*rng.Float64()
		out[i] = hsv(hue, sat, val)
		hue = math.Mod(hue+0.618033988749895, 1)
	}
	return out
}

// NoPlateColor is used for cells without a plate.
var NoPlateColor = rl.NewColor(40, 40, 40, 255)

func hsv(h, s, v float64) rl.Color {
	h = math.Mod(h, 1) * 6
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h, 2)-1))
	m := v - c

	var r, g, b float64
	switch int(h) {
	case 0:
		r, g, b = c, x, 0
	case 1:
		r, g, b = x, c, 0
	case 2:
		r, g, b = 0, c, x
	case 3:
		r, g, b = 0, x, c
	case 4:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	to8 := func(f float64) uint8 { return uint8(math.Round((f + m) * 255)) }
	return rl.NewColor(to8(r), to8(g), to8(b), 255)
}

// ColorMode selects what cell colours show.
type ColorMode int

const (
	ColorByHeight ColorMode = iota
	ColorByPlate
)

// CellColors colours every cell by height or by owning plate.
func CellColors(mode ColorMode, heights []float64, plates []int, palette []rl.Color, seaLevel float64) []rl.Color {
	out := make([]rl.Color, len(heights))
	for i, h := range heights {
		if mode == ColorByPlate {
			p := plates[i]
			if p < 0 || p >= len(palette) {
				out[i] = NoPlateColor
			} else {
				out[i] = palette[p]
			}
			continue
		}
		out[i] = HeightColor(h, seaLevel)
	}
	return out
}
