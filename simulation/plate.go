package simulation

import (
	"fmt"
	"math"
	"math/rand"

	"hexplanet/core"
)

// Plate is a moving set of crust cells.
type Plate struct {
	Index int
	Name  string

	// Velocity holds the latitude drift (X), longitude drift (Y) and spin
	// about the center axis (Z), all in radians per step.
	Velocity core.Vector3
	// Carry is velocity accrued over steps too small to move any cell. It is
	// realized, and reset, once the combined motion spans half a cell.
	Carry core.Vector3

	Center int     // center-of-mass cell, core.NoCell when empty
	Mass   float64 // total crust mass
	Radius float64 // max arc distance from center to any owned cell
	Cells  []int
}

// Empty reports whether the plate owns no cells.
func (p Plate) Empty() bool { return len(p.Cells) == 0 }

// Motion limits for generated plate velocities.
type Motion struct {
	MinDrift float64
	MaxDrift float64
	MaxSpin  float64
}

// RandomVelocity draws a drift of random heading and speed plus a spin.
func (m Motion) RandomVelocity(rng *rand.Rand) core.Vector3 {
	speed := m.MinDrift + rng.Float64()*(m.MaxDrift-m.MinDrift)
	heading := rng.Float64() * 2 * math.Pi
	spin := (rng.Float64()*2 - 1) * m.MaxSpin
	return core.Vector3{
		X: speed * math.Cos(heading),
		Y: speed * math.Sin(heading),
		Z: spin,
	}
}

func plateName(i int) string {
	return fmt.Sprintf("plate-%02d", i)
}

// plateMotion is the rigid displacement a plate applies in one step: a spin
// about its center axis followed by the rotation carrying the center to its
// drifted position.
type plateMotion struct {
	center     core.Vector3
	spin       float64
	driftAxis  core.Vector3
	driftAngle float64
}

func newPlateMotion(center core.Vector3, velocity core.Vector3) plateMotion {
	geo := core.CartesianToGeographic(center)
	moved := core.NormalizeCoordinates(core.Geographic{
		Lat: geo.Lat + velocity.X,
		Lon: geo.Lon + velocity.Y,
	})
	axis, angle := core.RotationBetween(center, core.GeographicToCartesian(moved, 1))
	return plateMotion{
		center:     center,
		spin:       velocity.Z,
		driftAxis:  axis,
		driftAngle: angle,
	}
}

// reach bounds how far any point within radius of the center moves.
func (m plateMotion) reach(radius float64) float64 {
	return m.driftAngle + math.Abs(m.spin)*math.Sin(math.Min(radius, math.Pi/2))
}

func (m plateMotion) apply(p core.Vector3) core.Vector3 {
	p = core.RotateAround(p, m.center, m.spin)
	return core.RotateAround(p, m.driftAxis, m.driftAngle).Normalize()
}
