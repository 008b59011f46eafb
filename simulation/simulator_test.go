package simulation

import (
	"io"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"hexplanet/core"
	"hexplanet/physics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type worldOpts struct {
	level  int
	plates int
	seed   int64
	motion Motion
}

// newTestSim builds a small world: random plate seeds grown to fill the
// grid and a 60/65 percentile crust field.
func newTestSim(t *testing.T, o worldOpts) (*core.Grid, *Simulator) {
	t.Helper()
	grid := core.BuildGrid(o.level)
	rng := rand.New(rand.NewSource(o.seed))

	p := NewPartitioner(grid)
	for i := 0; i < o.plates; i++ {
		p.SeedRandom(rng)
	}
	p.Expand(-1)

	heights := physics.GenerateHeightField(grid, o.seed, 4, 1.5)
	th, err := physics.Shaping{Roughness: 0.5, OceanDepth: 0.7}.ClassifyAndNormalize(heights, 60, 65)
	require.NoError(t, err)

	model := physics.NewIsostasy(physics.DefaultDensities(), th.ContinentalHeight, 1, grid.NumCells())
	cells := model.CrustField(heights)
	plates := CreatePlates(cells, p.Regions(), o.motion, rng)

	sim, err := NewSimulator(grid, model, DefaultParams(), cells, plates, quietLogger())
	require.NoError(t, err)
	return grid, sim
}

// fastMotion moves plates about one cell per step on a level 1 grid.
var fastMotion = Motion{MinDrift: 0.3, MaxDrift: 0.4, MaxSpin: 0.05}

func requireConsistentPlates(t *testing.T, sim *Simulator) {
	t.Helper()
	total := 0
	for i := 0; i < sim.NumPlates(); i++ {
		p := sim.Plate(i)
		total += len(p.Cells)
		for _, cell := range p.Cells {
			require.Equal(t, i, sim.Cell(cell).Plate)
		}
	}
	require.Equal(t, len(sim.cells), total)
}

func TestExecuteTimeStepSmallWorld(t *testing.T) {
	_, sim := newTestSim(t, worldOpts{level: 0, plates: 4, seed: 1, motion: fastMotion})
	require.Equal(t, 42, len(sim.cells))
	require.Equal(t, 4, sim.NumPlates())

	before := sim.TotalMass()
	report := sim.ExecuteTimeStep()

	assert.Equal(t, 1, report.Step)
	assert.Equal(t, 1, sim.Step())
	assert.InEpsilon(t, before+report.CreatedMass, sim.TotalMass(), 1e-9)
	requireConsistentPlates(t, sim)

	for cell := range sim.cells {
		c := sim.Cell(cell)
		assert.GreaterOrEqual(t, c.Thickness, 0.0)
		assert.Greater(t, c.Density, 0.0)
	}
}

func TestMassConservedOverManySteps(t *testing.T) {
	_, sim := newTestSim(t, worldOpts{level: 1, plates: 6, seed: 2, motion: fastMotion})
	initial := sim.TotalMass()

	created, mantle := 0.0, 0.0
	events := 0
	for i := 0; i < 15; i++ {
		before := sim.TotalMass()
		r := sim.ExecuteTimeStep()
		require.InEpsilon(t, before+r.CreatedMass, sim.TotalMass(), 1e-9, "step %d", r.Step)

		created += r.CreatedMass
		mantle += r.MantleMass
		events += r.Merged + r.Subductions + r.Collisions + r.Divergent
	}

	assert.InEpsilon(t, initial+created, sim.TotalMass(), 1e-9)
	assert.InDelta(t, created, sim.CreatedMass(), 1e-9*initial)
	assert.InDelta(t, mantle, sim.MantleMass(), 1e-9*initial)
	assert.Greater(t, events, 0)
	requireConsistentPlates(t, sim)
}

func TestStationaryPlatesOnlyErode(t *testing.T) {
	_, sim := newTestSim(t, worldOpts{level: 1, plates: 5, seed: 3})
	owners := make([]int, len(sim.cells))
	for i, c := range sim.cells {
		owners[i] = c.Plate
	}

	before := sim.TotalMass()
	r := sim.ExecuteTimeStep()

	assert.Zero(t, r.Merged)
	assert.Zero(t, r.Subductions)
	assert.Zero(t, r.Collisions)
	assert.Zero(t, r.Divergent)
	assert.Zero(t, r.CreatedMass)
	assert.InEpsilon(t, before, sim.TotalMass(), 1e-9)
	for i, c := range sim.cells {
		assert.Equal(t, owners[i], c.Plate)
	}
}

func TestSlowPlatesCarryMotion(t *testing.T) {
	slow := Motion{MinDrift: 0.02, MaxDrift: 0.02}
	_, sim := newTestSim(t, worldOpts{level: 1, plates: 5, seed: 3, motion: slow})
	require.Less(t, 0.02, sim.spacing/2, "drift must be below half a cell")

	velocities := make([]core.Vector3, sim.NumPlates())
	for i := range velocities {
		velocities[i] = sim.Plate(i).Velocity
	}

	r := sim.ExecuteTimeStep()
	assert.Zero(t, r.Merged+r.Subductions+r.Collisions+r.Divergent, "nothing moves on the first step")
	for i := range velocities {
		assert.Equal(t, velocities[i], sim.Plate(i).Carry)
	}

	events := 0
	for i := 0; i < 30; i++ {
		r := sim.ExecuteTimeStep()
		events += r.Merged + r.Subductions + r.Collisions + r.Divergent
	}
	assert.Greater(t, events, 0, "carried motion is eventually realized")
	requireConsistentPlates(t, sim)
}

func TestEmptyPlateStaysEmpty(t *testing.T) {
	grid := core.BuildGrid(1)
	model := physics.NewIsostasy(physics.DefaultDensities(), 1.2, 1, grid.NumCells())
	heights := make([]float64, grid.NumCells())
	var north, south []int
	for cell := range heights {
		heights[cell] = 0.8
		if grid.Position(cell).Y >= 0 {
			north = append(north, cell)
		} else {
			south = append(south, cell)
		}
	}
	cells := model.CrustField(heights)
	plates := CreatePlates(cells, [][]int{north, south, nil}, fastMotion, rand.New(rand.NewSource(9)))

	sim, err := NewSimulator(grid, model, DefaultParams(), cells, plates, quietLogger())
	require.NoError(t, err)

	empty := sim.Plate(2)
	assert.True(t, empty.Empty())
	assert.Equal(t, core.NoCell, empty.Center)
	assert.Zero(t, empty.Mass)
	assert.Zero(t, empty.Radius)

	for i := 0; i < 3; i++ {
		sim.ExecuteTimeStep()
	}
	assert.True(t, sim.Plate(2).Empty())
	requireConsistentPlates(t, sim)
}

func TestPlateKinematics(t *testing.T) {
	grid, sim := newTestSim(t, worldOpts{level: 2, plates: 3, seed: 4})
	for i := 0; i < sim.NumPlates(); i++ {
		p := sim.Plate(i)
		require.False(t, p.Empty())
		assert.Equal(t, plateName(i), p.Name)
		assert.InDelta(t, physics.TotalMass(cellsOf(sim, p.Cells)), p.Mass, 1e-9*p.Mass)

		center := grid.Position(p.Center)
		for _, cell := range p.Cells {
			assert.LessOrEqual(t, core.ArcDistance(center, grid.Position(cell)), p.Radius+1e-12)
		}
	}
}

func cellsOf(sim *Simulator, ids []int) []physics.CrustCell {
	out := make([]physics.CrustCell, len(ids))
	for i, id := range ids {
		out[i] = sim.Cell(id)
	}
	return out
}

func TestNewSimulatorRejectsBadInput(t *testing.T) {
	grid := core.BuildGrid(0)
	model := physics.NewIsostasy(physics.DefaultDensities(), 1.2, 1, grid.NumCells())

	_, err := NewSimulator(grid, model, DefaultParams(), make([]physics.CrustCell, 10), nil, nil)
	assert.Error(t, err)

	cells := model.CrustField(make([]float64, grid.NumCells()))
	_, err = NewSimulator(grid, model, DefaultParams(), cells, []Plate{{}}, nil)
	assert.Error(t, err, "cells still carry core.NoCell")

	for i := range cells {
		cells[i].Plate = 0
	}
	sim, err := NewSimulator(grid, model, DefaultParams(), cells, []Plate{{}}, nil)
	require.NoError(t, err)
	assert.Equal(t, grid.NumCells(), len(sim.Plate(0).Cells))
}

func TestSinks(t *testing.T) {
	tests := []struct {
		name     string
		incoming physics.CrustCell
		occupant physics.CrustCell
		want     bool
	}{
		{"lower incoming sinks", physics.CrustCell{Height: 0.8}, physics.CrustCell{Height: 0.9}, true},
		{"higher incoming overrides", physics.CrustCell{Height: 1.1}, physics.CrustCell{Height: 0.9}, false},
		{"younger incoming sinks", physics.CrustCell{Height: 0.9, CreatedAt: 5}, physics.CrustCell{Height: 0.9, CreatedAt: 2}, true},
		{"older incoming overrides", physics.CrustCell{Height: 0.9, CreatedAt: 1}, physics.CrustCell{Height: 0.9, CreatedAt: 2}, false},
		{"full tie sinks incoming", physics.CrustCell{Height: 0.9, CreatedAt: 3}, physics.CrustCell{Height: 0.9, CreatedAt: 3}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sinks(tt.incoming, tt.occupant))
		})
	}
}

func TestHeavierPlate(t *testing.T) {
	s := &Simulator{plates: []Plate{{Mass: 5}, {Mass: 7}, {Mass: 5}}}
	assert.True(t, s.heavierPlate(1, 0))
	assert.False(t, s.heavierPlate(0, 1))
	assert.True(t, s.heavierPlate(0, 2))
	assert.False(t, s.heavierPlate(2, 0))
}

func TestPlateMotionIsRigid(t *testing.T) {
	center := core.GeographicToCartesian(core.Geographic{Lat: 0.3, Lon: 1.1}, 1)
	m := newPlateMotion(center, core.Vector3{X: 0.1, Y: -0.2, Z: 0.05})

	moved := m.apply(center)
	want := core.GeographicToCartesian(core.Geographic{Lat: 0.4, Lon: 0.9}, 1)
	assert.InDelta(t, 0, core.ArcDistance(moved, want), 1e-9)

	a := core.GeographicToCartesian(core.Geographic{Lat: -0.2, Lon: 0.7}, 1)
	b := core.GeographicToCartesian(core.Geographic{Lat: 0.5, Lon: 1.6}, 1)
	assert.InDelta(t, core.ArcDistance(a, b), core.ArcDistance(m.apply(a), m.apply(b)), 1e-9)
	assert.InDelta(t, 1, m.apply(a).Length(), 1e-12)
}

func TestRandomVelocityWithinLimits(t *testing.T) {
	m := Motion{MinDrift: 0.01, MaxDrift: 0.02, MaxSpin: 0.005}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		v := m.RandomVelocity(rng)
		speed := math.Hypot(v.X, v.Y)
		assert.GreaterOrEqual(t, speed, m.MinDrift-1e-12)
		assert.LessOrEqual(t, speed, m.MaxDrift+1e-12)
		assert.LessOrEqual(t, math.Abs(v.Z), m.MaxSpin)
	}
}

func TestParallelForCoversRange(t *testing.T) {
	for _, n := range []int{0, 1, 7, 1000} {
		hits := make([]int, n)
		parallelFor(n, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				hits[i]++
			}
		})
		for i, h := range hits {
			require.Equal(t, 1, h, "n=%d index %d", n, i)
		}
	}
}
