package physics

import (
	"testing"

	"hexplanet/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// star is a hub cell 0 surrounded by a ring of leaves.
type star struct {
	leaves int
}

func (s star) NumCells() int { return s.leaves + 1 }
func (s star) Position(cell int) core.Vector3 { return core.Vector3{X: float64(cell)} }
func (s star) Neighbors(cell int) []int {
	if cell == 0 {
		out := make([]int, s.leaves)
		for i := range out {
			out[i] = i + 1
		}
		return out
	}
	prev := (cell-2+s.leaves)%s.leaves + 1
	next := cell%s.leaves + 1
	return []int{0, prev, next}
}

func starCells(m Isostasy, heights ...float64) []CrustCell {
	return m.CrustField(heights)
}

func TestErosionMovesMaterialDownhill(t *testing.T) {
	m := testModel()
	grid := star{leaves: 4}
	cells := starCells(m, 1.6, 1.2, 1.3, 1.0, 1.25)
	before := TotalMass(cells)

	e := Erosion{CutoffPercent: 100, MaxPerStep: 0.05}
	transfers := e.Plan(m, grid, cells)
	require.NotEmpty(t, transfers)

	hub := 1.6
	e.Apply(m, cells, transfers)

	assert.InDelta(t, before, TotalMass(cells), 1e-9)
	assert.Less(t, cells[0].Height, hub)
	assert.GreaterOrEqual(t, cells[0].Height, hub-0.05-1e-12)
	for _, c := range cells[1:] {
		assert.LessOrEqual(t, c.Height, cells[0].Height+1e-12)
	}
}

func TestErosionPlanIsFromSnapshot(t *testing.T) {
	m := testModel()
	grid := star{leaves: 4}
	cells := starCells(m, 1.6, 1.2, 1.3, 1.0, 1.25)
	snapshot := append([]CrustCell(nil), cells...)

	e := Erosion{CutoffPercent: 100, MaxPerStep: 0.05}
	e.Plan(m, grid, cells)
	assert.Equal(t, snapshot, cells)
}

func TestErosionSkipsLocalMinimaAndLowCells(t *testing.T) {
	m := testModel()
	grid := star{leaves: 3}

	valley := starCells(m, 0.9, 1.3, 1.3, 1.3)
	e := Erosion{CutoffPercent: 150, MaxPerStep: 0.1}
	for _, tr := range e.Plan(m, grid, valley) {
		assert.NotEqual(t, 0, tr.From)
	}
	assert.Empty(t, e.Plan(m, grid, valley), "nothing above the cutoff")

	e.CutoffPercent = 50
	for _, tr := range e.Plan(m, grid, valley) {
		assert.NotEqual(t, 0, tr.From, "local minimum must not erode")
	}
}

func TestErosionRespectsReceiverCapacity(t *testing.T) {
	m := testModel()
	grid := star{leaves: 3}
	cells := starCells(m, 1.5, 1.499, 1.499, 1.499)

	e := Erosion{CutoffPercent: 0, MaxPerStep: 0.5}
	transfers := e.Plan(m, grid, cells)
	e.Apply(m, cells, transfers)
	for _, c := range cells[1:] {
		assert.LessOrEqual(t, c.Height, 1.5)
	}
}

func TestErosionDisabled(t *testing.T) {
	m := testModel()
	cells := starCells(m, 1.6, 1.2, 1.3)
	assert.Nil(t, Erosion{MaxPerStep: 0}.Plan(m, star{leaves: 2}, cells))
}

func TestErosionValleyStaysBelowItsSources(t *testing.T) {
	m := testModel()
	grid := core.BuildGrid(0)
	heights := make([]float64, grid.NumCells())
	for i := range heights {
		heights[i] = 3.0
	}
	heights[0] = 1.0
	cells := m.CrustField(heights)
	before := TotalMass(cells)

	e := Erosion{CutoffPercent: 100, MaxPerStep: 1.0}
	transfers := e.Plan(m, grid, cells)
	require.NotEmpty(t, transfers)
	e.Apply(m, cells, transfers)

	assert.InDelta(t, before, TotalMass(cells), 1e-9)
	assert.Greater(t, cells[0].Height, 1.0)
	for _, n := range grid.Neighbors(0) {
		assert.LessOrEqual(t, cells[0].Height, cells[n].Height+1e-9, "valley above neighbor %d", n)
		assert.Less(t, cells[n].Height, 3.0)
	}
}

func TestErosionGentleSlope(t *testing.T) {
	m := testModel()
	grid := star{leaves: 3}
	// Leaf 1 is the only lower neighbor of every other cell, a hair below.
	cells := starCells(m, 1.503, 1.5-1e-9, 1.503, 1.503)

	e := Erosion{CutoffPercent: 0, MaxPerStep: 0.005}
	transfers := e.Plan(m, grid, cells)
	var fromHub []Transfer
	for _, tr := range transfers {
		if tr.From == 0 {
			fromHub = append(fromHub, tr)
		}
	}
	require.Len(t, fromHub, 1)
	assert.Equal(t, 1, fromHub[0].To)

	hub := cells[0].Height
	e.Apply(m, cells, transfers)
	assert.Less(t, cells[0].Height, hub)
	for _, c := range []int{0, 2, 3} {
		assert.GreaterOrEqual(t, cells[c].Height+1e-9, cells[1].Height)
	}
}
