package simulation

import (
	"sort"

	"hexplanet/core"
)

// BoundaryType classifies the relative motion across a plate boundary.
type BoundaryType int

const (
	Transform BoundaryType = iota
	Convergent
	Divergent
)

func (b BoundaryType) String() string {
	switch b {
	case Convergent:
		return "convergent"
	case Divergent:
		return "divergent"
	default:
		return "transform"
	}
}

// Boundary is one grid edge between cells of different plates.
type Boundary struct {
	A, B           int
	PlateA, PlateB int
	Type           BoundaryType
}

// boundaryThreshold is the closing speed, in radians per step, below which
// plates are considered to slide past each other.
const boundaryThreshold = 0.001

// Boundaries lists every plate boundary edge, lower cell index first.
func (s *Simulator) Boundaries() []Boundary {
	motions, moving := s.motions()
	displacement := func(plate, cell int) core.Vector3 {
		p := s.grid.Position(cell)
		if plate < 0 || !moving[plate] {
			return core.Vector3{}
		}
		return motions[plate].apply(p).Sub(p)
	}

	var out []Boundary
	for a := range s.cells {
		pa := s.cells[a].Plate
		for _, b := range s.grid.Neighbors(a) {
			pb := s.cells[b].Plate
			if b < a || pa == pb {
				continue
			}
			dir := s.grid.Position(b).Sub(s.grid.Position(a)).Normalize()
			closing := displacement(pa, a).Sub(displacement(pb, b)).Dot(dir)

			kind := Transform
			if closing > boundaryThreshold {
				kind = Convergent
			} else if closing < -boundaryThreshold {
				kind = Divergent
			}
			out = append(out, Boundary{A: a, B: b, PlateA: pa, PlateB: pb, Type: kind})
		}
	}
	return out
}

// Landmass is a connected set of cells on one side of sea level.
type Landmass struct {
	Land  bool
	Cells []int
}

// Landmasses returns the connected land and ocean regions of the current
// crust, largest first. Equal sizes order by lowest cell.
func (s *Simulator) Landmasses() []Landmass {
	return FindLandmasses(s.grid, s.Snapshot().Heights(), s.model.SeaLevel)
}

// FindLandmasses groups cells into connected components of land (height at
// or above seaLevel) and ocean.
func FindLandmasses(grid Topology, heights []float64, seaLevel float64) []Landmass {
	seen := make([]bool, len(heights))
	var out []Landmass
	for start := range heights {
		if seen[start] {
			continue
		}
		land := heights[start] >= seaLevel
		mass := Landmass{Land: land}
		seen[start] = true
		queue := []int{start}
		for len(queue) > 0 {
			cell := queue[0]
			queue = queue[1:]
			mass.Cells = append(mass.Cells, cell)
			for _, n := range grid.Neighbors(cell) {
				if seen[n] || (heights[n] >= seaLevel) != land {
					continue
				}
				seen[n] = true
				queue = append(queue, n)
			}
		}
		sort.Ints(mass.Cells)
		out = append(out, mass)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Cells) > len(out[j].Cells)
	})
	return out
}
