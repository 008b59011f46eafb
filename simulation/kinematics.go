package simulation

import (
	"math"

	"hexplanet/core"
)

// updateKinematics rebuilds plate cell lists, masses, mass-weighted centers
// and bounding radii from cell ownership. Empty plates get center
// core.NoCell, zero mass and zero radius.
func (s *Simulator) updateKinematics() {
	sums := make([]core.Vector3, len(s.plates))
	heaviest := make([]int, len(s.plates))
	heaviestMass := make([]float64, len(s.plates))
	for i := range s.plates {
		s.plates[i].Cells = s.plates[i].Cells[:0]
		s.plates[i].Mass = 0
		heaviest[i] = core.NoCell
		heaviestMass[i] = -1
	}

	for cell, c := range s.cells {
		if c.Plate < 0 || c.Plate >= len(s.plates) {
			continue
		}
		p := &s.plates[c.Plate]
		m := c.Mass()
		p.Cells = append(p.Cells, cell)
		p.Mass += m
		sums[c.Plate] = sums[c.Plate].Add(s.grid.Position(cell).Scale(m))
		if m > heaviestMass[c.Plate] {
			heaviest[c.Plate], heaviestMass[c.Plate] = cell, m
		}
	}

	for i := range s.plates {
		p := &s.plates[i]
		if p.Empty() {
			p.Center, p.Mass, p.Radius = core.NoCell, 0, 0
			continue
		}

		if sums[i].Length() <= 1e-9*p.Mass || p.Mass <= 0 {
			p.Center = heaviest[i]
		} else {
			p.Center = s.grid.CellContaining(sums[i])
		}

		center := s.grid.Position(p.Center)
		p.Radius = 0
		for _, cell := range p.Cells {
			p.Radius = math.Max(p.Radius, core.ArcDistance(center, s.grid.Position(cell)))
		}
	}
}
