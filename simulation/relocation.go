package simulation

import (
	"hexplanet/core"
	"hexplanet/physics"
)

// motions builds the rigid displacement of every plate from its current
// center, velocity and carried motion. Empty plates do not move. A plate
// whose motion would not reach half a cell keeps it as carry instead.
func (s *Simulator) motions() ([]plateMotion, []bool) {
	motions := make([]plateMotion, len(s.plates))
	moving := make([]bool, len(s.plates))
	for i := range s.plates {
		p := &s.plates[i]
		if p.Center == core.NoCell {
			p.Carry = core.Vector3{}
			continue
		}
		total := p.Carry.Add(p.Velocity)
		m := newPlateMotion(s.grid.Position(p.Center), total)
		if m.reach(p.Radius) < s.spacing/2 {
			p.Carry = total
			continue
		}
		p.Carry = core.Vector3{}
		motions[i] = m
		moving[i] = true
	}
	return motions, moving
}

// relocate moves every cell with its plate and resolves where it lands.
// Each cell records the latitude/longitude displacement it received.
func (s *Simulator) relocate() ([]physics.CrustCell, []int) {
	motions, moving := s.motions()
	moved := make([]physics.CrustCell, len(s.cells))
	dest := make([]int, len(s.cells))

	parallelFor(len(s.cells), func(lo, hi int) {
		for cell := lo; cell < hi; cell++ {
			c := s.cells[cell]
			from := s.grid.Position(cell)
			to := from
			if c.Plate >= 0 && c.Plate < len(motions) && moving[c.Plate] {
				to = motions[c.Plate].apply(from)
			}

			a, b := core.CartesianToGeographic(from), core.CartesianToGeographic(to)
			c.VelNorth = b.Lat - a.Lat
			c.VelEast = core.WrapAngle(b.Lon - a.Lon)

			moved[cell] = c
			dest[cell] = s.grid.CellContaining(to)
		}
	})
	return moved, dest
}
