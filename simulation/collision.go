package simulation

import (
	"math"

	"hexplanet/core"
	"hexplanet/physics"
)

// displaced is a cell that lost its destination during arbitration.
type displaced struct {
	cell   physics.CrustCell
	at     int // destination it was pushed off
	winner int // plate that kept the destination
}

// arbitrate places moved cells in source-index order. The first arrival
// claims a destination; later arrivals merge (same plate), go under
// (subduction) or are pushed off by the heavier plate (continental
// collision).
func (s *Simulator) arbitrate(moved []physics.CrustCell, dest []int, r *StepReport) ([]physics.CrustCell, []bool, []displaced, []displaced) {
	next := make([]physics.CrustCell, len(moved))
	claimed := make([]bool, len(moved))
	var subductions, collisions []displaced

	for src, c := range moved {
		d := dest[src]
		if !claimed[d] {
			next[d] = c
			claimed[d] = true
			continue
		}

		occ := &next[d]
		if occ.Plate == c.Plate {
			s.model.AddMass(occ, c.Mass(), c.Density)
			occ.CreatedAt = min(occ.CreatedAt, c.CreatedAt)
			r.Merged++
			continue
		}

		cont := s.model.ContinentalHeight
		if occ.Height >= cont && c.Height >= cont {
			r.Collisions++
			if s.heavierPlate(occ.Plate, c.Plate) {
				collisions = append(collisions, displaced{cell: c, at: d, winner: occ.Plate})
			} else {
				collisions = append(collisions, displaced{cell: *occ, at: d, winner: c.Plate})
				*occ = c
			}
			continue
		}

		r.Subductions++
		if sinks(c, *occ) {
			subductions = append(subductions, displaced{cell: c, at: d, winner: occ.Plate})
		} else {
			subductions = append(subductions, displaced{cell: *occ, at: d, winner: c.Plate})
			*occ = c
		}
	}
	return next, claimed, subductions, collisions
}

// sinks reports whether incoming goes beneath occupant: the lower cell
// sinks, on equal height the younger one, and on a full tie the incoming.
func sinks(incoming, occupant physics.CrustCell) bool {
	if incoming.Height != occupant.Height {
		return incoming.Height < occupant.Height
	}
	return incoming.CreatedAt >= occupant.CreatedAt
}

// heavierPlate reports whether plate a outweighs plate b, using the masses
// from the start of the step. Equal masses favor the lower index.
func (s *Simulator) heavierPlate(a, b int) bool {
	ma, mb := s.plates[a].Mass, s.plates[b].Mass
	if ma != mb {
		return ma > mb
	}
	return a < b
}

// redistribute spreads the mass of every displaced cell. Subducted crust
// keeps a density/mantle share near the collision point on the overriding
// plate and the rest sinks into the mantle; collided crust folds onto both
// plates by FoldingRatio.
func (s *Simulator) redistribute(next []physics.CrustCell, claimed []bool, subductions, collisions []displaced, r *StepReport) {
	for _, d := range subductions {
		mass := d.cell.Mass()
		kept := mass * math.Min(1, d.cell.Density/s.model.Densities.Mantle)
		s.scatter(next, s.nearbyOwned(next, claimed, d.at, d.winner), d.at, kept, d.cell.Density)

		sunk := mass - kept
		s.mantleMass += sunk
		r.MantleMass += sunk

		s.applyReaction(d.winner, d.at, d.cell)
	}

	for _, d := range collisions {
		mass := d.cell.Mass()
		winners := s.nearbyOwned(next, claimed, d.at, d.winner)
		losers := s.nearbyOwned(next, claimed, d.at, d.cell.Plate)
		if len(losers) == 0 {
			s.scatter(next, winners, d.at, mass, d.cell.Density)
			continue
		}
		folded := mass * s.params.FoldingRatio
		s.scatter(next, winners, d.at, folded, d.cell.Density)
		s.scatter(next, losers, d.at, mass-folded, d.cell.Density)
	}
}

// nearbyOwned lists claimed cells of plate within the redistribution radius
// of at.
func (s *Simulator) nearbyOwned(next []physics.CrustCell, claimed []bool, at, plate int) []int {
	var out []int
	for _, cell := range s.grid.CellsWithin(at, s.params.RedistributionRadius) {
		if claimed[cell] && next[cell].Plate == plate {
			out = append(out, cell)
		}
	}
	return out
}

// scatter adds mass to targets weighted by coherent noise. With no targets
// the mass goes to whatever now holds at, so nothing is lost.
func (s *Simulator) scatter(next []physics.CrustCell, targets []int, at int, mass, density float64) {
	if mass <= 0 {
		return
	}
	if len(targets) == 0 {
		targets = []int{at}
	}

	weights := make([]float64, len(targets))
	sum := 0.0
	for i, cell := range targets {
		weights[i] = 0.1 + s.noiseAt(cell)
		sum += weights[i]
	}
	for i, cell := range targets {
		s.model.AddMass(&next[cell], mass*weights[i]/sum, density)
	}
}

func (s *Simulator) noiseAt(cell int) float64 {
	p := s.grid.Position(cell)
	f := s.params.NoiseFrequency
	return s.noise.Eval3(p.X*f, p.Y*f, p.Z*f+float64(s.step)*0.37)
}

// applyReaction pushes the overriding plate with the momentum of the crust
// that went under it: drift along the cell's displacement and a spin change
// from the torque about the plate center.
func (s *Simulator) applyReaction(plate, at int, c physics.CrustCell) {
	p := &s.plates[plate]
	if p.Mass <= 0 || s.params.ReactionScale == 0 {
		return
	}
	k := s.params.ReactionScale * c.Mass() / p.Mass
	p.Velocity.X += k * c.VelNorth
	p.Velocity.Y += k * c.VelEast

	if p.Center == core.NoCell || p.Radius < 1e-9 {
		return
	}
	center := s.grid.Position(p.Center)
	pos := s.grid.Position(at)
	geo := core.CartesianToGeographic(pos)
	push := core.GeographicVelocityToCartesian(core.GeographicVelocity{
		VNorth: c.VelNorth,
		VEast:  c.VelEast * math.Cos(geo.Lat),
	}, geo)
	torque := pos.Sub(center).Cross(push).Dot(center)
	p.Velocity.Z += k * torque / (p.Radius * p.Radius)
}
