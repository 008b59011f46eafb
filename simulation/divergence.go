package simulation

import (
	"hexplanet/core"
	"hexplanet/physics"
)

// diverge fills every unclaimed destination with fresh low crust and hands
// it to the plate most common among its owned neighbors. Gaps with no owned
// neighbor yet wait for a later pass.
func (s *Simulator) diverge(next []physics.CrustCell, claimed []bool, r *StepReport) {
	var gaps []int
	for cell, ok := range claimed {
		if ok {
			continue
		}
		fresh := s.model.DeriveCrustCell(s.params.DivergentHeight)
		fresh.CreatedAt = s.step + 1
		fresh.Plate = core.NoCell
		next[cell] = fresh
		r.CreatedMass += fresh.Mass()
		gaps = append(gaps, cell)
	}
	r.Divergent = len(gaps)
	s.createdMass += r.CreatedMass

	type assignment struct{ cell, plate int }
	for len(gaps) > 0 {
		var done []assignment
		var rest []int
		for _, cell := range gaps {
			if p := s.majorityPlate(next, cell); p != core.NoCell {
				done = append(done, assignment{cell, p})
			} else {
				rest = append(rest, cell)
			}
		}
		if len(done) == 0 {
			s.log.Warn("divergent cells without any owned neighbor", "cells", len(rest))
			return
		}
		for _, a := range done {
			next[a.cell].Plate = a.plate
		}
		gaps = rest
	}
}

// majorityPlate returns the plate owning most neighbors of cell, the lowest
// index on a tie, or core.NoCell when no neighbor is owned.
func (s *Simulator) majorityPlate(next []physics.CrustCell, cell int) int {
	counts := make(map[int]int, 6)
	for _, n := range s.grid.Neighbors(cell) {
		if p := next[n].Plate; p != core.NoCell {
			counts[p]++
		}
	}

	best, bestCount := core.NoCell, 0
	for p, n := range counts {
		if n > bestCount || (n == bestCount && p < best) {
			best, bestCount = p, n
		}
	}
	return best
}
