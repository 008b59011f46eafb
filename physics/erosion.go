package physics

import (
	"runtime"
	"sync"
)

// Erosion moves material from high cells onto their lower neighbors.
type Erosion struct {
	// Only cells at or above CutoffPercent of sea level erode.
	CutoffPercent float64
	// MaxPerStep caps the height a cell loses in one step.
	MaxPerStep float64
}

// Transfer moves Mass from one cell onto another.
type Transfer struct {
	From, To int
	Mass     float64
}

// cellPlan is what one source cell wants to shed.
type cellPlan struct {
	target    float64
	transfers []Transfer
}

// Plan computes the transfers for one step from a read-only view of cells.
// The result is ordered by source cell, so applying it is deterministic.
// No receiver ends above the post-erosion height of any cell that fed it.
func (e Erosion) Plan(m Isostasy, grid Sphere, cells []CrustCell) []Transfer {
	if e.MaxPerStep <= 0 || len(cells) == 0 {
		return nil
	}

	plans := make([]cellPlan, len(cells))
	workers := runtime.GOMAXPROCS(0)
	chunk := (len(cells) + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < len(cells); start += chunk {
		start, end := start, min(start+chunk, len(cells))
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cell := start; cell < end; cell++ {
				plans[cell] = e.planCell(m, grid, cells, cell)
			}
		}()
	}
	wg.Wait()

	// Several sources may drain into one receiver. Cap the combined inflow
	// at the lowest target among them.
	ceiling := make(map[int]float64)
	incoming := make(map[int]float64)
	for _, p := range plans {
		for _, t := range p.transfers {
			if c, ok := ceiling[t.To]; !ok || p.target < c {
				ceiling[t.To] = p.target
			}
			incoming[t.To] += t.Mass
		}
	}
	scale := make(map[int]float64, len(incoming))
	for to, in := range incoming {
		capacity := m.MassToRaise(cells[to], ceiling[to])
		if in > capacity {
			scale[to] = capacity / in
		}
	}

	var out []Transfer
	for _, p := range plans {
		for _, t := range p.transfers {
			if f, ok := scale[t.To]; ok {
				t.Mass *= f
			}
			if t.Mass > 0 {
				out = append(out, t)
			}
		}
	}
	return out
}

func (e Erosion) planCell(m Isostasy, grid Sphere, cells []CrustCell, cell int) cellPlan {
	src := cells[cell]
	if src.Height < m.SeaLevel*e.CutoffPercent/100 {
		return cellPlan{}
	}

	tallest, found := 0.0, false
	for _, n := range grid.Neighbors(cell) {
		if h := cells[n].Height; h < src.Height && (!found || h > tallest) {
			tallest, found = h, true
		}
	}
	if !found {
		return cellPlan{}
	}

	// Never drop below the midpoint to the tallest lower neighbor, so the
	// pair can meet but not cross.
	target := max(src.Height-e.MaxPerStep, (src.Height+tallest)/2)
	available := src.Mass() - m.ThicknessFor(target, src.Density)*src.Density*src.Area
	if available <= 0 {
		return cellPlan{}
	}

	weightSum := 0.0
	for _, n := range grid.Neighbors(cell) {
		if h := cells[n].Height; h < target {
			weightSum += target - h
		}
	}
	if weightSum <= 0 {
		return cellPlan{}
	}

	p := cellPlan{target: target}
	for _, n := range grid.Neighbors(cell) {
		h := cells[n].Height
		if h >= target {
			continue
		}
		share := available * (target - h) / weightSum
		share = min(share, m.MassToRaise(cells[n], target))
		if share > 0 {
			p.transfers = append(p.transfers, Transfer{From: cell, To: n, Mass: share})
		}
	}
	return p
}

// Apply executes transfers in order and re-floats every touched cell. Mass
// leaves the source at its density and lands at the receiver's density, so
// total mass is unchanged.
func (e Erosion) Apply(m Isostasy, cells []CrustCell, transfers []Transfer) {
	for _, t := range transfers {
		moved := m.RemoveMass(&cells[t.From], t.Mass)
		m.Deposit(&cells[t.To], moved)
	}
}
