package simulation

import (
	"math"
	"math/rand"

	"hexplanet/core"
)

// Topology is the neighbor view the partitioner grows over.
type Topology interface {
	NumCells() int
	Neighbors(cell int) []int
}

// Region is one growing cell set.
type Region struct {
	Cells    []int
	frontier []int
}

// Partitioner grows disjoint regions from seed cells by simultaneous flood
// fill, one ring per call, producing a Voronoi partition under grid-graph
// distance. When two regions reach a cell in the same ring the one
// registered first takes it.
type Partitioner struct {
	grid      Topology
	owner     []int
	regions   []*Region
	unclaimed int
}

// NewPartitioner returns a partitioner with every cell available.
func NewPartitioner(grid Topology) *Partitioner {
	owner := make([]int, grid.NumCells())
	for i := range owner {
		owner[i] = core.NoCell
	}
	return &Partitioner{grid: grid, owner: owner, unclaimed: len(owner)}
}

// Seed registers a singleton region on cell and returns its index, or
// core.NoCell if the cell is already claimed.
func (p *Partitioner) Seed(cell int) int {
	if cell < 0 || cell >= len(p.owner) || p.owner[cell] != core.NoCell {
		return core.NoCell
	}
	r := len(p.regions)
	p.regions = append(p.regions, &Region{})
	p.claim(r, cell)
	return r
}

// SeedRandom seeds a region on a uniformly chosen unclaimed cell. It returns
// core.NoCell once every cell is claimed.
func (p *Partitioner) SeedRandom(rng *rand.Rand) int {
	if p.unclaimed == 0 {
		return core.NoCell
	}
	pick := rng.Intn(p.unclaimed)
	for cell, o := range p.owner {
		if o != core.NoCell {
			continue
		}
		if pick == 0 {
			return p.Seed(cell)
		}
		pick--
	}
	return core.NoCell
}

func (p *Partitioner) claim(r, cell int) {
	p.owner[cell] = r
	p.unclaimed--
	region := p.regions[r]
	region.Cells = append(region.Cells, cell)
	region.frontier = append(region.frontier, cell)
}

// GrowOneRing lets every region claim the unclaimed neighbors of its
// frontier. It reports whether any region grew.
func (p *Partitioner) GrowOneRing() bool {
	grew := false
	for r, region := range p.regions {
		frontier := region.frontier
		region.frontier = nil
		for _, cell := range frontier {
			for _, n := range p.grid.Neighbors(cell) {
				if p.owner[n] != core.NoCell {
					continue
				}
				p.claim(r, n)
				grew = true
			}
		}
	}
	return grew
}

// Expand grows rings until nothing grows or maxIterations rings were added.
// A negative maxIterations means no limit. It returns the rings grown.
func (p *Partitioner) Expand(maxIterations int) int {
	rings := 0
	for maxIterations < 0 || rings < maxIterations {
		if !p.GrowOneRing() {
			break
		}
		rings++
	}
	return rings
}

// Reseed shrinks a region to round(n·keepFraction)+1 cells picked at random
// (with replacement) from its own cells and releases the rest. Callers run
// Expand afterwards to regrow it.
func (p *Partitioner) Reseed(r int, keepFraction float64, rng *rand.Rand) {
	region := p.regions[r]
	n := len(region.Cells)
	if n == 0 {
		return
	}

	count := int(math.Round(float64(n)*keepFraction)) + 1
	seeds := make(map[int]bool, count)
	for i := 0; i < count; i++ {
		seeds[region.Cells[rng.Intn(n)]] = true
	}

	kept := make([]int, 0, len(seeds))
	for _, cell := range region.Cells {
		if seeds[cell] {
			kept = append(kept, cell)
			continue
		}
		p.owner[cell] = core.NoCell
		p.unclaimed++
	}
	region.Cells = kept
	region.frontier = append([]int(nil), kept...)
}

// ReseedAll reseeds every region with the same fraction.
func (p *Partitioner) ReseedAll(keepFraction float64, rng *rand.Rand) {
	for r := range p.regions {
		p.Reseed(r, keepFraction, rng)
	}
}

// Owner returns the region holding cell or core.NoCell.
func (p *Partitioner) Owner(cell int) int { return p.owner[cell] }

// Available reports whether cell is unclaimed.
func (p *Partitioner) Available(cell int) bool { return p.owner[cell] == core.NoCell }

// Unclaimed returns how many cells no region holds.
func (p *Partitioner) Unclaimed() int { return p.unclaimed }

// NumRegions returns the number of registered regions.
func (p *Partitioner) NumRegions() int { return len(p.regions) }

// Regions returns a copy of every region's cell list.
func (p *Partitioner) Regions() [][]int {
	out := make([][]int, len(p.regions))
	for i, r := range p.regions {
		out[i] = append([]int(nil), r.Cells...)
	}
	return out
}

// PlateLayout controls the staged plate partition.
type PlateLayout struct {
	BasePlates     int
	Subplates      int
	SubplatesAfter int // sub-plates are seeded after SubplatesAfter+1 rings
	ShapeReseed    float64
	BorderReseed   float64
}

// DefaultPlateLayout returns the staging used for Earth-like worlds.
func DefaultPlateLayout() PlateLayout {
	return PlateLayout{
		BasePlates:     12,
		Subplates:      4,
		SubplatesAfter: 6,
		ShapeReseed:    0.05,
		BorderReseed:   0.75,
	}
}

// PartitionPlates seeds base plates, grows them a few rings, adds
// sub-plates, fills the sphere, then roughens plate shapes and borders with
// two reseed passes. Seeding stops early if the grid runs out of cells.
func PartitionPlates(grid Topology, layout PlateLayout, rng *rand.Rand) [][]int {
	p := NewPartitioner(grid)
	seedPlates(p, layout, rng)
	p.Expand(-1)

	p.ReseedAll(layout.ShapeReseed, rng)
	p.Expand(-1)
	p.ReseedAll(layout.BorderReseed, rng)
	p.Expand(-1)

	return p.Regions()
}

// seedPlates seeds the base plates, grows them, then seeds sub-plates in
// what is left. Growth counts rings from zero up to and including
// SubplatesAfter.
func seedPlates(p *Partitioner, layout PlateLayout, rng *rand.Rand) {
	for i := 0; i < layout.BasePlates; i++ {
		if p.SeedRandom(rng) == core.NoCell {
			break
		}
	}
	p.Expand(layout.SubplatesAfter + 1)

	for i := 0; i < layout.Subplates; i++ {
		if p.SeedRandom(rng) == core.NoCell {
			break
		}
	}
}
