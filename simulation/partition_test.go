package simulation

import (
	"math/rand"
	"testing"

	"hexplanet/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requirePartition checks that regions cover every cell exactly once.
func requirePartition(t *testing.T, cells int, regions [][]int) {
	t.Helper()
	seen := make([]int, cells)
	for r, region := range regions {
		for _, c := range region {
			require.GreaterOrEqual(t, c, 0)
			require.Less(t, c, cells)
			seen[c]++
			require.Equal(t, 1, seen[c], "cell %d claimed twice (second by region %d)", c, r)
		}
	}
	for c, n := range seen {
		require.Equal(t, 1, n, "cell %d unclaimed", c)
	}
}

func TestPartitionPlatesCoversSphere(t *testing.T) {
	grid := core.BuildGrid(2)
	regions := PartitionPlates(grid, DefaultPlateLayout(), rand.New(rand.NewSource(7)))

	layout := DefaultPlateLayout()
	assert.Len(t, regions, layout.BasePlates+layout.Subplates)
	requirePartition(t, grid.NumCells(), regions)
}

func TestPartitionPlatesDeterministic(t *testing.T) {
	grid := core.BuildGrid(1)
	a := PartitionPlates(grid, DefaultPlateLayout(), rand.New(rand.NewSource(11)))
	b := PartitionPlates(grid, DefaultPlateLayout(), rand.New(rand.NewSource(11)))
	assert.Equal(t, a, b)
}

func TestPartitionPlatesMorePlatesThanCells(t *testing.T) {
	grid := core.BuildGrid(0)
	layout := PlateLayout{BasePlates: 50, Subplates: 10}
	regions := PartitionPlates(grid, layout, rand.New(rand.NewSource(1)))

	assert.Len(t, regions, grid.NumCells())
	requirePartition(t, grid.NumCells(), regions)
}

func TestSeedPlatesGrowsBeforeSubplates(t *testing.T) {
	grid := core.BuildGrid(2)
	for _, after := range []int{0, 1, 3} {
		seed := NewPartitioner(grid).SeedRandom(rand.New(rand.NewSource(5)))

		p := NewPartitioner(grid)
		// Enough sub-plates to take every cell the base plate left free.
		layout := PlateLayout{BasePlates: 1, Subplates: grid.NumCells(), SubplatesAfter: after}
		seedPlates(p, layout, rand.New(rand.NewSource(5)))

		require.Zero(t, p.Unclaimed())
		base := p.Regions()[0]
		assert.ElementsMatch(t, grid.CellsWithin(seed, after+1), base, "subplates_after %d", after)
	}
}

func TestSeedRejectsClaimedCells(t *testing.T) {
	p := NewPartitioner(core.BuildGrid(0))

	assert.Equal(t, 0, p.Seed(5))
	assert.Equal(t, core.NoCell, p.Seed(5))
	assert.Equal(t, core.NoCell, p.Seed(-1))
	assert.Equal(t, core.NoCell, p.Seed(42))
	assert.Equal(t, 1, p.NumRegions())
	assert.False(t, p.Available(5))
	assert.Equal(t, 0, p.Owner(5))
}

func TestSeedRandomExhaustsGrid(t *testing.T) {
	grid := core.BuildGrid(0)
	p := NewPartitioner(grid)
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < grid.NumCells(); i++ {
		require.Equal(t, i, p.SeedRandom(rng))
	}
	assert.Equal(t, 0, p.Unclaimed())
	assert.Equal(t, core.NoCell, p.SeedRandom(rng))
	assert.False(t, p.GrowOneRing())
}

func TestGrowOneRingFirstRegionWinsTies(t *testing.T) {
	grid := core.BuildGrid(1)
	p := NewPartitioner(grid)

	shared := grid.Neighbors(0)[0]
	other := core.NoCell
	for _, n := range grid.Neighbors(shared) {
		if n != 0 && !containsInt(grid.Neighbors(0), n) {
			other = n
			break
		}
	}
	require.NotEqual(t, core.NoCell, other)

	require.Equal(t, 0, p.Seed(0))
	require.Equal(t, 1, p.Seed(other))
	require.True(t, p.GrowOneRing())

	assert.Equal(t, 0, p.Owner(shared))
	for _, n := range grid.Neighbors(0) {
		assert.Equal(t, 0, p.Owner(n))
	}
}

func TestExpandRespectsLimit(t *testing.T) {
	grid := core.BuildGrid(2)
	p := NewPartitioner(grid)
	p.Seed(0)

	assert.Equal(t, 1, p.Expand(1))
	regions := p.Regions()
	assert.Len(t, regions[0], 1+len(grid.Neighbors(0)))

	assert.Equal(t, 0, p.Expand(0))
	assert.Greater(t, p.Expand(-1), 0)
	assert.Equal(t, 0, p.Unclaimed())
	assert.Equal(t, 0, p.Expand(-1))
}

func TestReseedShrinksAndRegrows(t *testing.T) {
	grid := core.BuildGrid(2)
	rng := rand.New(rand.NewSource(5))
	p := NewPartitioner(grid)
	for i := 0; i < 6; i++ {
		p.SeedRandom(rng)
	}
	p.Expand(-1)
	before := p.Regions()

	p.Reseed(2, 0.1, rng)
	after := p.Regions()[2]

	limit := int(float64(len(before[2]))*0.1+0.5) + 1
	assert.LessOrEqual(t, len(after), limit)
	assert.NotEmpty(t, after)
	assert.Subset(t, before[2], after)
	assert.Equal(t, len(before[2])-len(after), p.Unclaimed())

	p.Expand(-1)
	assert.Equal(t, 0, p.Unclaimed())
	requirePartition(t, grid.NumCells(), p.Regions())
}

func TestReseedEmptyRegionIsNoop(t *testing.T) {
	p := NewPartitioner(core.BuildGrid(0))
	p.regions = append(p.regions, &Region{})
	p.Reseed(0, 0.5, rand.New(rand.NewSource(1)))
	assert.Equal(t, 42, p.Unclaimed())
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
