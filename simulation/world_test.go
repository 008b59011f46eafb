package simulation

import (
	"testing"

	"hexplanet/config"
	"hexplanet/physics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWorld(t *testing.T) {
	cfg := config.Default()
	cfg.Grid.Level = 1

	w, err := BuildWorld(cfg, quietLogger())
	require.NoError(t, err)

	n := w.Grid.NumCells()
	require.Equal(t, 162, n)
	assert.Equal(t, cfg.Plates.BasePlates+cfg.Plates.Subplates, w.Sim.NumPlates())
	requireConsistentPlates(t, w.Sim)

	below := 0
	for cell := 0; cell < n; cell++ {
		if w.Sim.Cell(cell).Height < physics.SeaLevel {
			below++
		}
	}
	assert.InDelta(t, 97, below, 1)
	assert.Greater(t, w.Thresholds.ContinentalHeight, physics.SeaLevel)

	r := w.Sim.ExecuteTimeStep()
	assert.Equal(t, 1, r.Step)
}

func TestDefaultPlatesMoveOnCoarseGrids(t *testing.T) {
	for _, level := range []int{2, 3} {
		cfg := config.Default()
		cfg.Grid.Level = level

		w, err := BuildWorld(cfg, quietLogger())
		require.NoError(t, err)
		owners := w.Sim.Snapshot().PlateIDs()

		events := 0
		for i := 0; i < 50; i++ {
			r := w.Sim.ExecuteTimeStep()
			events += r.Merged + r.Subductions + r.Collisions
		}
		assert.Greater(t, events, 0, "level %d arbitration events", level)

		changed := 0
		for cell, p := range w.Sim.Snapshot().PlateIDs() {
			if p != owners[cell] {
				changed++
			}
		}
		assert.Greater(t, changed, 0, "level %d cells changed owner", level)
	}
}

func TestBuildWorldDeterministic(t *testing.T) {
	cfg := config.Default()
	cfg.Grid.Level = 1

	a, err := BuildWorld(cfg, quietLogger())
	require.NoError(t, err)
	b, err := BuildWorld(cfg, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, a.Sim.Snapshot().Heights(), b.Sim.Snapshot().Heights())
	assert.Equal(t, a.Sim.Snapshot().PlateIDs(), b.Sim.Snapshot().PlateIDs())
}

func TestBuildWorldRejectsInvalidSettings(t *testing.T) {
	cfg := config.Default()
	cfg.Crust.PercentOcean = 80
	cfg.Crust.PercentContinental = 70

	_, err := BuildWorld(cfg, nil)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestParamsFromSettings(t *testing.T) {
	p := ParamsFromSettings(config.Default().Simulation)
	assert.Equal(t, DefaultParams(), p)
}
