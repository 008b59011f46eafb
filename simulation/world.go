package simulation

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"hexplanet/config"
	"hexplanet/core"
	"hexplanet/physics"
)

// World bundles a grid with the simulator running on it.
type World struct {
	Settings   config.Settings
	Grid       *core.Grid
	Thresholds physics.Thresholds
	Sim        *Simulator
}

// ParamsFromSettings maps the simulation section of the config.
func ParamsFromSettings(s config.SimulationSettings) Params {
	return Params{
		Erosion: physics.Erosion{
			CutoffPercent: s.ErosionCutoffPercent,
			MaxPerStep:    s.MaxErosionPerStep,
		},
		FoldingRatio:         s.FoldingRatio,
		RedistributionRadius: s.RedistributionRadius,
		DivergentHeight:      s.DivergentHeight,
		ReactionScale:        s.ReactionScale,
		NoiseSeed:            s.NoiseSeed,
		NoiseFrequency:       s.NoiseFrequency,
	}
}

// LayoutFromSettings maps the plate staging of the config.
func LayoutFromSettings(p config.PlateSettings) PlateLayout {
	return PlateLayout{
		BasePlates:     p.BasePlates,
		Subplates:      p.Subplates,
		SubplatesAfter: p.SubplatesAfter,
		ShapeReseed:    p.ShapeReseed,
		BorderReseed:   p.BorderReseed,
	}
}

// DensitiesFromSettings maps the crust densities of the config.
func DensitiesFromSettings(c config.CrustSettings) physics.Densities {
	return physics.Densities{
		Mantle:      c.MantleDensity,
		Oceanic:     c.OceanicDensity,
		Continental: c.ContinentalDensity,
		Water:       c.WaterDensity,
	}
}

// BuildWorld generates a grid, partitions it into plates, builds the crust
// field and returns a simulator ready to step. Each stage draws from its own
// seed so changing one does not reshuffle the others.
func BuildWorld(cfg config.Settings, logger *slog.Logger) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	grid := core.BuildGrid(cfg.Grid.Level)
	logger.Info("grid built", "level", cfg.Grid.Level, "cells", grid.NumCells(), "elapsed", time.Since(start))

	regions := PartitionPlates(grid, LayoutFromSettings(cfg.Plates), rand.New(rand.NewSource(cfg.Plates.Seed)))

	c := cfg.Crust
	heights := physics.GenerateHeightField(grid, c.Seed, c.Octaves, c.Frequency)
	shaping := physics.Shaping{Roughness: c.Roughness, OceanDepth: c.OceanDepth}
	th, err := shaping.ClassifyAndNormalize(heights, c.PercentOcean, c.PercentContinental)
	if err != nil {
		return nil, fmt.Errorf("building crust: %w", err)
	}

	model := physics.NewIsostasy(DensitiesFromSettings(c), th.ContinentalHeight, cfg.Grid.Radius, grid.NumCells())
	cells := model.CrustField(heights)

	motion := Motion{MinDrift: cfg.Plates.MinDrift, MaxDrift: cfg.Plates.MaxDrift, MaxSpin: cfg.Plates.MaxSpin}
	plates := CreatePlates(cells, regions, motion, rand.New(rand.NewSource(cfg.Plates.DirectionSeed)))

	sim, err := NewSimulator(grid, model, ParamsFromSettings(cfg.Simulation), cells, plates, logger)
	if err != nil {
		return nil, fmt.Errorf("building world: %w", err)
	}

	logger.Info("world built",
		"plates", len(plates),
		"continental_height", th.ContinentalHeight,
		"total_mass", sim.TotalMass(),
		"elapsed", time.Since(start),
	)
	return &World{Settings: cfg, Grid: grid, Thresholds: th, Sim: sim}, nil
}
