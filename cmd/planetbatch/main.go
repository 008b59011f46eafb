// Command planetbatch runs a world headless for a number of steps, prints
// mass and plate tables, and optionally persists the run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"hexplanet/config"
	"hexplanet/core"
	"hexplanet/simulation"
	"hexplanet/storage"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Settings file (defaults apply when missing)")
		steps      = flag.Int("steps", 100, "Number of steps to run")
		report     = flag.Int("report", 10, "Print a mass row every n steps")
		dsn        = flag.String("dsn", "", "Persist the run to this store (overrides the config)")
		level      = flag.Int("level", -1, "Override the grid level")
		name       = flag.String("name", "batch", "Name of the persisted run")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *level >= 0 {
		cfg.Grid.Level = *level
	}
	if *dsn != "" {
		cfg.Storage.DSN = *dsn
	}
	lvl, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

	if err := run(context.Background(), cfg, *steps, *report, *name, *dsn != "", logger); err != nil {
		logger.Error("batch failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Settings, steps, every int, name string, persist bool, logger *slog.Logger) error {
	fmt.Println("=== Hex Planet Batch Run ===")
	fmt.Printf("Grid level %d: %d cells\n", cfg.Grid.Level, core.CellCount(cfg.Grid.Level))

	world, err := simulation.BuildWorld(cfg, logger)
	if err != nil {
		return err
	}
	printGrid(world.Grid, cfg.Grid.Radius)

	var store *storage.Store
	var runID string
	hook := func(context.Context, *simulation.Snapshot, simulation.StepReport) error { return nil }
	if persist {
		store, err = storage.Open(ctx, cfg.Storage.DSN, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		r, err := store.CreateRun(ctx, name, cfg)
		if err != nil {
			return err
		}
		runID = r.ID.String()
		hook = store.SnapshotHook(r.ID, cfg.Storage.SnapshotEvery)
		if _, err := store.SaveSnapshot(ctx, r.ID, world.Sim.Snapshot()); err != nil {
			return err
		}
		defer func() {
			if _, err := store.SaveSnapshot(ctx, r.ID, world.Sim.Snapshot()); err != nil {
				logger.Error("saving final snapshot", "err", err)
			}
		}()
	}

	sim := world.Sim
	before := sim.TotalMass()
	fmt.Printf("\n%6s %14s %14s %12s %8s %8s %8s %8s\n",
		"step", "total mass", "mantle", "created", "subduct", "collide", "diverge", "merged")

	start := time.Now()
	var totals simulation.StepReport
	for i := 0; i < steps; i++ {
		rep := sim.ExecuteTimeStep()
		totals.Subductions += rep.Subductions
		totals.Collisions += rep.Collisions
		totals.Divergent += rep.Divergent
		totals.Merged += rep.Merged
		totals.CreatedMass += rep.CreatedMass

		if err := hook(ctx, sim.Snapshot(), rep); err != nil {
			return err
		}
		if every > 0 && (rep.Step%every == 0 || i == steps-1) {
			fmt.Printf("%6d %14.6g %14.6g %12.4g %8d %8d %8d %8d\n",
				rep.Step, sim.TotalMass(), sim.MantleMass(), rep.CreatedMass,
				rep.Subductions, rep.Collisions, rep.Divergent, rep.Merged)
		}
	}
	elapsed := time.Since(start)

	after := sim.TotalMass()
	drift := after - before - totals.CreatedMass
	fmt.Printf("\nMass: before=%.6g after=%.6g created=%.6g drift=%.3g (%.2e relative)\n",
		before, after, totals.CreatedMass, drift, math.Abs(drift)/before)
	fmt.Printf("Ran %d steps in %v (%.1f steps/s)\n", steps, elapsed.Round(time.Millisecond), float64(steps)/elapsed.Seconds())

	printPlates(sim, world.Grid)
	printBoundaries(sim.Boundaries())
	printLandmasses(sim.Landmasses(), world.Grid.NumCells())

	if persist {
		fmt.Printf("\nRun %s saved to %s (%s)\n", runID, cfg.Storage.DSN, store.Dialect())
	}
	return nil
}

func printGrid(g *core.Grid, radius float64) {
	pentagons := 0
	for i := 0; i < g.NumCells(); i++ {
		if g.IsPentagon(i) {
			pentagons++
		}
	}
	sphere := 4 * math.Pi * radius * radius
	fmt.Printf("Edges: %d, pentagons: %d\n", len(g.Edges()), pentagons)
	fmt.Printf("Surface: %.0f km² (sphere %.0f km², %.3f%%)\n",
		g.SurfaceArea(radius), sphere, 100*g.SurfaceArea(radius)/sphere)
}

func printPlates(sim *simulation.Simulator, grid *core.Grid) {
	fmt.Printf("\n%4s %-12s %7s %14s %9s %9s %9s %8s\n", "id", "name", "cells", "mass", "lat°", "lon°", "drift", "spin")
	for i := 0; i < sim.NumPlates(); i++ {
		p := sim.Plate(i)
		if p.Empty() {
			fmt.Printf("%4d %-12s %7d %14s\n", i, p.Name, 0, "-")
			continue
		}
		geo := core.CartesianToGeographic(grid.Position(p.Center))
		drift := math.Hypot(p.Velocity.X, p.Velocity.Y)
		fmt.Printf("%4d %-12s %7d %14.6g %9.2f %9.2f %9.4f %8.4f\n",
			i, p.Name, len(p.Cells), p.Mass,
			core.RadiansToDegrees(geo.Lat), core.RadiansToDegrees(geo.Lon), drift, p.Velocity.Z)
	}
}

func printBoundaries(bs []simulation.Boundary) {
	counts := map[simulation.BoundaryType]int{}
	for _, b := range bs {
		counts[b.Type]++
	}
	fmt.Printf("\nBoundaries: %d edges (%d convergent, %d divergent, %d transform)\n",
		len(bs), counts[simulation.Convergent], counts[simulation.Divergent], counts[simulation.Transform])
}

func printLandmasses(ls []simulation.Landmass, cells int) {
	// already ordered by size
	var land, ocean []simulation.Landmass
	for _, l := range ls {
		if l.Land {
			land = append(land, l)
		} else {
			ocean = append(ocean, l)
		}
	}
	landCells := 0
	for _, l := range land {
		landCells += len(l.Cells)
	}
	fmt.Printf("Land: %d masses covering %.1f%% of cells, %d ocean basins\n",
		len(land), 100*float64(landCells)/float64(cells), len(ocean))
	for i, l := range land {
		if i == 5 {
			fmt.Printf("  ... %d more\n", len(land)-5)
			break
		}
		fmt.Printf("  #%d: %d cells\n", i+1, len(l.Cells))
	}
}
