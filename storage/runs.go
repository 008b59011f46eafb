package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"hexplanet/simulation"
)

// SnapshotHook returns an engine hook that saves every n-th step of a run.
// n <= 0 saves nothing.
func (s *Store) SnapshotHook(runID uuid.UUID, every int) simulation.StepHook {
	return func(ctx context.Context, snap *simulation.Snapshot, report simulation.StepReport) error {
		if every <= 0 || report.Step%every != 0 {
			return nil
		}
		if _, err := s.SaveSnapshot(ctx, runID, snap); err != nil {
			return err
		}
		return nil
	}
}

// ResumeRun rebuilds the world a run was created from and restores its
// latest snapshot. A run without snapshots starts from step 0.
func (s *Store) ResumeRun(ctx context.Context, runID uuid.UUID, logger *slog.Logger) (Run, *simulation.World, error) {
	if logger == nil {
		logger = slog.Default()
	}
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return Run{}, nil, err
	}

	world, err := simulation.BuildWorld(run.Settings, logger)
	if err != nil {
		return Run{}, nil, fmt.Errorf("rebuilding run %s: %w", runID, err)
	}

	snap, err := s.LatestSnapshot(ctx, runID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.Info("run has no snapshots, starting fresh", "run", runID)
			return run, world, nil
		}
		return Run{}, nil, err
	}
	if len(snap.Cells) != world.Grid.NumCells() {
		return Run{}, nil, fmt.Errorf("run %s: snapshot has %d cells, grid has %d: %w",
			runID, len(snap.Cells), world.Grid.NumCells(), ErrCorrupt)
	}

	sim, err := simulation.Restore(world.Grid, world.Sim.Model(), world.Sim.Params(), snap, logger)
	if err != nil {
		return Run{}, nil, fmt.Errorf("resuming run %s: %w", runID, err)
	}
	world.Sim = sim
	logger.Info("run resumed", "run", runID, "step", snap.Step)
	return run, world, nil
}
