package simulation

import (
	"fmt"
	"log/slog"

	"hexplanet/physics"
)

// Snapshot is an immutable copy of the simulator state between steps.
type Snapshot struct {
	Step        int
	Cells       []physics.CrustCell
	Plates      []Plate
	MantleMass  float64
	CreatedMass float64
}

// Snapshot copies the current state.
func (s *Simulator) Snapshot() *Snapshot {
	snap := &Snapshot{
		Step:        s.step,
		Cells:       append([]physics.CrustCell(nil), s.cells...),
		Plates:      make([]Plate, len(s.plates)),
		MantleMass:  s.mantleMass,
		CreatedMass: s.createdMass,
	}
	for i := range s.plates {
		snap.Plates[i] = s.Plate(i)
	}
	return snap
}

// Heights returns the height of every cell.
func (snap *Snapshot) Heights() []float64 {
	out := make([]float64, len(snap.Cells))
	for i, c := range snap.Cells {
		out[i] = c.Height
	}
	return out
}

// PlateIDs returns the owning plate of every cell.
func (snap *Snapshot) PlateIDs() []int {
	out := make([]int, len(snap.Cells))
	for i, c := range snap.Cells {
		out[i] = c.Plate
	}
	return out
}

// TotalMass is crust plus mantle mass.
func (snap *Snapshot) TotalMass() float64 {
	return physics.TotalMass(snap.Cells) + snap.MantleMass
}

// Restore rebuilds a simulator from a snapshot taken on the same grid.
// Plate velocities, carry and names come from the snapshot; kinematics are
// recomputed.
func Restore(grid Grid, model physics.Isostasy, params Params, snap *Snapshot, logger *slog.Logger) (*Simulator, error) {
	cells := append([]physics.CrustCell(nil), snap.Cells...)
	plates := make([]Plate, len(snap.Plates))
	for i, p := range snap.Plates {
		plates[i] = Plate{Index: i, Name: p.Name, Velocity: p.Velocity, Carry: p.Carry}
	}

	s, err := NewSimulator(grid, model, params, cells, plates, logger)
	if err != nil {
		return nil, fmt.Errorf("restoring step %d: %w", snap.Step, err)
	}
	s.step = snap.Step
	s.mantleMass = snap.MantleMass
	s.createdMass = snap.CreatedMass
	return s, nil
}
