package simulation

import (
	"fmt"
	"log/slog"
	"math/rand"

	"hexplanet/core"
	"hexplanet/physics"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Grid is the sphere view the simulator reads. It must not change during a
// run; *core.Grid satisfies it.
type Grid interface {
	NumCells() int
	Position(cell int) core.Vector3
	Neighbors(cell int) []int
	CellContaining(p core.Vector3) int
	CellsWithin(cell, rings int) []int
}

// Params are the per-step constants of the simulation.
type Params struct {
	Erosion physics.Erosion

	// FoldingRatio is the share of collision mass folded onto the winning
	// plate; the rest lands on the losing plate.
	FoldingRatio float64
	// RedistributionRadius is how many rings around a collision point
	// receive redistributed mass.
	RedistributionRadius int
	// DivergentHeight is the height of crust formed in spreading gaps.
	DivergentHeight float64
	// ReactionScale converts subducted momentum into plate velocity change.
	ReactionScale float64

	NoiseSeed      int64
	NoiseFrequency float64
}

// DefaultParams returns the step constants used by default worlds.
func DefaultParams() Params {
	return Params{
		Erosion:              physics.Erosion{CutoffPercent: 100, MaxPerStep: 0.005},
		FoldingRatio:         0.6,
		RedistributionRadius: 2,
		DivergentHeight:      0.3,
		ReactionScale:        0.05,
		NoiseSeed:            4,
		NoiseFrequency:       3,
	}
}

// StepReport summarizes one executed step.
type StepReport struct {
	Step        int
	ErodedMass  float64
	Merged      int
	Subductions int
	Collisions  int
	Divergent   int
	CreatedMass float64 // mass of divergent crust formed this step
	MantleMass  float64 // mass sunk into the mantle this step
}

// Simulator owns the per-cell crust and per-plate state and advances it one
// step at a time. It is not safe for concurrent use; readers take Snapshots
// between steps.
type Simulator struct {
	grid   Grid
	model  physics.Isostasy
	params Params
	log    *slog.Logger
	noise  opensimplex.Noise

	// spacing is the mean arc distance between neighboring cells.
	spacing float64

	cells  []physics.CrustCell
	plates []Plate
	step   int

	mantleMass  float64
	createdMass float64
}

// NewSimulator takes ownership of cells and plates. Every cell's Plate must
// index into plates; plate cell lists and kinematics are rebuilt from it.
func NewSimulator(grid Grid, model physics.Isostasy, params Params, cells []physics.CrustCell, plates []Plate, logger *slog.Logger) (*Simulator, error) {
	if len(cells) != grid.NumCells() {
		return nil, fmt.Errorf("simulation: %d crust cells for %d grid cells", len(cells), grid.NumCells())
	}
	for i, c := range cells {
		if c.Plate < 0 || c.Plate >= len(plates) {
			return nil, fmt.Errorf("simulation: cell %d has plate %d of %d", i, c.Plate, len(plates))
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Simulator{
		grid:    grid,
		model:   model,
		params:  params,
		log:     logger,
		noise:   opensimplex.NewNormalized(params.NoiseSeed),
		spacing: cellSpacing(grid),
		cells:   cells,
		plates:  plates,
	}
	for i := range s.plates {
		s.plates[i].Index = i
	}
	s.updateKinematics()
	return s, nil
}

func cellSpacing(grid Grid) float64 {
	nbs := grid.Neighbors(0)
	if len(nbs) == 0 {
		return 0
	}
	center := grid.Position(0)
	sum := 0.0
	for _, n := range nbs {
		sum += core.ArcDistance(center, grid.Position(n))
	}
	return sum / float64(len(nbs))
}

// CreatePlates assigns every region's cells to a plate with a random
// velocity drawn from motion.
func CreatePlates(cells []physics.CrustCell, regions [][]int, motion Motion, rng *rand.Rand) []Plate {
	plates := make([]Plate, len(regions))
	for i, region := range regions {
		plates[i] = Plate{
			Index:    i,
			Name:     plateName(i),
			Velocity: motion.RandomVelocity(rng),
			Center:   core.NoCell,
		}
		for _, cell := range region {
			cells[cell].Plate = i
		}
	}
	return plates
}

// ExecuteTimeStep runs erosion, relocation, collision arbitration, mass
// redistribution, divergence and the kinematics update, in that order.
func (s *Simulator) ExecuteTimeStep() StepReport {
	report := StepReport{Step: s.step + 1}

	report.ErodedMass = s.erode()

	moved, dest := s.relocate()
	next, claimed, subductions, collisions := s.arbitrate(moved, dest, &report)
	s.redistribute(next, claimed, subductions, collisions, &report)
	s.diverge(next, claimed, &report)

	s.cells = next
	s.step++
	s.updateKinematics()

	s.log.Debug("step executed",
		"step", s.step,
		"eroded", report.ErodedMass,
		"merged", report.Merged,
		"subductions", report.Subductions,
		"collisions", report.Collisions,
		"divergent", report.Divergent,
		"created_mass", report.CreatedMass,
		"mantle_mass", report.MantleMass,
	)
	return report
}

func (s *Simulator) erode() float64 {
	transfers := s.params.Erosion.Plan(s.model, s.grid, s.cells)
	s.params.Erosion.Apply(s.model, s.cells, transfers)

	total := 0.0
	for _, t := range transfers {
		total += t.Mass
	}
	return total
}

// Step returns the number of executed steps.
func (s *Simulator) Step() int { return s.step }

// Model returns the isostasy model cells float by.
func (s *Simulator) Model() physics.Isostasy { return s.model }

// Params returns the per-step constants.
func (s *Simulator) Params() Params { return s.params }

// NumPlates returns the number of plates, including empty ones.
func (s *Simulator) NumPlates() int { return len(s.plates) }

// Plate returns a copy of one plate.
func (s *Simulator) Plate(i int) Plate {
	p := s.plates[i]
	p.Cells = append([]int(nil), p.Cells...)
	return p
}

// Cell returns the crust of one cell.
func (s *Simulator) Cell(i int) physics.CrustCell { return s.cells[i] }

// CrustMass sums the mass of all crust cells.
func (s *Simulator) CrustMass() float64 { return physics.TotalMass(s.cells) }

// TotalMass is the crust mass plus the mass sunk into the mantle.
func (s *Simulator) TotalMass() float64 { return s.CrustMass() + s.mantleMass }

// CreatedMass is the total divergent crust mass formed so far.
func (s *Simulator) CreatedMass() float64 { return s.createdMass }

// MantleMass is the total subducted mass held by the mantle.
func (s *Simulator) MantleMass() float64 { return s.mantleMass }
