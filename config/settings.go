package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid settings")

// Settings holds all configuration for a world run.
type Settings struct {
	Grid       GridSettings       `yaml:"grid"`
	Plates     PlateSettings      `yaml:"plates"`
	Crust      CrustSettings      `yaml:"crust"`
	Simulation SimulationSettings `yaml:"simulation"`
	Server     ServerSettings     `yaml:"server"`
	Storage    StorageSettings    `yaml:"storage"`
	LogLevel   string             `yaml:"log_level"`
}

type GridSettings struct {
	Level  int     `yaml:"level"`
	Radius float64 `yaml:"radius"` // km
}

// PlateSettings controls plate seeding and initial motion.
type PlateSettings struct {
	Seed          int64 `yaml:"seed"`
	DirectionSeed int64 `yaml:"direction_seed"`

	BasePlates     int     `yaml:"base_plates"`
	Subplates      int     `yaml:"subplates"`
	SubplatesAfter int     `yaml:"subplates_after"` // sub-plates follow this many rings plus one
	ShapeReseed    float64 `yaml:"shape_reseed"`
	BorderReseed   float64 `yaml:"border_reseed"`

	// radians per step
	MinDrift float64 `yaml:"min_drift"`
	MaxDrift float64 `yaml:"max_drift"`
	MaxSpin  float64 `yaml:"max_spin"`
}

// CrustSettings controls the initial height field and crust densities.
type CrustSettings struct {
	Seed      int64   `yaml:"seed"`
	Octaves   int     `yaml:"octaves"`
	Frequency float64 `yaml:"frequency"`

	PercentOcean       float64 `yaml:"percent_ocean"`
	PercentContinental float64 `yaml:"percent_continental"`
	Roughness          float64 `yaml:"roughness"`
	OceanDepth         float64 `yaml:"ocean_depth"`

	// g/cm³
	MantleDensity      float64 `yaml:"mantle_density"`
	OceanicDensity     float64 `yaml:"oceanic_density"`
	ContinentalDensity float64 `yaml:"continental_density"`
	WaterDensity       float64 `yaml:"water_density"`
}

// SimulationSettings holds the per-step constants.
type SimulationSettings struct {
	ErosionCutoffPercent float64 `yaml:"erosion_cutoff_percent"` // of sea level
	MaxErosionPerStep    float64 `yaml:"max_erosion_per_step"`
	FoldingRatio         float64 `yaml:"folding_ratio"`
	RedistributionRadius int     `yaml:"redistribution_radius"` // rings
	DivergentHeight      float64 `yaml:"divergent_height"`
	ReactionScale        float64 `yaml:"reaction_scale"`
	NoiseSeed            int64   `yaml:"noise_seed"`
	NoiseFrequency       float64 `yaml:"noise_frequency"`
	StepIntervalMs       int     `yaml:"step_interval_ms"`
}

type ServerSettings struct {
	BindAddress      string `yaml:"bind_address"`
	Port             int    `yaml:"port"`
	UpdateIntervalMs int    `yaml:"update_interval_ms"`
}

// StorageSettings selects the snapshot store. A postgres:// DSN uses pgx,
// anything else is opened as a sqlite3 file. Empty disables persistence.
type StorageSettings struct {
	DSN           string `yaml:"dsn"`
	SnapshotEvery int    `yaml:"snapshot_every"` // steps, 0 disables
}

// Default returns Settings with sensible defaults.
func Default() Settings {
	return Settings{
		Grid: GridSettings{
			Level:  4,
			Radius: 6371,
		},
		Plates: PlateSettings{
			Seed:           1,
			DirectionSeed:  3,
			BasePlates:     12,
			Subplates:      4,
			SubplatesAfter: 6,
			ShapeReseed:    0.05,
			BorderReseed:   0.75,
			MinDrift:       0.005,
			MaxDrift:       0.03,
			MaxSpin:        0.01,
		},
		Crust: CrustSettings{
			Seed:               2,
			Octaves:            6,
			Frequency:          1.5,
			PercentOcean:       60,
			PercentContinental: 65,
			Roughness:          0.5,
			OceanDepth:         0.7,
			MantleDensity:      3.3,
			OceanicDensity:     3.0,
			ContinentalDensity: 2.7,
			WaterDensity:       1.0,
		},
		Simulation: SimulationSettings{
			ErosionCutoffPercent: 100,
			MaxErosionPerStep:    0.005,
			FoldingRatio:         0.6,
			RedistributionRadius: 2,
			DivergentHeight:      0.3,
			ReactionScale:        0.05,
			NoiseSeed:            4,
			NoiseFrequency:       3,
			StepIntervalMs:       100,
		},
		Server: ServerSettings{
			BindAddress:      "0.0.0.0",
			Port:             8080,
			UpdateIntervalMs: 100,
		},
		Storage: StorageSettings{
			DSN:           "file:hexplanet.db",
			SnapshotEvery: 10,
		},
		LogLevel: "info",
	}
}

// Load reads settings from a YAML file on top of the defaults.
// If the file doesn't exist, returns defaults.
func Load(path string) (Settings, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the simulation cannot run with.
func (s Settings) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}

	if s.Grid.Level < 0 || s.Grid.Level > 9 {
		return invalid("grid level %d outside [0, 9]", s.Grid.Level)
	}
	if s.Grid.Radius <= 0 {
		return invalid("radius %.2f must be positive", s.Grid.Radius)
	}

	p := s.Plates
	if p.BasePlates < 1 {
		return invalid("base_plates %d must be at least 1", p.BasePlates)
	}
	if p.Subplates < 0 || p.SubplatesAfter < 0 {
		return invalid("subplates %d and subplates_after %d must not be negative", p.Subplates, p.SubplatesAfter)
	}
	if !fraction(p.ShapeReseed) || !fraction(p.BorderReseed) {
		return invalid("reseed fractions %.2f, %.2f outside [0, 1]", p.ShapeReseed, p.BorderReseed)
	}
	if p.MinDrift < 0 || p.MaxDrift < p.MinDrift || p.MaxSpin < 0 {
		return invalid("drift range [%.4f, %.4f] or spin %.4f", p.MinDrift, p.MaxDrift, p.MaxSpin)
	}

	c := s.Crust
	if c.PercentOcean < 0 || c.PercentOcean > 100 || c.PercentContinental < 0 || c.PercentContinental > 100 {
		return invalid("percentiles %.2f, %.2f outside [0, 100]", c.PercentOcean, c.PercentContinental)
	}
	if c.PercentOcean > c.PercentContinental {
		return invalid("percent_ocean %.2f above percent_continental %.2f", c.PercentOcean, c.PercentContinental)
	}
	if c.Octaves < 1 {
		return invalid("octaves %d must be at least 1", c.Octaves)
	}
	if c.OceanDepth <= 0 || c.OceanDepth >= 1 || c.Roughness < 0 {
		return invalid("ocean_depth %.2f outside (0, 1) or roughness %.2f negative", c.OceanDepth, c.Roughness)
	}
	if c.WaterDensity <= 0 || c.WaterDensity >= c.OceanicDensity ||
		c.ContinentalDensity <= 0 || c.OceanicDensity >= c.MantleDensity || c.ContinentalDensity >= c.MantleDensity {
		return invalid("densities must satisfy water < oceanic, crust < mantle")
	}

	sim := s.Simulation
	if !fraction(sim.FoldingRatio) {
		return invalid("folding_ratio %.2f outside [0, 1]", sim.FoldingRatio)
	}
	if sim.RedistributionRadius < 0 || sim.MaxErosionPerStep < 0 || sim.ErosionCutoffPercent < 0 {
		return invalid("redistribution radius, erosion cap and cutoff must not be negative")
	}
	if sim.DivergentHeight <= 0 {
		return invalid("divergent_height %.2f must be positive", sim.DivergentHeight)
	}
	if sim.StepIntervalMs <= 0 {
		return invalid("step_interval_ms %d must be positive", sim.StepIntervalMs)
	}
	if s.Server.UpdateIntervalMs < 0 {
		return invalid("update_interval_ms %d must not be negative", s.Server.UpdateIntervalMs)
	}

	if _, err := ParseLevel(s.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a log level name to slog.
func ParseLevel(name string) (slog.Level, error) {
	switch name {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: log level %q", ErrInvalid, name)
}

func fraction(v float64) bool {
	return v >= 0 && v <= 1
}
