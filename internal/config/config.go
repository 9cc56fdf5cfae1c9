package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/fluidsim/internal/dynamo"
)

const (
	DefaultDt                 = 1.0 / 60.0
	DefaultPressureIterations = 48
	DefaultResidualTolerance  = 0.5
	DefaultFlipRatio          = 0.95
	DefaultParticlesPerCell   = 8
	DefaultJitter             = 0.5
	DefaultMaxStepsPerTick    = 8
	DefaultRecordFPS          = 60.0
	DefaultGravityY           = -9.81
)

// Scene is everything needed to build a fluid simulation from scratch.
type Scene struct {
	Name      string          `yaml:"name"`
	Gravity   dynamo.Vec3     `yaml:"gravity"`
	Grid      GridConfig      `yaml:"grid"`
	Fluid     FluidConfig     `yaml:"fluid"`
	Solver    SolverConfig    `yaml:"solver"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type GridConfig struct {
	Dims   dynamo.Dims `yaml:"dims"`
	Scale  float64     `yaml:"cell_scale"`
	Origin dynamo.Vec3 `yaml:"origin"`
}

type FluidConfig struct {
	MaxParticles     int          `yaml:"max_particles"`
	ParticlesPerCell int          `yaml:"particles_per_cell"`
	FlipRatio        float64      `yaml:"flip_ratio"`
	Jitter           float64      `yaml:"jitter"`
	Seed             int64        `yaml:"seed"`
	Fill             []FillRegion `yaml:"fill"`
}

// FillRegion is an axis-aligned box in grid-cell coordinates.
type FillRegion struct {
	Min dynamo.Vec3 `yaml:"min"`
	Max dynamo.Vec3 `yaml:"max"`
}

type SolverConfig struct {
	Dt                 float64 `yaml:"dt"`
	PressureIterations int     `yaml:"pressure_iterations"`
	ResidualTolerance  float64 `yaml:"residual_tolerance"`
	Backend            string  `yaml:"backend"`
	Workers            int     `yaml:"workers"`
}

type SchedulerConfig struct {
	MaxStepsPerTick int     `yaml:"max_steps_per_tick"`
	RecordFPS       float64 `yaml:"record_fps"`
}

func DefaultScene() *Scene {
	return &Scene{
		Name:    "default",
		Gravity: dynamo.V(0, DefaultGravityY, 0),
		Grid: GridConfig{
			Dims:  dynamo.Dims{X: 16, Y: 16, Z: 16},
			Scale: 1.0 / 16.0,
		},
		Fluid: FluidConfig{
			MaxParticles:     20000,
			ParticlesPerCell: DefaultParticlesPerCell,
			FlipRatio:        DefaultFlipRatio,
			Jitter:           DefaultJitter,
			Seed:             1,
			Fill:             []FillRegion{{Min: dynamo.V(1, 1, 1), Max: dynamo.V(8, 10, 15)}},
		},
		Solver: SolverConfig{
			Dt:                 DefaultDt,
			PressureIterations: DefaultPressureIterations,
			ResidualTolerance:  DefaultResidualTolerance,
			Backend:            "cpu",
		},
		Scheduler: SchedulerConfig{
			MaxStepsPerTick: DefaultMaxStepsPerTick,
			RecordFPS:       DefaultRecordFPS,
		},
	}
}

// Load reads a scene file. Paths ending in .gcfg or .ini are parsed as
// INI-style config, everything else as YAML. Unset fields keep their defaults.
func Load(path string) (*Scene, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gcfg", ".ini":
		return loadGcfg(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	scene := DefaultScene()
	scene.Fluid.Fill = nil
	if err := yaml.Unmarshal(data, scene); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if scene.Name == "" || scene.Name == "default" {
		scene.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return scene, nil
}

func Save(path string, scene *Scene) error {
	data, err := yaml.Marshal(scene)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (s *Scene) Clone() *Scene {
	c := *s
	c.Fluid.Fill = append([]FillRegion(nil), s.Fluid.Fill...)
	return &c
}

// Spacing is the distance between seeded particles in world units.
func (s *Scene) Spacing() float64 {
	ppc := s.Fluid.ParticlesPerCell
	if ppc < 1 {
		ppc = 1
	}
	perAxis := math.Round(math.Cbrt(float64(ppc)))
	if perAxis < 1 {
		perAxis = 1
	}
	return s.Grid.Scale / perAxis
}

// WorldRegion converts a fill region from grid cells to world space.
func (s *Scene) WorldRegion(r FillRegion) (min, max dynamo.Vec3) {
	return r.Min.Scale(s.Grid.Scale).Add(s.Grid.Origin), r.Max.Scale(s.Grid.Scale).Add(s.Grid.Origin)
}

// Validate checks every parameter the solver and scheduler rely on.
func (s *Scene) Validate() error {
	if !s.Grid.Dims.Valid() {
		return dynamo.InvalidConfig("grid.dims", "must be positive, got %v", s.Grid.Dims)
	}
	if !positive(s.Grid.Scale) {
		return dynamo.InvalidConfig("grid.cell_scale", "must be positive, got %g", s.Grid.Scale)
	}
	if !s.Grid.Origin.IsValid() {
		return dynamo.InvalidConfig("grid.origin", "must be finite, got %v", s.Grid.Origin)
	}
	if !s.Gravity.IsValid() {
		return dynamo.InvalidConfig("gravity", "must be finite, got %v", s.Gravity)
	}
	if s.Fluid.MaxParticles <= 0 {
		return dynamo.InvalidConfig("fluid.max_particles", "must be positive, got %d", s.Fluid.MaxParticles)
	}
	if s.Fluid.ParticlesPerCell < 1 {
		return dynamo.InvalidConfig("fluid.particles_per_cell", "must be at least 1, got %d", s.Fluid.ParticlesPerCell)
	}
	if s.Fluid.FlipRatio < 0 || s.Fluid.FlipRatio > 1 || math.IsNaN(s.Fluid.FlipRatio) {
		return dynamo.InvalidConfig("fluid.flip_ratio", "must be in [0, 1], got %g", s.Fluid.FlipRatio)
	}
	if s.Fluid.Jitter < 0 || s.Fluid.Jitter > 1 || math.IsNaN(s.Fluid.Jitter) {
		return dynamo.InvalidConfig("fluid.jitter", "must be in [0, 1], got %g", s.Fluid.Jitter)
	}
	dims := s.Grid.Dims.Vec()
	for i, r := range s.Fluid.Fill {
		field := fmt.Sprintf("fluid.fill[%d]", i)
		if !r.Min.IsValid() || !r.Max.IsValid() {
			return dynamo.InvalidConfig(field, "corners must be finite")
		}
		for _, axis := range dynamo.Axes {
			lo, hi := r.Min.Component(axis), r.Max.Component(axis)
			if lo >= hi {
				return dynamo.InvalidConfig(field, "empty along %v: %g >= %g", axis, lo, hi)
			}
			if lo < 0 || hi > dims.Component(axis) {
				return dynamo.InvalidConfig(field, "outside the grid along %v: [%g, %g]", axis, lo, hi)
			}
		}
	}
	if !positive(s.Solver.Dt) {
		return dynamo.InvalidConfig("solver.dt", "must be positive, got %g", s.Solver.Dt)
	}
	if s.Solver.PressureIterations < 1 {
		return dynamo.InvalidConfig("solver.pressure_iterations", "must be at least 1, got %d", s.Solver.PressureIterations)
	}
	if !positive(s.Solver.ResidualTolerance) {
		return dynamo.InvalidConfig("solver.residual_tolerance", "must be positive, got %g", s.Solver.ResidualTolerance)
	}
	switch strings.ToLower(s.Solver.Backend) {
	case "", "cpu", "serial":
	default:
		return dynamo.InvalidConfig("solver.backend", "unknown backend %q", s.Solver.Backend)
	}
	if s.Scheduler.MaxStepsPerTick < 1 {
		return dynamo.InvalidConfig("scheduler.max_steps_per_tick", "must be at least 1, got %d", s.Scheduler.MaxStepsPerTick)
	}
	if !positive(s.Scheduler.RecordFPS) {
		return dynamo.InvalidConfig("scheduler.record_fps", "must be positive, got %g", s.Scheduler.RecordFPS)
	}
	if RecordSteps(s.Scheduler.RecordFPS, s.Solver.Dt) < 1 {
		return dynamo.InvalidConfig("scheduler.record_fps",
			"%g fps records less than one step of %gs per frame", s.Scheduler.RecordFPS, s.Solver.Dt)
	}
	return nil
}

// RecordSteps is the whole number of dt steps in one frame recorded at fps.
func RecordSteps(fps, dt float64) int {
	return int(math.Round((1 / fps) / dt))
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
