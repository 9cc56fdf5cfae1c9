// Package solver advances a PIC/FLIP fluid by one fixed time step at a time.
//
// A step runs as a fixed sequence of data-parallel stages, each one finishing
// before the next starts:
//
//	classify -> clear -> scatter -> save -> gravity -> boundaries ->
//	divergence -> pressure -> correction -> gather -> advect
//
// The solver never looks at wall time; deciding how many steps to run is the
// scheduler's job.
package solver

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/san-kum/fluidsim/internal/compute"
	"github.com/san-kum/fluidsim/internal/config"
	"github.com/san-kum/fluidsim/internal/dynamo"
	"github.com/san-kum/fluidsim/internal/grid"
	"github.com/san-kum/fluidsim/internal/metrics"
	"github.com/san-kum/fluidsim/internal/particles"
)

const (
	faceChunk = 256
	cellChunk = compute.DefaultMinChunk

	// particles are kept this fraction of a cell away from the walls
	wallEpsilon = 1e-4
)

// Diagnostics describes the most recent step.
type Diagnostics struct {
	Step          uint64
	FluidCells    int
	Particles     int
	MaxDivergence float64
	Residual      float64
	Iterations    int
	Threshold     float64
	Converged     bool
	// Err is a *dynamo.ResidualError while the residual is above Threshold.
	Err error
}

func (d Diagnostics) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("step", d.Step),
		slog.Int("fluid_cells", d.FluidCells),
		slog.Float64("max_divergence", d.MaxDivergence),
		slog.Float64("residual", d.Residual),
		slog.Bool("converged", d.Converged),
	)
}

type Solver struct {
	scene   *config.Scene
	backend compute.Backend
	logger  *slog.Logger

	store *particles.Store
	grid  *grid.Grid

	// grid-space particle positions, refreshed after classify
	gridPos []dynamo.Vec3

	gravity    dynamo.Vec3
	dt         float64
	flipRatio  float64
	iterations int
	tolerance  float64

	steps      uint64
	generation uint64
	diag       Diagnostics
	perf       *metrics.PerfCollector
}

// New builds the store and grid for scene and seeds its fill regions. A nil
// backend selects the one named by the scene.
func New(scene *config.Scene, backend compute.Backend) (*Solver, error) {
	if err := scene.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		b, err := compute.NewBackend(scene.Solver.Backend, scene.Solver.Workers)
		if err != nil {
			return nil, dynamo.InvalidConfig("solver.backend", "%v", err)
		}
		backend = b
	}

	g, err := grid.New(scene.Grid.Dims, scene.Grid.Origin, scene.Grid.Scale, backend)
	if err != nil {
		return nil, err
	}

	store := particles.New(scene.Fluid.MaxParticles)
	rng := rand.New(rand.NewSource(scene.Fluid.Seed))
	for i, r := range scene.Fluid.Fill {
		min, max := scene.WorldRegion(r)
		if _, err := store.AddCube(min, max, scene.Spacing(), scene.Fluid.Jitter, rng); err != nil {
			return nil, fmt.Errorf("fill region %d: %w", i, err)
		}
	}

	s := &Solver{
		scene:      scene.Clone(),
		backend:    backend,
		logger:     slog.Default().With("component", "solver", "scene", scene.Name),
		store:      store,
		grid:       g,
		gravity:    scene.Gravity,
		dt:         scene.Solver.Dt,
		flipRatio:  scene.Fluid.FlipRatio,
		iterations: scene.Solver.PressureIterations,
		tolerance:  scene.Solver.ResidualTolerance,
		perf:       metrics.NewPerfCollector(60),
	}
	s.diag = Diagnostics{Converged: true, Threshold: s.tolerance, Iterations: s.iterations, Particles: store.Count()}

	s.logger.Debug("solver ready",
		"dims", g.Dims().String(),
		"particles", store.Count(),
		"capacity", store.Capacity(),
		"backend", backend.Name(),
		"workers", backend.Workers())
	return s, nil
}

// Step advances the fluid by exactly one Dt. A residual above the threshold
// is reported through Diagnostics; Step only fails when the solve produced a
// non-finite residual.
func (s *Solver) Step() error {
	pos := s.store.Positions()
	vel := s.store.Velocities()

	s.perf.StartStep()

	s.perf.StartStage(metrics.StageClassify)
	s.grid.Classify(pos)
	s.toGridSpace(pos)

	s.perf.StartStage(metrics.StageTransfer)
	s.grid.ClearVelocityAccumulators()
	s.scatter(vel)
	s.saveVelocities()

	s.perf.StartStage(metrics.StageForces)
	s.applyGravity()
	s.enforceBoundaries()

	s.perf.StartStage(metrics.StageDivergence)
	maxDiv := s.computeDivergence()

	s.perf.StartStage(metrics.StagePressure)
	s.solvePressure()

	s.perf.StartStage(metrics.StageCorrection)
	s.correctVelocity()
	res := s.residual()

	s.perf.StartStage(metrics.StageGather)
	s.gather(vel)

	s.perf.StartStage(metrics.StageAdvect)
	s.advect(pos, vel)

	s.perf.EndStep()

	s.steps++
	s.generation++
	return s.record(maxDiv, res)
}

func (s *Solver) record(maxDiv, res float64) error {
	d := Diagnostics{
		Step:          s.steps,
		FluidCells:    s.countFluid(),
		Particles:     s.store.Count(),
		MaxDivergence: maxDiv,
		Residual:      res,
		Iterations:    s.iterations,
		Threshold:     s.tolerance,
		Converged:     res <= s.tolerance,
	}
	if !d.Converged {
		d.Err = &dynamo.ResidualError{Step: s.steps, Iterations: s.iterations, Residual: res, Threshold: s.tolerance}
	}

	switch {
	case !d.Converged && s.diag.Converged:
		s.logger.Warn("pressure solve above residual threshold", "diag", d)
	case d.Converged && !s.diag.Converged:
		s.logger.Info("pressure solve back under residual threshold", "diag", d)
	}
	s.diag = d

	if math.IsNaN(res) || math.IsInf(res, 0) {
		return d.Err
	}
	return nil
}

func (s *Solver) countFluid() int {
	return s.grid.View().CountMarkers()[grid.Fluid]
}

func (s *Solver) toGridSpace(pos []dynamo.Vec3) {
	if cap(s.gridPos) < len(pos) {
		s.gridPos = make([]dynamo.Vec3, len(pos), s.store.Capacity())
	}
	s.gridPos = s.gridPos[:len(pos)]
	gp := s.gridPos
	s.backend.ParallelFor(len(pos), compute.DefaultMinChunk, func(start, end int) {
		for p := start; p < end; p++ {
			gp[p] = s.grid.WorldToGrid(pos[p])
		}
	})
}

// SetGravity replaces the world-space gravity from the next step on.
func (s *Solver) SetGravity(g dynamo.Vec3) { s.gravity = g }

func (s *Solver) Gravity() dynamo.Vec3 { return s.gravity }

func (s *Solver) Dt() float64 { return s.dt }

// Generation increments once per completed step.
func (s *Solver) Generation() uint64 { return s.generation }

func (s *Solver) Steps() uint64 { return s.steps }

func (s *Solver) Scene() *config.Scene { return s.scene }

func (s *Solver) Bounds() (min, max dynamo.Vec3) { return s.grid.Bounds() }

func (s *Solver) Diagnostics() Diagnostics { return s.diag }

func (s *Solver) Perf() metrics.PerfStats { return s.perf.Stats() }

func (s *Solver) Backend() compute.Backend { return s.backend }

// Sample packages the current state for metrics.
func (s *Solver) Sample(t float64) metrics.Sample {
	min, max := s.grid.Bounds()
	return metrics.Sample{
		Step:       s.steps,
		Time:       t,
		Positions:  s.store.Positions(),
		Velocities: s.store.Velocities(),
		Residual:   s.diag.Residual,
		Min:        min,
		Max:        max,
		Gravity:    s.gravity,
	}
}
