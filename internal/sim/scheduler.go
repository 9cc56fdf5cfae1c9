package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/san-kum/fluidsim/internal/config"
	"github.com/san-kum/fluidsim/internal/dynamo"
	"github.com/san-kum/fluidsim/internal/metrics"
)

type Options struct {
	// MaxStepsPerTick overrides the scene's catch-up cap when positive.
	MaxStepsPerTick int
	// Status is the initial status; Realtime when nil.
	Status Status
	Logger *slog.Logger
}

// TickReport summarises one Tick.
type TickReport struct {
	Status  Status
	Steps   int
	Dropped float64
	SimTime float64
	Lag     float64
	Elapsed time.Duration
}

func (r TickReport) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("status", r.Status.String()),
		slog.Int("steps", r.Steps),
		slog.Float64("dropped", r.Dropped),
		slog.Float64("sim_time", r.SimTime),
		slog.Float64("lag", r.Lag),
		slog.Duration("elapsed", r.Elapsed),
	)
}

type Scheduler struct {
	scene       *config.Scene
	factory     Factory
	solver      Solver
	status      Status
	resume      Status
	clock       Clock
	capOverride int
	metrics     []metrics.Metric
	observers   []Observer
	logger      *slog.Logger
}

// New validates scene and builds its solver.
func New(scene *config.Scene, factory Factory, opts Options) (*Scheduler, error) {
	if factory == nil {
		return nil, fmt.Errorf("sim: nil solver factory")
	}
	if opts.MaxStepsPerTick < 0 {
		return nil, dynamo.InvalidConfig("max_steps_per_tick", "must not be negative, got %d", opts.MaxStepsPerTick)
	}
	if err := scene.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		scene:       scene.Clone(),
		factory:     factory,
		status:      Realtime{},
		resume:      Realtime{},
		capOverride: opts.MaxStepsPerTick,
		logger:      logger.With("component", "scheduler"),
	}
	if opts.Status != nil {
		if err := validateStatus(opts.Status, s.scene.Solver.Dt); err != nil {
			return nil, err
		}
		s.status = opts.Status
	}

	sv, err := factory(s.scene.Clone())
	if err != nil {
		return nil, fmt.Errorf("build scene %q: %w", scene.Name, err)
	}
	s.solver = sv
	return s, nil
}

// validateStatus rejects record rates that are not positive or whose frames
// would hold no whole step of dt.
func validateStatus(st Status, dt float64) error {
	if r, ok := st.(Record); ok {
		if !(r.FPS > 0) || math.IsInf(r.FPS, 0) {
			return dynamo.InvalidConfig("record.fps", "must be positive, got %g", r.FPS)
		}
		if config.RecordSteps(r.FPS, dt) < 1 {
			return dynamo.InvalidConfig("record.fps", "%g fps records less than one step of %gs per frame", r.FPS, dt)
		}
	}
	return nil
}

func (s *Scheduler) AddMetric(m metrics.Metric) { s.metrics = append(s.metrics, m) }
func (s *Scheduler) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Scheduler) Status() Status { return s.status }
func (s *Scheduler) Clock() Clock { return s.clock }
func (s *Scheduler) Solver() Solver { return s.solver }
func (s *Scheduler) Scene() *config.Scene { return s.scene }
func (s *Scheduler) Dt() float64 { return s.solver.Dt() }

// MaxStepsPerTick is the Realtime catch-up cap in force.
func (s *Scheduler) MaxStepsPerTick() int {
	if s.capOverride > 0 {
		return s.capOverride
	}
	return s.scene.Scheduler.MaxStepsPerTick
}

// Metrics returns the latest value of every registered metric.
func (s *Scheduler) Metrics() map[string]float64 {
	out := make(map[string]float64, len(s.metrics))
	for _, m := range s.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

// Tick delivers wallDelta of wall time and runs the steps the active status
// asks for. A solver error stops the tick; the clock reflects the steps that
// completed.
func (s *Scheduler) Tick(ctx context.Context, wallDelta time.Duration) (TickReport, error) {
	if wallDelta < 0 {
		wallDelta = 0
	}
	if _, paused := s.status.(Paused); !paused {
		s.clock.WallTime += wallDelta
	}

	steps, dropped := s.plan(wallDelta)
	if dropped > 0 {
		s.logger.Debug("catch-up capped", "dropped_s", dropped, "cap", s.MaxStepsPerTick())
	}

	start := time.Now()
	done, err := s.run(ctx, steps)
	s.clock.StepsThisTick = done
	s.clock.LastTick = time.Since(start)

	return TickReport{
		Status:  s.status,
		Steps:   done,
		Dropped: dropped,
		SimTime: s.clock.SimTime,
		Lag:     s.clock.Lag(),
		Elapsed: s.clock.LastTick,
	}, err
}

// plan decides how many steps this tick runs. It is the only place the
// status variants are told apart.
func (s *Scheduler) plan(wallDelta time.Duration) (steps int, dropped float64) {
	dt := s.solver.Dt()

	switch st := s.status.(type) {
	case Paused:
		return 0, 0

	case Realtime:
		steps = s.drain(wallDelta.Seconds(), dt)
		if limit := s.MaxStepsPerTick(); steps > limit {
			dropped = float64(steps-limit) * dt
			s.clock.Dropped += dropped
			steps = limit
		}
		return steps, dropped

	case SimulateAndRender:
		return s.drain(wallDelta.Seconds(), dt), 0

	case Record:
		return config.RecordSteps(st.FPS, dt), 0
	}
	return 0, 0
}

// drain adds wall time to the accumulator and takes out every whole step.
// Only steps fully covered by delivered wall time run, so simulated time
// never gets ahead of the wall; the remainder stays in the accumulator.
func (s *Scheduler) drain(seconds, dt float64) int {
	s.clock.Accumulator += seconds
	n := int(math.Floor(s.clock.Accumulator / dt))
	if n < 0 {
		n = 0
	}
	s.clock.Accumulator -= float64(n) * dt
	return n
}

func (s *Scheduler) run(ctx context.Context, steps int) (int, error) {
	dt := s.solver.Dt()
	done := 0
	for done < steps {
		select {
		case <-ctx.Done():
			s.observe(done)
			return done, ctx.Err()
		default:
		}

		if err := s.solver.Step(); err != nil {
			s.observe(done)
			return done, fmt.Errorf("step %d: %w", s.clock.TotalSteps+1, err)
		}
		done++
		s.clock.TotalSteps++
		s.clock.SimTime += dt

		for _, o := range s.observers {
			o.OnStep(s.solver, s.clock)
		}
	}
	s.observe(done)
	return done, nil
}

// observe feeds the metrics once per batch of steps.
func (s *Scheduler) observe(steps int) {
	if steps == 0 || len(s.metrics) == 0 {
		return
	}
	sample := s.solver.Sample(s.clock.SimTime)
	for _, m := range s.metrics {
		m.Observe(sample)
	}
}

// FastForward runs round(seconds/Dt) steps immediately, regardless of status
// and without touching wall time or the accumulator.
func (s *Scheduler) FastForward(ctx context.Context, seconds float64) (int, error) {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, dynamo.InvalidConfig("fast_forward", "must be a finite non-negative duration, got %g", seconds)
	}
	steps := int(math.Round(seconds / s.solver.Dt()))
	s.logger.Info("fast forward", "seconds", seconds, "steps", steps)
	return s.run(ctx, steps)
}

// SetStatus switches the active status.
func (s *Scheduler) SetStatus(st Status) error {
	if st == nil {
		return fmt.Errorf("sim: nil status")
	}
	if err := validateStatus(st, s.solver.Dt()); err != nil {
		return err
	}
	if _, paused := st.(Paused); paused {
		s.Pause()
		return nil
	}
	if s.status != st {
		s.logger.Info("status", "from", s.status.String(), "to", st.String())
	}
	s.status = st
	return nil
}

// Pause stops stepping; Resume returns to the status that was active.
func (s *Scheduler) Pause() {
	if _, paused := s.status.(Paused); paused {
		return
	}
	if _, rec := s.status.(Record); !rec {
		s.resume = s.status
	}
	s.logger.Info("status", "from", s.status.String(), "to", Paused{}.String())
	s.status = Paused{}
}

func (s *Scheduler) Resume() {
	if _, paused := s.status.(Paused); !paused {
		return
	}
	s.logger.Info("status", "from", s.status.String(), "to", s.resume.String())
	s.status = s.resume
}

func (s *Scheduler) TogglePause() {
	if _, paused := s.status.(Paused); paused {
		s.Resume()
		return
	}
	s.Pause()
}

// Reset rebuilds the solver from the active scene and zeroes the clock. The
// status is kept. On failure nothing changes.
func (s *Scheduler) Reset() error {
	sv, err := s.factory(s.scene.Clone())
	if err != nil {
		return fmt.Errorf("reset scene %q: %w", s.scene.Name, err)
	}
	s.swap(sv)
	s.logger.Info("reset", "scene", s.scene.Name)
	return nil
}

func (s *Scheduler) swap(sv Solver) {
	s.solver = sv
	s.clock = Clock{}
	for _, m := range s.metrics {
		m.Reset()
	}
}

// StartRecording resets the scene and records at fps from the first frame.
func (s *Scheduler) StartRecording(fps float64) error {
	st := Record{FPS: fps}
	if err := validateStatus(st, s.solver.Dt()); err != nil {
		return err
	}
	if err := s.Reset(); err != nil {
		return err
	}
	s.logger.Info("recording", "fps", fps)
	s.status = st
	return nil
}

// StopRecording pauses; stopping when not recording does nothing.
func (s *Scheduler) StopRecording() {
	if _, rec := s.status.(Record); !rec {
		return
	}
	s.logger.Info("recording stopped", "frames", s.clock.FramesRendered, "sim_time", s.clock.SimTime)
	s.status = Paused{}
}

// SetGravity changes gravity for the running solver and for later resets.
func (s *Scheduler) SetGravity(g dynamo.Vec3) error {
	if !g.IsValid() {
		return dynamo.InvalidConfig("gravity", "must be finite, got %v", g)
	}
	s.scene.Gravity = g
	s.solver.SetGravity(g)
	return nil
}

// LoadScene validates and builds scene, then replaces the active one. When
// either fails the previous scene keeps running untouched.
func (s *Scheduler) LoadScene(scene *config.Scene) error {
	if err := scene.Validate(); err != nil {
		return err
	}
	if err := validateStatus(s.status, scene.Solver.Dt); err != nil {
		return err
	}
	next := scene.Clone()
	sv, err := s.factory(next.Clone())
	if err != nil {
		return fmt.Errorf("load scene %q: %w", scene.Name, err)
	}
	s.scene = next
	s.swap(sv)
	s.logger.Info("scene loaded", "scene", next.Name, "dims", next.Grid.Dims.String())
	return nil
}

// FrameRendered counts a frame presented by the driver.
func (s *Scheduler) FrameRendered() {
	s.clock.FramesRendered++
}
