// Package experiment drives a scene headlessly: it builds the scheduler from
// a registry, delivers synthetic wall-clock ticks and optionally records
// every frame to a storage run.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/san-kum/fluidsim/internal/config"
	"github.com/san-kum/fluidsim/internal/dynamo"
	"github.com/san-kum/fluidsim/internal/metrics"
	"github.com/san-kum/fluidsim/internal/sim"
	"github.com/san-kum/fluidsim/internal/solver"
	"github.com/san-kum/fluidsim/internal/storage"
)

const DefaultTickRate = 60.0

type Config struct {
	Scene  *config.Scene
	Status sim.Status
	// Duration is the simulated time to reach, in seconds.
	Duration float64
	// FastForward is simulated before the first tick.
	FastForward float64
	// TickRate is the number of synthetic ticks per wall second.
	TickRate        float64
	MaxStepsPerTick int
	Logger          *slog.Logger
}

// Result summarises a finished run.
type Result struct {
	Clock       sim.Clock
	Ticks       int
	Metrics     map[string]float64
	Diagnostics solver.Diagnostics
	Perf        metrics.PerfStats
	RunID       string
	Elapsed     time.Duration
}

type Experiment struct {
	cfg       Config
	scheduler *sim.Scheduler
	sink      *Sink
	logger    *slog.Logger
	tick      time.Duration
	ticks     int
	start     time.Time
}

func New(cfg Config, reg *Registry) (*Experiment, error) {
	if cfg.Scene == nil {
		return nil, dynamo.InvalidConfig("scene", "is required")
	}
	if cfg.Duration < 0 || math.IsNaN(cfg.Duration) || math.IsInf(cfg.Duration, 0) {
		return nil, dynamo.InvalidConfig("duration", "must be a finite non-negative time, got %g", cfg.Duration)
	}
	if cfg.TickRate == 0 {
		cfg.TickRate = DefaultTickRate
	}
	if !(cfg.TickRate > 0) || math.IsInf(cfg.TickRate, 0) {
		return nil, dynamo.InvalidConfig("tick_rate", "must be positive, got %g", cfg.TickRate)
	}
	if _, paused := cfg.Status.(sim.Paused); paused && cfg.Duration > 0 {
		return nil, dynamo.InvalidConfig("mode", "a paused run never reaches %gs", cfg.Duration)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s, err := sim.New(cfg.Scene, reg.Factory(), sim.Options{
		MaxStepsPerTick: cfg.MaxStepsPerTick,
		Status:          cfg.Status,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}
	for _, m := range reg.DefaultMetrics() {
		s.AddMetric(m)
	}
	return &Experiment{
		cfg:       cfg,
		scheduler: s,
		logger:    logger,
		tick:      tickInterval(cfg.TickRate),
	}, nil
}

// tickInterval is one tick at rate, rounded up to whole nanoseconds so a tick
// at the step rate covers a full step.
func tickInterval(rate float64) time.Duration {
	return time.Duration(math.Ceil(float64(time.Second) / rate))
}

// Scheduler returns the underlying scheduler for adding observers.
func (e *Experiment) Scheduler() *sim.Scheduler { return e.scheduler }

// TickRate is the number of synthetic ticks per wall second.
func (e *Experiment) TickRate() float64 { return e.cfg.TickRate }

// Record attaches a sink writing every frame of the run into st.
func (e *Experiment) Record(st *storage.Store, opts RecordOptions) (*Sink, error) {
	sink, err := NewSink(st, e.scheduler, opts)
	if err != nil {
		return nil, err
	}
	e.sink = sink
	return sink, nil
}

// Tick delivers one synthetic tick and counts it as a rendered frame.
func (e *Experiment) Tick(ctx context.Context) (sim.TickReport, error) {
	if e.start.IsZero() {
		e.start = time.Now()
	}
	s := e.scheduler
	report, err := s.Tick(ctx, e.tick)
	if err != nil {
		return report, err
	}
	e.ticks++
	s.FrameRendered()
	if e.sink != nil {
		if err := e.sink.Frame(s, report); err != nil {
			return report, err
		}
	}
	if e.ticks%int(math.Max(e.cfg.TickRate, 1)) == 0 {
		e.logger.Debug("tick", "report", report)
	}
	return report, nil
}

// Run ticks the scheduler at the configured rate until the simulated clock
// reaches Duration, then finishes the run.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	e.start = time.Now()
	s := e.scheduler

	if e.cfg.FastForward > 0 {
		if _, err := s.FastForward(ctx, e.cfg.FastForward); err != nil {
			return e.Finish(err)
		}
	}

	// half a step of slack so float accumulation never costs an extra tick
	target := e.cfg.Duration - 0.5*s.Dt()
	for s.Clock().SimTime < target {
		if err := ctx.Err(); err != nil {
			return e.Finish(err)
		}
		if _, err := e.Tick(ctx); err != nil {
			return e.Finish(err)
		}
	}
	return e.Finish(nil)
}

// Finish closes the recording, if any, and summarises the run. runErr is
// returned unchanged unless it is nil and closing fails.
func (e *Experiment) Finish(runErr error) (*Result, error) {
	s := e.scheduler
	res := &Result{
		Clock:   s.Clock(),
		Ticks:   e.ticks,
		Metrics: s.Metrics(),
	}
	if !e.start.IsZero() {
		res.Elapsed = time.Since(e.start)
	}
	if sv, ok := s.Solver().(*solver.Solver); ok {
		res.Diagnostics = sv.Diagnostics()
		res.Perf = sv.Perf()
	}
	if e.sink != nil {
		res.RunID = e.sink.ID()
		if err := e.sink.Close(s); err != nil && runErr == nil {
			runErr = fmt.Errorf("close recording: %w", err)
		}
		e.sink = nil
	}
	e.logger.Info("run finished",
		"scene", s.Scene().Name,
		"ticks", e.ticks,
		"steps", res.Clock.TotalSteps,
		"sim_time", res.Clock.SimTime,
		"perf", res.Perf,
	)
	return res, runErr
}
