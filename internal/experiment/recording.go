package experiment

import (
	"fmt"

	"github.com/san-kum/fluidsim/internal/export"
	"github.com/san-kum/fluidsim/internal/metrics"
	"github.com/san-kum/fluidsim/internal/sim"
	"github.com/san-kum/fluidsim/internal/solver"
	"github.com/san-kum/fluidsim/internal/storage"
	"github.com/san-kum/fluidsim/internal/viz"
)

// RecordOptions controls what a Sink writes besides frames.csv. Zero
// intervals disable the corresponding output.
type RecordOptions struct {
	ParticlesEvery int
	SVGEvery       int
	VolumeEvery    int
	Volume         solver.VolumeMode
	Projection     viz.Projection
	Width, Height  int
}

// Sink writes one record per rendered frame into a storage run.
type Sink struct {
	rec   *storage.Recorder
	opts  RecordOptions
	frame int
}

func NewSink(st *storage.Store, s *sim.Scheduler, opts RecordOptions) (*Sink, error) {
	if opts.Width <= 0 {
		opts.Width = 80
	}
	if opts.Height <= 0 {
		opts.Height = 40
	}
	rec, err := st.Create(s.Scene(), s.Status().String())
	if err != nil {
		return nil, err
	}
	if r, ok := s.Status().(sim.Record); ok {
		rec.SetFPS(r.FPS)
	}
	return &Sink{rec: rec, opts: opts}, nil
}

func (k *Sink) ID() string  { return k.rec.ID() }
func (k *Sink) Dir() string { return k.rec.Dir() }

func (k *Sink) Frames() int { return k.frame }

// Frame records the state after a tick.
func (k *Sink) Frame(s *sim.Scheduler, report sim.TickReport) error {
	clock := s.Clock()
	rec := storage.FrameRecord{
		Frame:   k.frame,
		Step:    clock.TotalSteps,
		SimTime: clock.SimTime,
		Steps:   report.Steps,
		TickMS:  float64(report.Elapsed.Microseconds()) / 1000,
	}

	sv, ok := s.Solver().(*solver.Solver)
	if ok {
		view := sv.Particles()
		diag := sv.Diagnostics()
		rec.Particles = view.Count()
		rec.FluidCells = diag.FluidCells
		rec.KineticEnergy = metrics.Kinetic(view.Velocities)
		rec.MaxSpeed = metrics.Speeds(view.Velocities).Max
		rec.MeanHeight = meanHeight(view)
		rec.MaxDivergence = diag.MaxDivergence
		rec.Residual = diag.Residual
		rec.Converged = diag.Converged

		if every(k.opts.ParticlesEvery, k.frame) {
			if err := k.rec.WriteParticles(k.frame, view.Positions, view.Velocities); err != nil {
				return err
			}
		}
		if every(k.opts.SVGEvery, k.frame) {
			if err := k.writeCanvas(sv); err != nil {
				return err
			}
		}
		if every(k.opts.VolumeEvery, k.frame) {
			if err := k.writeVolume(sv); err != nil {
				return err
			}
		}
	}

	if err := k.rec.WriteFrame(rec); err != nil {
		return err
	}
	k.frame++
	return nil
}

func (k *Sink) writeCanvas(sv *solver.Solver) error {
	c := viz.NewCanvas(k.opts.Width, k.opts.Height)
	lo, hi := sv.Bounds()
	pr := viz.Projector{Min: lo, Max: hi, Mode: k.opts.Projection, Camera: viz.NewCamera()}
	viz.DrawBounds(c, pr)
	viz.DrawParticles(c, sv.Particles().Positions, pr)
	svg := export.CanvasToSVG(c, 4, string(viz.CurrentTheme.Primary))
	return k.rec.WriteFile(fmt.Sprintf("frame_%05d.svg", k.frame), []byte(svg))
}

func (k *Sink) writeVolume(sv *solver.Solver) error {
	view := sv.Grid()
	img := viz.Slice(view.Volume(k.opts.Volume), view.Dims, k.opts.Projection)
	ramp := make([]string, len(viz.CurrentTheme.Ramp))
	for i, c := range viz.CurrentTheme.Ramp {
		ramp[i] = string(c)
	}
	svg := export.ImageToSVG(img, 8, ramp)
	return k.rec.WriteFile(fmt.Sprintf("%s_%05d.svg", k.opts.Volume, k.frame), []byte(svg))
}

// Close finalises the run with the scheduler's clock and metrics.
func (k *Sink) Close(s *sim.Scheduler) error {
	clock := s.Clock()
	return k.rec.Close(clock.SimTime, clock.WallTime.Seconds(), clock.TotalSteps, s.Metrics())
}

func every(n, frame int) bool {
	return n > 0 && frame%n == 0
}

func meanHeight(view solver.ParticleView) float64 {
	if len(view.Positions) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range view.Positions {
		sum += p.Y
	}
	return sum / float64(len(view.Positions))
}
