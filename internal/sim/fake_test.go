package sim

import (
	"errors"

	"github.com/san-kum/fluidsim/internal/config"
	"github.com/san-kum/fluidsim/internal/dynamo"
	"github.com/san-kum/fluidsim/internal/metrics"
)

var errBroken = errors.New("broken scene")

type fakeSolver struct {
	dt      float64
	steps   int
	failAt  int
	gravity dynamo.Vec3
	scene   string
}

func (f *fakeSolver) Step() error {
	if f.failAt > 0 && f.steps+1 == f.failAt {
		return errors.New("blew up")
	}
	f.steps++
	return nil
}

func (f *fakeSolver) Dt() float64 { return f.dt }

func (f *fakeSolver) SetGravity(g dynamo.Vec3) { f.gravity = g }

func (f *fakeSolver) Sample(t float64) metrics.Sample {
	return metrics.Sample{Step: uint64(f.steps), Time: t, Residual: float64(f.steps)}
}

type fakeFactory struct {
	built []*fakeSolver
}

func (ff *fakeFactory) build(scene *config.Scene) (Solver, error) {
	if scene.Name == "broken" {
		return nil, errBroken
	}
	f := &fakeSolver{dt: scene.Solver.Dt, gravity: scene.Gravity, scene: scene.Name}
	ff.built = append(ff.built, f)
	return f, nil
}

func (ff *fakeFactory) last() *fakeSolver { return ff.built[len(ff.built)-1] }

func testScene() *config.Scene {
	s := config.DefaultScene()
	s.Name = "test"
	s.Solver.Dt = 1.0 / 60.0
	s.Scheduler.MaxStepsPerTick = 8
	return s
}
