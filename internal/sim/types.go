// Package sim schedules fixed-step fluid simulation against wall-clock time.
//
// The Scheduler owns the solver, the clock and the active Status. Every tick a
// single plan function turns the status and the wall time that passed into a
// step count; the solver then runs that many fixed steps. A Scheduler is
// driven from one goroutine and is not safe for concurrent use.
package sim

import (
	"github.com/san-kum/fluidsim/internal/config"
	"github.com/san-kum/fluidsim/internal/dynamo"
	"github.com/san-kum/fluidsim/internal/metrics"
)

// Solver advances a simulation by exactly one fixed Dt per Step.
type Solver interface {
	Step() error
	Dt() float64
	SetGravity(g dynamo.Vec3)
	Sample(t float64) metrics.Sample
}

// Factory builds a fresh solver for a validated scene.
type Factory func(scene *config.Scene) (Solver, error)

// Observer is notified after every solver step.
type Observer interface {
	OnStep(s Solver, c Clock)
}

type ObserverFunc func(s Solver, c Clock)

func (f ObserverFunc) OnStep(s Solver, c Clock) { f(s, c) }
