// Package metrics observes a running fluid simulation: energy, speed,
// containment, pressure residual and per-stage timing.
package metrics

import "github.com/san-kum/fluidsim/internal/dynamo"

// Sample is one observation of the simulation after a step. The particle
// slices alias solver memory and must not be retained past Observe.
type Sample struct {
	Step       uint64
	Time       float64
	Positions  []dynamo.Vec3
	Velocities []dynamo.Vec3
	Residual   float64
	Min, Max   dynamo.Vec3
	// Gravity is the acceleration in force when the sample was taken.
	Gravity    dynamo.Vec3
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

// Standard returns the metrics every run collects.
func Standard() []Metric {
	return []Metric{
		NewEnergy(),
		NewMaxSpeed(),
		NewStability(),
		NewResidual(),
	}
}
