package metrics

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/fluidsim/internal/dynamo"
)

// Energy is the mean specific mechanical energy per particle (J/kg) at the
// latest sample: kinetic plus potential relative to the domain minimum, under
// the gravity the sample carries.
type Energy struct {
	name    string
	buf     []float64
	value   float64
	samples int
}

func NewEnergy() *Energy {
	return &Energy{name: "energy"}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(s Sample) {
	n := len(s.Velocities)
	if n == 0 {
		e.value = 0
		e.samples++
		return
	}
	if cap(e.buf) < n {
		e.buf = make([]float64, n)
	}
	buf := e.buf[:n]
	for i, v := range s.Velocities {
		pe := -s.Gravity.Dot(s.Positions[i].Sub(s.Min))
		buf[i] = 0.5*v.Dot(v) + pe
	}
	e.value = stat.Mean(buf, nil)
	e.samples++
}

func (e *Energy) Value() float64 { return e.value }

func (e *Energy) Reset() {
	e.value = 0
	e.samples = 0
}

// Kinetic returns the mean specific kinetic energy of a particle set.
func Kinetic(velocities []dynamo.Vec3) float64 {
	if len(velocities) == 0 {
		return 0
	}
	sq := make([]float64, len(velocities))
	for i, v := range velocities {
		sq[i] = v.Dot(v)
	}
	return 0.5 * floats.Sum(sq) / float64(len(sq))
}

// MaxSpeed tracks the largest particle speed seen since the last reset.
type MaxSpeed struct {
	name string
	buf  []float64
	max  float64
}

func NewMaxSpeed() *MaxSpeed {
	return &MaxSpeed{name: "max_speed"}
}

func (m *MaxSpeed) Name() string { return m.name }

func (m *MaxSpeed) Observe(s Sample) {
	n := len(s.Velocities)
	if n == 0 {
		return
	}
	if cap(m.buf) < n {
		m.buf = make([]float64, n)
	}
	buf := m.buf[:n]
	for i, v := range s.Velocities {
		buf[i] = v.Len()
	}
	if v := floats.Max(buf); v > m.max {
		m.max = v
	}
}

func (m *MaxSpeed) Value() float64 { return m.max }

func (m *MaxSpeed) Reset() { m.max = 0 }

// SpeedStats summarises the particle speed distribution.
type SpeedStats struct {
	Mean   float64
	StdDev float64
	Max    float64
}

func Speeds(velocities []dynamo.Vec3) SpeedStats {
	if len(velocities) == 0 {
		return SpeedStats{}
	}
	sp := make([]float64, len(velocities))
	for i, v := range velocities {
		sp[i] = v.Len()
	}
	mean, std := stat.MeanStdDev(sp, nil)
	if len(sp) == 1 {
		std = 0
	}
	return SpeedStats{Mean: mean, StdDev: std, Max: floats.Max(sp)}
}
