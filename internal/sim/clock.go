package sim

import "time"

// Clock is the scheduler's view of time. Only the scheduler mutates it.
type Clock struct {
	// SimTime is the simulated time in seconds: completed steps times Dt.
	SimTime float64
	// WallTime accumulates the wall time delivered while not paused.
	WallTime time.Duration

	TotalSteps     uint64
	StepsThisTick  int
	FramesRendered uint64

	// Accumulator is unsimulated wall time carried to the next tick.
	Accumulator float64
	// Dropped is the wall time the catch-up cap discarded, in seconds.
	Dropped float64

	// LastTick is how long the most recent tick spent stepping.
	LastTick time.Duration
}

// Lag is wall time minus simulated time, in seconds.
func (c Clock) Lag() float64 {
	return c.WallTime.Seconds() - c.SimTime
}
