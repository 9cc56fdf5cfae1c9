package sim

import "fmt"

// Status selects how wall time maps onto solver steps. Exactly one is active.
type Status interface {
	status()
	String() string
}

// Realtime keeps simulated time in step with wall time, dropping whatever
// exceeds the per-tick catch-up cap.
type Realtime struct{}

// SimulateAndRender runs every step wall time asks for, however long that
// takes.
type SimulateAndRender struct{}

type Paused struct{}

// Record advances a fixed simulated interval of 1/FPS per rendered frame,
// ignoring wall time.
type Record struct {
	FPS float64
}

func (Realtime) status() {}
func (SimulateAndRender) status() {}
func (Paused) status() {}
func (Record) status() {}

func (Realtime) String() string { return "realtime" }
func (SimulateAndRender) String() string { return "simulate" }
func (Paused) String() string { return "paused" }
func (r Record) String() string { return fmt.Sprintf("record@%gfps", r.FPS) }

// ParseStatus maps a CLI mode name to a status.
func ParseStatus(name string, fps float64) (Status, error) {
	switch name {
	case "realtime", "":
		return Realtime{}, nil
	case "simulate", "simulate-and-render":
		return SimulateAndRender{}, nil
	case "paused":
		return Paused{}, nil
	case "record":
		return Record{FPS: fps}, nil
	}
	return nil, fmt.Errorf("unknown mode: %s", name)
}

// NextStatus cycles Realtime -> SimulateAndRender -> Paused -> Realtime.
// Recording is entered and left through its own commands.
func NextStatus(s Status) Status {
	switch s.(type) {
	case Realtime:
		return SimulateAndRender{}
	case SimulateAndRender:
		return Paused{}
	default:
		return Realtime{}
	}
}
