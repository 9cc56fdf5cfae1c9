package metrics

// Stability is the fraction of samples in which every particle was finite and
// inside the simulated box.
type Stability struct {
	name       string
	violations int
	samples    int
}

func NewStability() *Stability {
	return &Stability{
		name: "stability",
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(sample Sample) {
	s.samples++
	if Escaped(sample) > 0 {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// Escaped counts particles that are non-finite or outside [Min, Max].
func Escaped(sample Sample) int {
	n := 0
	for i, p := range sample.Positions {
		if !p.IsValid() || !sample.Velocities[i].IsValid() ||
			p.X < sample.Min.X || p.Y < sample.Min.Y || p.Z < sample.Min.Z ||
			p.X > sample.Max.X || p.Y > sample.Max.Y || p.Z > sample.Max.Z {
			n++
		}
	}
	return n
}

// Residual tracks the worst pressure residual seen since the last reset.
type Residual struct {
	name  string
	worst float64
	last  float64
}

func NewResidual() *Residual {
	return &Residual{name: "residual"}
}

func (r *Residual) Name() string { return r.name }

func (r *Residual) Observe(s Sample) {
	r.last = s.Residual
	if s.Residual > r.worst {
		r.worst = s.Residual
	}
}

func (r *Residual) Value() float64 { return r.worst }

func (r *Residual) Last() float64 { return r.last }

func (r *Residual) Reset() {
	r.worst = 0
	r.last = 0
}
