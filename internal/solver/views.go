package solver

import (
	"fmt"
	"math"

	"github.com/san-kum/fluidsim/internal/grid"
	"github.com/san-kum/fluidsim/internal/particles"
)

// ParticleView borrows the live particle arrays. It is only meaningful until
// the next step; Stale reports whether one has happened.
type ParticleView struct {
	particles.View
	Generation uint64
}

func (v ParticleView) Count() int { return len(v.Positions) }

func (v ParticleView) Stale(s *Solver) bool { return v.Generation != s.Generation() }

func (s *Solver) Particles() ParticleView {
	return ParticleView{View: s.store.View(), Generation: s.generation}
}

// GridView borrows the grid fields. Velocity holds the corrected field of the
// last step, Divergence the field before projection.
type GridView struct {
	grid.View
	Generation uint64
}

func (v GridView) Stale(s *Solver) bool { return v.Generation != s.Generation() }

func (s *Solver) Grid() GridView {
	return GridView{View: s.grid.View(), Generation: s.generation}
}

// VolumeMode selects the per-cell scalar a volume visualisation shows.
type VolumeMode int

const (
	VolumeVelocity VolumeMode = iota
	VolumeDivergence
	VolumePressure
	VolumeMarker
)

var volumeNames = [...]string{"velocity", "divergence", "pressure", "marker"}

// VolumeModes lists every mode in cycling order.
var VolumeModes = []VolumeMode{VolumeVelocity, VolumeDivergence, VolumePressure, VolumeMarker}

func (m VolumeMode) String() string {
	if m >= 0 && int(m) < len(volumeNames) {
		return volumeNames[m]
	}
	return fmt.Sprintf("volume(%d)", int(m))
}

func ParseVolumeMode(name string) (VolumeMode, error) {
	for i, n := range volumeNames {
		if n == name {
			return VolumeMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown volume mode: %s", name)
}

// Next cycles to the following mode.
func (m VolumeMode) Next() VolumeMode {
	return VolumeMode((int(m) + 1) % len(volumeNames))
}

// Volume returns a fresh per-cell scalar field for the mode: velocity
// magnitude at cell centres, uncorrected divergence, pseudo-pressure, or the
// marker value.
func (v GridView) Volume(mode VolumeMode) []float64 {
	out := make([]float64, v.Dims.Cells())
	switch mode {
	case VolumeVelocity:
		idx := 0
		for k := 0; k < v.Dims.Z; k++ {
			for j := 0; j < v.Dims.Y; j++ {
				for i := 0; i < v.Dims.X; i++ {
					out[idx] = v.CellVelocity(i, j, k).Len()
					idx++
				}
			}
		}
	case VolumeDivergence:
		copy(out, v.Divergence)
	case VolumePressure:
		copy(out, v.Pressure)
	case VolumeMarker:
		for c, m := range v.Marker {
			out[c] = float64(m)
		}
	}
	return out
}

// Range returns the smallest and largest finite values of a field.
func Range(field []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, x := range field {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}
