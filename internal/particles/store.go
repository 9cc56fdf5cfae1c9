// Package particles holds the fixed-capacity particle state of a fluid scene.
package particles

import (
	"math"
	"math/rand"

	"github.com/san-kum/fluidsim/internal/dynamo"
)

// Store keeps positions and velocities in parallel slices. Slot i of both
// slices belongs to particle i; only the first Count() slots are live.
// Particles are never removed individually: a scene reset builds a new Store.
type Store struct {
	positions  []dynamo.Vec3
	velocities []dynamo.Vec3
	count      int
}

func New(capacity int) *Store {
	if capacity < 0 {
		capacity = 0
	}
	return &Store{
		positions:  make([]dynamo.Vec3, capacity),
		velocities: make([]dynamo.Vec3, capacity),
	}
}

func (s *Store) Count() int { return s.count }
func (s *Store) Capacity() int { return len(s.positions) }
func (s *Store) Available() int { return len(s.positions) - s.count }

// Append adds one particle.
func (s *Store) Append(pos, vel dynamo.Vec3) error {
	if s.Available() < 1 {
		return &dynamo.CapacityError{Requested: 1, Available: s.Available()}
	}
	s.positions[s.count] = pos
	s.velocities[s.count] = vel
	s.count++
	return nil
}

// CubeCount returns how many particles AddCube would create for the box.
func CubeCount(min, max dynamo.Vec3, spacing float64) int {
	n := lattice(min, max, spacing)
	return n[0] * n[1] * n[2]
}

func lattice(min, max dynamo.Vec3, spacing float64) [3]int {
	var n [3]int
	if spacing <= 0 {
		return n
	}
	for i, axis := range dynamo.Axes {
		extent := max.Component(axis) - min.Component(axis)
		if extent <= 0 {
			return [3]int{}
		}
		// tolerate float noise when the extent is a whole multiple of spacing
		n[i] = int(math.Floor(extent/spacing + 1e-9))
	}
	return n
}

// AddCube fills the box [min, max) with particles on a lattice of the given
// spacing. Each sample sits at the centre of its lattice cell, displaced by up
// to jitter*spacing/2 along every axis. Velocities start at zero.
//
// The particle count is computed before anything is written. When it would
// overflow the store, AddCube returns a *dynamo.CapacityError and the store is
// left exactly as it was.
func (s *Store) AddCube(min, max dynamo.Vec3, spacing, jitter float64, rng *rand.Rand) (int, error) {
	n := lattice(min, max, spacing)
	total := n[0] * n[1] * n[2]
	if total > s.Available() {
		return 0, &dynamo.CapacityError{Requested: total, Available: s.Available()}
	}
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}

	idx := s.count
	for z := 0; z < n[2]; z++ {
		for y := 0; y < n[1]; y++ {
			for x := 0; x < n[0]; x++ {
				p := dynamo.Vec3{
					X: min.X + (float64(x)+0.5)*spacing,
					Y: min.Y + (float64(y)+0.5)*spacing,
					Z: min.Z + (float64(z)+0.5)*spacing,
				}
				if jitter > 0 && rng != nil {
					p = p.Add(dynamo.Vec3{
						X: (rng.Float64() - 0.5) * jitter * spacing,
						Y: (rng.Float64() - 0.5) * jitter * spacing,
						Z: (rng.Float64() - 0.5) * jitter * spacing,
					})
				}
				s.positions[idx] = p
				s.velocities[idx] = dynamo.Vec3{}
				idx++
			}
		}
	}
	s.count = idx
	return total, nil
}

// View exposes the live particles. The slices alias the store: they must not
// be modified and are only meaningful until the next solver step.
type View struct {
	Positions  []dynamo.Vec3
	Velocities []dynamo.Vec3
}

func (s *Store) View() View {
	return View{
		Positions:  s.positions[:s.count:s.count],
		Velocities: s.velocities[:s.count:s.count],
	}
}

// Positions returns the mutable live positions. Only the solver stages that own
// the store write through it.
func (s *Store) Positions() []dynamo.Vec3 { return s.positions[:s.count] }

// Velocities returns the mutable live velocities.
func (s *Store) Velocities() []dynamo.Vec3 { return s.velocities[:s.count] }
