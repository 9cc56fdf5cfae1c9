package solver

import (
	"github.com/san-kum/fluidsim/internal/dynamo"
)

// advect moves particles along their velocity for one step and keeps them
// strictly inside the box. A particle pushed against a wall loses the velocity
// component pointing into it.
func (s *Solver) advect(pos, vel []dynamo.Vec3) {
	min, max := s.grid.Bounds()
	eps := wallEpsilon * s.grid.Scale()
	lo := min.Add(dynamo.V(eps, eps, eps))
	hi := max.Sub(dynamo.V(eps, eps, eps))
	dt := s.dt

	s.backend.ParallelFor(len(pos), cellChunk, func(start, end int) {
		for p := start; p < end; p++ {
			x := pos[p].Add(vel[p].Scale(dt))
			v := vel[p]
			for _, axis := range dynamo.Axes {
				c := x.Component(axis)
				switch {
				case c < lo.Component(axis):
					x = x.WithComponent(axis, lo.Component(axis))
					if v.Component(axis) < 0 {
						v = v.WithComponent(axis, 0)
					}
				case c > hi.Component(axis):
					x = x.WithComponent(axis, hi.Component(axis))
					if v.Component(axis) > 0 {
						v = v.WithComponent(axis, 0)
					}
				}
			}
			pos[p] = x
			vel[p] = v
		}
	})
}
