package solver

import (
	"github.com/san-kum/fluidsim/internal/dynamo"
	"github.com/san-kum/fluidsim/internal/grid"
)

// scatter transfers particle velocities onto the face samples with the
// trilinear kernel. Each face sample pulls from the particles binned in the
// cells its kernel reaches, so every worker writes only its own samples. The
// weighted sum is normalised once all contributions are in; samples no
// particle reaches stay zero and invalid.
func (s *Solver) scatter(vel []dynamo.Vec3) {
	g := s.grid
	gp := s.gridPos

	for _, axis := range dynamo.Axes {
		field, valid := g.Velocity[axis], g.Valid[axis]

		s.backend.ParallelFor(len(field), faceChunk, func(start, end int) {
			for f := start; f < end; f++ {
				i, j, k := g.FaceCoords(axis, f)
				at := grid.FacePosition(axis, i, j, k)

				// the kernel spans one cell either side of the sample; along
				// its own axis that is the two cells the face separates
				lo := [3]int{i - 1, j - 1, k - 1}
				hi := [3]int{i + 1, j + 1, k + 1}
				hi[axis] = [3]int{i, j, k}[axis]

				var sum, wsum float64
				for ck := lo[2]; ck <= hi[2]; ck++ {
					for cj := lo[1]; cj <= hi[1]; cj++ {
						for ci := lo[0]; ci <= hi[0]; ci++ {
							if !g.InBounds(ci, cj, ck) {
								continue
							}
							for _, p := range g.ParticlesIn(g.CellIndex(ci, cj, ck)) {
								w := grid.KernelWeight(gp[p].Sub(at))
								if w == 0 {
									continue
								}
								sum += w * vel[p].Component(axis)
								wsum += w
							}
						}
					}
				}

				if wsum > 0 {
					field[f] = sum / wsum
					valid[f] = true
				} else {
					field[f] = 0
					valid[f] = false
				}
			}
		})
	}
}

// saveVelocities keeps the transferred field as the FLIP reference.
func (s *Solver) saveVelocities() {
	g := s.grid
	for _, axis := range dynamo.Axes {
		src, dst := g.Velocity[axis], g.Saved[axis]
		s.backend.ParallelFor(len(src), cellChunk, func(start, end int) {
			copy(dst[start:end], src[start:end])
		})
	}
}

// gather blends the PIC velocity (the new grid field) with the FLIP velocity
// (particle velocity plus the grid change since saveVelocities).
func (s *Solver) gather(vel []dynamo.Vec3) {
	g := s.grid
	gp := s.gridPos
	ratio := s.flipRatio

	s.backend.ParallelFor(len(vel), cellChunk, func(start, end int) {
		for p := start; p < end; p++ {
			v := vel[p]
			for _, axis := range dynamo.Axes {
				cur := g.Interpolate(g.Velocity[axis], axis, gp[p])
				old := g.Interpolate(g.Saved[axis], axis, gp[p])
				flip := v.Component(axis) + cur - old
				v = v.WithComponent(axis, ratio*flip+(1-ratio)*cur)
			}
			vel[p] = v
		}
	})
}
