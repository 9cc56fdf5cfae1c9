package solver

import (
	"math"

	"github.com/san-kum/fluidsim/internal/compute"
	"github.com/san-kum/fluidsim/internal/dynamo"
	"github.com/san-kum/fluidsim/internal/grid"
)

var neighbours = [6][3]int{
	{-1, 0, 0}, {1, 0, 0},
	{0, -1, 0}, {0, 1, 0},
	{0, 0, -1}, {0, 0, 1},
}

// faceMarkers returns the markers of the cells below and above face f.
func (s *Solver) faceMarkers(axis dynamo.Axis, f int) (lower, upper grid.Marker) {
	g := s.grid
	i, j, k := g.FaceCoords(axis, f)
	li, lj, lk, ui, uj, uk := grid.FaceCells(axis, i, j, k)
	return g.MarkerAt(li, lj, lk), g.MarkerAt(ui, uj, uk)
}

// applyGravity accelerates every valid face touching fluid. Faces touching a
// solid are left to enforceBoundaries.
func (s *Solver) applyGravity() {
	for _, axis := range dynamo.Axes {
		dv := s.gravity.Component(axis) * s.dt
		if dv == 0 {
			continue
		}
		field, valid := s.grid.Velocity[axis], s.grid.Valid[axis]
		s.backend.ParallelFor(len(field), cellChunk, func(start, end int) {
			for f := start; f < end; f++ {
				if !valid[f] {
					continue
				}
				a, b := s.faceMarkers(axis, f)
				if a == grid.Solid || b == grid.Solid {
					continue
				}
				if a == grid.Fluid || b == grid.Fluid {
					field[f] += dv
				}
			}
		})
	}
}

// enforceBoundaries zeroes the normal velocity on every face touching a solid.
func (s *Solver) enforceBoundaries() {
	for _, axis := range dynamo.Axes {
		field := s.grid.Velocity[axis]
		s.backend.ParallelFor(len(field), cellChunk, func(start, end int) {
			for f := start; f < end; f++ {
				a, b := s.faceMarkers(axis, f)
				if a == grid.Solid || b == grid.Solid {
					field[f] = 0
				}
			}
		})
	}
}

// cellDivergence is the net outflow of fluid cell (i, j, k) per unit volume.
func (s *Solver) cellDivergence(i, j, k int) float64 {
	g := s.grid
	u, v, w := g.Velocity[dynamo.AxisX], g.Velocity[dynamo.AxisY], g.Velocity[dynamo.AxisZ]
	d := u[g.FaceIndex(dynamo.AxisX, i+1, j, k)] - u[g.FaceIndex(dynamo.AxisX, i, j, k)] +
		v[g.FaceIndex(dynamo.AxisY, i, j+1, k)] - v[g.FaceIndex(dynamo.AxisY, i, j, k)] +
		w[g.FaceIndex(dynamo.AxisZ, i, j, k+1)] - w[g.FaceIndex(dynamo.AxisZ, i, j, k)]
	return d / g.Scale()
}

// computeDivergence fills the divergence field over fluid cells and returns
// its largest magnitude.
func (s *Solver) computeDivergence() float64 {
	g := s.grid
	div := g.Divergence
	return compute.ReduceMax(s.backend, len(div), cellChunk, func(start, end int) float64 {
		var worst float64
		for c := start; c < end; c++ {
			if g.Marker[c] != grid.Fluid {
				div[c] = 0
				continue
			}
			d := s.cellDivergence(g.CellCoords(c))
			div[c] = d
			if a := math.Abs(d); a > worst || math.IsNaN(a) {
				worst = a
			}
		}
		return worst
	})
}

// solvePressure runs a fixed number of Jacobi sweeps for the pseudo-pressure
// q = p*dt/rho that makes the fluid divergence free. Air and solid cells hold
// zero; solid neighbours drop out of the stencil. Cells that stay fluid start
// from the previous step's solution.
func (s *Solver) solvePressure() {
	g := s.grid
	read, _ := g.PressureBuffers()
	s.backend.ParallelFor(len(read), cellChunk, func(start, end int) {
		for c := start; c < end; c++ {
			if g.Marker[c] != grid.Fluid {
				read[c] = 0
			}
		}
	})

	h2 := g.Scale() * g.Scale()
	for it := 0; it < s.iterations; it++ {
		read, write := g.PressureBuffers()
		s.backend.ParallelFor(len(read), cellChunk, func(start, end int) {
			for c := start; c < end; c++ {
				write[c] = s.jacobi(read, c, h2)
			}
		})
		g.SwapPressure()
	}
}

func (s *Solver) jacobi(q []float64, c int, h2 float64) float64 {
	g := s.grid
	if g.Marker[c] != grid.Fluid {
		return 0
	}
	i, j, k := g.CellCoords(c)
	var sum float64
	n := 0
	for _, o := range neighbours {
		ni, nj, nk := i+o[0], j+o[1], k+o[2]
		switch g.MarkerAt(ni, nj, nk) {
		case grid.Solid:
			continue
		case grid.Fluid:
			sum += q[g.CellIndex(ni, nj, nk)]
		}
		n++
	}
	if n == 0 {
		return 0
	}
	return (sum - h2*g.Divergence[c]) / float64(n)
}

// correctVelocity subtracts the pseudo-pressure gradient from every valid face
// touching fluid. Faces touching a solid are clamped to zero.
func (s *Solver) correctVelocity() {
	g := s.grid
	q := g.Pressure()
	invH := 1 / g.Scale()

	for _, axis := range dynamo.Axes {
		field, valid := g.Velocity[axis], g.Valid[axis]
		s.backend.ParallelFor(len(field), cellChunk, func(start, end int) {
			for f := start; f < end; f++ {
				i, j, k := g.FaceCoords(axis, f)
				li, lj, lk, ui, uj, uk := grid.FaceCells(axis, i, j, k)
				a, b := g.MarkerAt(li, lj, lk), g.MarkerAt(ui, uj, uk)
				if a == grid.Solid || b == grid.Solid {
					field[f] = 0
					continue
				}
				if !valid[f] || (a != grid.Fluid && b != grid.Fluid) {
					continue
				}
				qa := q[g.CellIndex(li, lj, lk)]
				qb := q[g.CellIndex(ui, uj, uk)]
				field[f] -= (qb - qa) * invH
			}
		})
	}
}

// residual is the largest divergence left in any fluid cell after correction.
func (s *Solver) residual() float64 {
	g := s.grid
	return compute.ReduceMax(s.backend, g.Dims().Cells(), cellChunk, func(start, end int) float64 {
		var worst float64
		for c := start; c < end; c++ {
			if g.Marker[c] != grid.Fluid {
				continue
			}
			a := math.Abs(s.cellDivergence(g.CellCoords(c)))
			if a > worst || math.IsNaN(a) {
				worst = a
			}
		}
		return worst
	})
}
