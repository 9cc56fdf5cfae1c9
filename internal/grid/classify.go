package grid

import (
	"math"
	"sync/atomic"

	"github.com/san-kum/fluidsim/internal/compute"
	"github.com/san-kum/fluidsim/internal/dynamo"
)

// bins is a counting-sort of particle indices by containing cell.
// Particles of cell c are order[start[c]:start[c+1]]; order within a cell is
// not deterministic under parallel execution.
type bins struct {
	count []int32
	start []int32
	order []int32
	cell  []int32
}

func newBins(cells int) bins {
	return bins{
		count: make([]int32, cells),
		start: make([]int32, cells+1),
	}
}

func (b *bins) ensure(particles int) {
	if cap(b.order) < particles {
		b.order = make([]int32, particles)
		b.cell = make([]int32, particles)
	}
	b.order = b.order[:particles]
	b.cell = b.cell[:particles]
}

// CellOf returns the cell containing grid-space point p, clamped into the
// lattice.
func (g *Grid) CellOf(p dynamo.Vec3) (i, j, k int) {
	return clampCell(p.X, g.dims.X), clampCell(p.Y, g.dims.Y), clampCell(p.Z, g.dims.Z)
}

func clampCell(x float64, n int) int {
	c := int(math.Floor(x))
	if c < 0 {
		return 0
	}
	if c >= n {
		return n - 1
	}
	return c
}

// Classify rebuilds the marker field and the per-cell particle bins from
// world-space positions. A cell holding at least one particle is Fluid, every
// other lattice cell is Air; anything outside the lattice reads as Solid
// through MarkerAt.
func (g *Grid) Classify(positions []dynamo.Vec3) {
	b := &g.bins
	b.ensure(len(positions))
	cells := g.dims.Cells()

	g.backend.ParallelFor(cells, compute.DefaultMinChunk, func(start, end int) {
		for c := start; c < end; c++ {
			b.count[c] = 0
		}
	})

	g.backend.ParallelFor(len(positions), compute.DefaultMinChunk, func(start, end int) {
		for p := start; p < end; p++ {
			i, j, k := g.CellOf(g.WorldToGrid(positions[p]))
			c := int32(g.CellIndex(i, j, k))
			b.cell[p] = c
			atomic.AddInt32(&b.count[c], 1)
		}
	})

	// exclusive prefix sum; count becomes the fill cursor
	var sum int32
	for c := 0; c < cells; c++ {
		b.start[c] = sum
		sum += b.count[c]
		b.count[c] = b.start[c]
	}
	b.start[cells] = sum

	g.backend.ParallelFor(len(positions), compute.DefaultMinChunk, func(start, end int) {
		for p := start; p < end; p++ {
			slot := atomic.AddInt32(&b.count[b.cell[p]], 1) - 1
			b.order[slot] = int32(p)
		}
	})

	g.backend.ParallelFor(cells, compute.DefaultMinChunk, func(start, end int) {
		for c := start; c < end; c++ {
			if b.start[c+1] > b.start[c] {
				g.Marker[c] = Fluid
			} else {
				g.Marker[c] = Air
			}
		}
	})
}

// ParticlesIn returns the indices of the particles binned into cell c by the
// last Classify.
func (g *Grid) ParticlesIn(c int) []int32 {
	return g.bins.order[g.bins.start[c]:g.bins.start[c+1]]
}
