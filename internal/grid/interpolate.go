package grid

import (
	"math"

	"github.com/san-kum/fluidsim/internal/dynamo"
)

// Hat is the one-dimensional trilinear (tent) kernel.
func Hat(d float64) float64 {
	d = math.Abs(d)
	if d >= 1 {
		return 0
	}
	return 1 - d
}

// KernelWeight is the trilinear weight a grid-space offset contributes.
func KernelWeight(d dynamo.Vec3) float64 {
	return Hat(d.X) * Hat(d.Y) * Hat(d.Z)
}

// Interpolate samples a face field of the given axis at grid-space point p.
// Points beyond the outermost samples take the value of the nearest sample.
func (g *Grid) Interpolate(field []float64, axis dynamo.Axis, p dynamo.Vec3) float64 {
	d := g.FaceDims(axis)
	// shift so that sample (i, j, k) sits at integer coordinates
	o := p.Sub(FacePosition(axis, 0, 0, 0))

	i0, i1, fx := bracket(o.X, d.X)
	j0, j1, fy := bracket(o.Y, d.Y)
	k0, k1, fz := bracket(o.Z, d.Z)

	at := func(i, j, k int) float64 { return field[i+d.X*(j+d.Y*k)] }

	c00 := at(i0, j0, k0)*(1-fx) + at(i1, j0, k0)*fx
	c10 := at(i0, j1, k0)*(1-fx) + at(i1, j1, k0)*fx
	c01 := at(i0, j0, k1)*(1-fx) + at(i1, j0, k1)*fx
	c11 := at(i0, j1, k1)*(1-fx) + at(i1, j1, k1)*fx

	c0 := c00*(1-fy) + c10*fy
	c1 := c01*(1-fy) + c11*fy

	return c0*(1-fz) + c1*fz
}

func bracket(x float64, n int) (lo, hi int, frac float64) {
	if n <= 1 {
		return 0, 0, 0
	}
	lo = int(math.Floor(x))
	if lo < 0 {
		return 0, 1, 0
	}
	if lo >= n-1 {
		return n - 2, n - 1, 1
	}
	return lo, lo + 1, x - float64(lo)
}
