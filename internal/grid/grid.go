// Package grid implements the staggered (MAC) lattice the fluid solver
// projects onto.
//
// Velocity components live on face centres: U on faces normal to x, V on faces
// normal to y, W on faces normal to z. Marker, pressure and divergence live on
// cell centres. Grid space measures distances in cells; world space is
// Origin + grid*Scale.
package grid

import (
	"fmt"
	"math"

	"github.com/san-kum/fluidsim/internal/compute"
	"github.com/san-kum/fluidsim/internal/dynamo"
)

type Marker uint8

const (
	Air Marker = iota
	Fluid
	Solid
)

func (m Marker) String() string {
	switch m {
	case Air:
		return "air"
	case Fluid:
		return "fluid"
	case Solid:
		return "solid"
	}
	return fmt.Sprintf("marker(%d)", uint8(m))
}

// Grid owns every per-cell and per-face buffer of one scene. Its dimensions
// never change; a different resolution needs a new Grid.
type Grid struct {
	dims    dynamo.Dims
	origin  dynamo.Vec3
	scale   float64
	backend compute.Backend

	// Marker is scratch: rebuilt by Classify every step.
	Marker []Marker

	// Velocity holds the face velocities being worked on this step, Saved the
	// copy taken right after the particle-to-grid transfer. Valid marks the
	// faces that transfer reached; projection leaves the others alone.
	Velocity [3][]float64
	Saved    [3][]float64
	Valid    [3][]bool

	Divergence []float64

	pressure [2][]float64
	front    int

	bins bins
}

func New(dims dynamo.Dims, origin dynamo.Vec3, scale float64, backend compute.Backend) (*Grid, error) {
	if !dims.Valid() {
		return nil, dynamo.InvalidConfig("grid.dimensions", "must be positive, got %v", dims)
	}
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, dynamo.InvalidConfig("grid.cell_scale", "must be positive, got %g", scale)
	}
	if backend == nil {
		backend = compute.Default()
	}

	cells := dims.Cells()
	g := &Grid{
		dims:       dims,
		origin:     origin,
		scale:      scale,
		backend:    backend,
		Marker:     make([]Marker, cells),
		Divergence: make([]float64, cells),
		pressure:   [2][]float64{make([]float64, cells), make([]float64, cells)},
		bins:       newBins(cells),
	}
	for _, axis := range dynamo.Axes {
		n := g.FaceCount(axis)
		g.Velocity[axis] = make([]float64, n)
		g.Saved[axis] = make([]float64, n)
		g.Valid[axis] = make([]bool, n)
	}
	return g, nil
}

func (g *Grid) Dims() dynamo.Dims { return g.dims }
func (g *Grid) Origin() dynamo.Vec3 { return g.origin }
func (g *Grid) Scale() float64 { return g.scale }
func (g *Grid) Backend() compute.Backend { return g.backend }

// Bounds returns the world-space corners of the simulated box.
func (g *Grid) Bounds() (min, max dynamo.Vec3) {
	return g.origin, g.origin.Add(g.dims.Vec().Scale(g.scale))
}

func (g *Grid) WorldToGrid(p dynamo.Vec3) dynamo.Vec3 {
	return p.Sub(g.origin).Scale(1 / g.scale)
}

func (g *Grid) GridToWorld(p dynamo.Vec3) dynamo.Vec3 {
	return p.Scale(g.scale).Add(g.origin)
}

// CellIndex flattens (i, j, k) with x varying fastest.
func (g *Grid) CellIndex(i, j, k int) int {
	return i + g.dims.X*(j+g.dims.Y*k)
}

func (g *Grid) CellCoords(idx int) (i, j, k int) {
	i = idx % g.dims.X
	idx /= g.dims.X
	j = idx % g.dims.Y
	k = idx / g.dims.Y
	return
}

func (g *Grid) InBounds(i, j, k int) bool {
	return i >= 0 && j >= 0 && k >= 0 && i < g.dims.X && j < g.dims.Y && k < g.dims.Z
}

// MarkerAt reports Solid for every index outside the lattice.
func (g *Grid) MarkerAt(i, j, k int) Marker {
	if !g.InBounds(i, j, k) {
		return Solid
	}
	return g.Marker[g.CellIndex(i, j, k)]
}

// FaceDims is the sample lattice of one velocity component: one extra sample
// along its own axis.
func (g *Grid) FaceDims(axis dynamo.Axis) dynamo.Dims {
	d := g.dims
	switch axis {
	case dynamo.AxisX:
		d.X++
	case dynamo.AxisY:
		d.Y++
	default:
		d.Z++
	}
	return d
}

func (g *Grid) FaceCount(axis dynamo.Axis) int {
	return g.FaceDims(axis).Cells()
}

func (g *Grid) FaceIndex(axis dynamo.Axis, i, j, k int) int {
	d := g.FaceDims(axis)
	return i + d.X*(j+d.Y*k)
}

func (g *Grid) FaceCoords(axis dynamo.Axis, idx int) (i, j, k int) {
	d := g.FaceDims(axis)
	i = idx % d.X
	idx /= d.X
	j = idx % d.Y
	k = idx / d.Y
	return
}

// FacePosition is the grid-space location of a face sample: integral along its
// own axis, half-integral along the other two.
func FacePosition(axis dynamo.Axis, i, j, k int) dynamo.Vec3 {
	p := dynamo.Vec3{X: float64(i) + 0.5, Y: float64(j) + 0.5, Z: float64(k) + 0.5}
	return p.WithComponent(axis, p.Component(axis)-0.5)
}

// FaceCells returns the two cells a face separates, the lower one first.
func FaceCells(axis dynamo.Axis, i, j, k int) (li, lj, lk, ui, uj, uk int) {
	switch axis {
	case dynamo.AxisX:
		return i - 1, j, k, i, j, k
	case dynamo.AxisY:
		return i, j - 1, k, i, j, k
	default:
		return i, j, k - 1, i, j, k
	}
}

// Pressure returns the buffer holding the latest solved pressure.
func (g *Grid) Pressure() []float64 { return g.pressure[g.front] }

// PressureBuffers returns the read (front) and write (back) pressure buffers.
func (g *Grid) PressureBuffers() (read, write []float64) {
	return g.pressure[g.front], g.pressure[1-g.front]
}

// SwapPressure makes the back buffer the new front.
func (g *Grid) SwapPressure() { g.front = 1 - g.front }

// ClearVelocityAccumulators zeroes the face velocities and valid flags the
// particle-to-grid transfer writes.
func (g *Grid) ClearVelocityAccumulators() {
	for _, axis := range dynamo.Axes {
		vel, valid := g.Velocity[axis], g.Valid[axis]
		g.backend.ParallelFor(len(vel), compute.DefaultMinChunk, func(start, end int) {
			for f := start; f < end; f++ {
				vel[f] = 0
				valid[f] = false
			}
		})
	}
}

// View is a read-only borrow of the grid fields for renderers. The slices
// alias the live buffers and are valid until the next step.
type View struct {
	Dims       dynamo.Dims
	Origin     dynamo.Vec3
	Scale      float64
	U, V, W    []float64
	Marker     []Marker
	Pressure   []float64
	Divergence []float64
}

func (g *Grid) View() View {
	return View{
		Dims:       g.dims,
		Origin:     g.origin,
		Scale:      g.scale,
		U:          g.Velocity[dynamo.AxisX],
		V:          g.Velocity[dynamo.AxisY],
		W:          g.Velocity[dynamo.AxisZ],
		Marker:     g.Marker,
		Pressure:   g.Pressure(),
		Divergence: g.Divergence,
	}
}

// CellVelocity averages the two faces around a cell centre on every axis.
func (v View) CellVelocity(i, j, k int) dynamo.Vec3 {
	fx := dynamo.Dims{X: v.Dims.X + 1, Y: v.Dims.Y, Z: v.Dims.Z}
	fy := dynamo.Dims{X: v.Dims.X, Y: v.Dims.Y + 1, Z: v.Dims.Z}
	fz := dynamo.Dims{X: v.Dims.X, Y: v.Dims.Y, Z: v.Dims.Z + 1}
	at := func(d dynamo.Dims, i, j, k int) int { return i + d.X*(j+d.Y*k) }
	return dynamo.Vec3{
		X: 0.5 * (v.U[at(fx, i, j, k)] + v.U[at(fx, i+1, j, k)]),
		Y: 0.5 * (v.V[at(fy, i, j, k)] + v.V[at(fy, i, j+1, k)]),
		Z: 0.5 * (v.W[at(fz, i, j, k)] + v.W[at(fz, i, j, k+1)]),
	}
}

// CountMarkers tallies cells per marker kind.
func (v View) CountMarkers() map[Marker]int {
	out := make(map[Marker]int, 3)
	for _, m := range v.Marker {
		out[m]++
	}
	return out
}
