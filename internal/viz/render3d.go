package viz

import (
	"fmt"
	"math"

	"github.com/san-kum/fluidsim/internal/dynamo"
)

// Projection selects how the 3D domain is flattened onto the canvas.
type Projection int

const (
	ProjectFront Projection = iota // x right, y up
	ProjectSide                    // z right, y up
	ProjectTop                     // x right, z down
	ProjectPerspective
)

var projectionNames = [...]string{"front", "side", "top", "perspective"}

func (p Projection) String() string {
	if p >= 0 && int(p) < len(projectionNames) {
		return projectionNames[p]
	}
	return fmt.Sprintf("projection(%d)", int(p))
}

func ParseProjection(name string) (Projection, error) {
	for i, n := range projectionNames {
		if n == name {
			return Projection(i), nil
		}
	}
	return 0, fmt.Errorf("unknown projection: %s", name)
}

func (p Projection) Next() Projection {
	return Projection((int(p) + 1) % len(projectionNames))
}

// Camera orbits the domain centre for the perspective projection.
type Camera struct {
	RotX, RotY float64
	Zoom       float64
	Distance   float64
}

func NewCamera() *Camera {
	return &Camera{RotX: -0.35, RotY: 0.6, Zoom: 1.0, Distance: 3.0}
}

func (c *Camera) RotateX(a float64) { c.RotX += a }
func (c *Camera) RotateY(a float64) { c.RotY += a }
func (c *Camera) ZoomIn()           { c.Zoom = math.Min(10, c.Zoom*1.2) }
func (c *Camera) ZoomOut()          { c.Zoom = math.Max(0.1, c.Zoom/1.2) }

// rotate turns a point given relative to the domain centre.
func (c *Camera) rotate(p dynamo.Vec3) dynamo.Vec3 {
	cy, sy := math.Cos(c.RotY), math.Sin(c.RotY)
	p.X, p.Z = p.X*cy+p.Z*sy, -p.X*sy+p.Z*cy
	cx, sx := math.Cos(c.RotX), math.Sin(c.RotX)
	p.Y, p.Z = p.Y*cx-p.Z*sx, p.Y*sx+p.Z*cx
	return p
}

// Projector maps world positions inside [Min, Max] to canvas dots.
type Projector struct {
	Min, Max dynamo.Vec3
	Mode     Projection
	Camera   *Camera
}

// Project returns the dot a world position lands on and whether it is
// inside the canvas.
func (pr Projector) Project(p dynamo.Vec3, dotsW, dotsH int) (int, int, bool) {
	ext := pr.Max.Sub(pr.Min)
	var u, v, spanU, spanV float64
	switch pr.Mode {
	case ProjectSide:
		u, v, spanU, spanV = p.Z-pr.Min.Z, pr.Max.Y-p.Y, ext.Z, ext.Y
	case ProjectTop:
		u, v, spanU, spanV = p.X-pr.Min.X, p.Z-pr.Min.Z, ext.X, ext.Z
	case ProjectPerspective:
		return pr.perspective(p, dotsW, dotsH)
	default:
		u, v, spanU, spanV = p.X-pr.Min.X, pr.Max.Y-p.Y, ext.X, ext.Y
	}
	if spanU <= 0 || spanV <= 0 {
		return 0, 0, false
	}
	// keep the aspect ratio of the domain; a braille dot is square enough
	s := math.Min(float64(dotsW-1)/spanU, float64(dotsH-1)/spanV)
	x := int(math.Round(u * s))
	y := int(math.Round(v * s))
	return x, y, x >= 0 && x < dotsW && y >= 0 && y < dotsH
}

func (pr Projector) perspective(p dynamo.Vec3, dotsW, dotsH int) (int, int, bool) {
	cam := pr.Camera
	if cam == nil {
		cam = NewCamera()
	}
	ext := pr.Max.Sub(pr.Min)
	size := math.Max(ext.X, math.Max(ext.Y, ext.Z))
	if size <= 0 {
		return 0, 0, false
	}
	centre := pr.Min.Add(ext.Scale(0.5))
	rot := cam.rotate(p.Sub(centre).Scale(1 / size))
	if rot.Z >= cam.Distance-0.1 {
		return 0, 0, false
	}
	scale := cam.Distance / (cam.Distance - rot.Z) * cam.Zoom
	minDim := math.Min(float64(dotsW), float64(dotsH))
	x := int(rot.X*scale*minDim*0.6) + dotsW/2
	y := int(-rot.Y*scale*minDim*0.6) + dotsH/2
	return x, y, x >= 0 && x < dotsW && y >= 0 && y < dotsH
}

// DrawParticles plots every position as one dot.
func DrawParticles(c *Canvas, pos []dynamo.Vec3, pr Projector) {
	w, h := c.DotsWide(), c.DotsHigh()
	for _, p := range pos {
		if x, y, ok := pr.Project(p, w, h); ok {
			c.Set(x, y)
		}
	}
}

var boxEdges = [12][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 0},
	{4, 5}, {5, 6}, {6, 7}, {7, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// DrawBounds outlines the simulation box.
func DrawBounds(c *Canvas, pr Projector) {
	lo, hi := pr.Min, pr.Max
	corners := [8]dynamo.Vec3{
		{X: lo.X, Y: lo.Y, Z: lo.Z}, {X: hi.X, Y: lo.Y, Z: lo.Z},
		{X: hi.X, Y: hi.Y, Z: lo.Z}, {X: lo.X, Y: hi.Y, Z: lo.Z},
		{X: lo.X, Y: lo.Y, Z: hi.Z}, {X: hi.X, Y: lo.Y, Z: hi.Z},
		{X: hi.X, Y: hi.Y, Z: hi.Z}, {X: lo.X, Y: hi.Y, Z: hi.Z},
	}
	w, h := c.DotsWide(), c.DotsHigh()
	for _, e := range boxEdges {
		x1, y1, ok1 := pr.Project(corners[e[0]], w, h)
		x2, y2, ok2 := pr.Project(corners[e[1]], w, h)
		if ok1 || ok2 {
			c.DrawLine(x1, y1, x2, y2)
		}
	}
}
