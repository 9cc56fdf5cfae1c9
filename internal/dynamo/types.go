package dynamo

import (
	"fmt"
	"math"
)

// Axis selects a vector component.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return fmt.Sprintf("axis(%d)", int(a))
}

// Axes lists the three axes in storage order.
var Axes = [3]Axis{AxisX, AxisY, AxisZ}

type Vec3 struct {
	X, Y, Z float64
}

func V(x, y, z float64) Vec3 { return Vec3{x, y, z} }

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(f float64) Vec3 { return Vec3{a.X * f, a.Y * f, a.Z * f} }
func (a Vec3) Dot(b Vec3) float64 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func (a Vec3) Len() float64 { return math.Sqrt(a.Dot(a)) }
func (a Vec3) Mul(b Vec3) Vec3 { return Vec3{a.X * b.X, a.Y * b.Y, a.Z * b.Z} }
func (a Vec3) Lerp(b Vec3, t float64) Vec3 { return a.Add(b.Sub(a).Scale(t)) }

// Component returns the value along axis.
func (a Vec3) Component(axis Axis) float64 {
	switch axis {
	case AxisX:
		return a.X
	case AxisY:
		return a.Y
	default:
		return a.Z
	}
}

// WithComponent returns a copy with the value along axis replaced.
func (a Vec3) WithComponent(axis Axis, v float64) Vec3 {
	switch axis {
	case AxisX:
		a.X = v
	case AxisY:
		a.Y = v
	default:
		a.Z = v
	}
	return a
}

func (a Vec3) IsValid() bool {
	for _, v := range [3]float64{a.X, a.Y, a.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (a Vec3) String() string {
	return fmt.Sprintf("(%.4g, %.4g, %.4g)", a.X, a.Y, a.Z)
}

// Dims is the integer size of a cell lattice.
type Dims struct {
	X, Y, Z int
}

func (d Dims) Cells() int { return d.X * d.Y * d.Z }
func (d Dims) Valid() bool { return d.X > 0 && d.Y > 0 && d.Z > 0 }
func (d Dims) Vec() Vec3 { return Vec3{float64(d.X), float64(d.Y), float64(d.Z)} }
func (d Dims) String() string {
	return fmt.Sprintf("%dx%dx%d", d.X, d.Y, d.Z)
}

// Along returns the size along axis.
func (d Dims) Along(axis Axis) int {
	switch axis {
	case AxisX:
		return d.X
	case AxisY:
		return d.Y
	default:
		return d.Z
	}
}
