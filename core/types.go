package core

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
)

// Vector3 represents a 3D vector
type Vector3 struct {
	X, Y, Z float64
}

func (v Vector3) Add(other Vector3) Vector3 {
	return Vector3{v.X + other.X, v.Y + other.Y, v.Z + other.Z}
}

func (v Vector3) Sub(other Vector3) Vector3 {
	return Vector3{v.X - other.X, v.Y - other.Y, v.Z - other.Z}
}

func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vector3) Dot(other Vector3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

func (v Vector3) Cross(other Vector3) Vector3 {
	return Vector3{
		v.Y*other.Z - v.Z*other.Y,
		v.Z*other.X - v.X*other.Z,
		v.X*other.Y - v.Y*other.X,
	}
}

func (v Vector3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalize returns the unit vector; the zero vector stays zero.
func (v Vector3) Normalize() Vector3 {
	length := v.Length()
	if length == 0 {
		return Vector3{0, 0, 0}
	}
	return Vector3{v.X / length, v.Y / length, v.Z / length}
}

// Point converts to an s2 point for spherical predicates.
func (v Vector3) Point() s2.Point {
	return s2.Point{Vector: r3.Vector{X: v.X, Y: v.Y, Z: v.Z}}
}

// ArcDistance is the great-circle angle between two directions in radians.
func ArcDistance(a, b Vector3) float64 {
	return a.Normalize().Point().Distance(b.Normalize().Point()).Radians()
}

// RotateAround rotates v about the unit axis by angle radians (Rodrigues).
func RotateAround(v, axis Vector3, angle float64) Vector3 {
	k := axis.Normalize()
	if k == (Vector3{}) || angle == 0 {
		return v
	}
	cos, sin := math.Cos(angle), math.Sin(angle)
	return v.Scale(cos).
		Add(k.Cross(v).Scale(sin)).
		Add(k.Scale(k.Dot(v) * (1 - cos)))
}

// RotationBetween returns the axis and angle of the shortest rotation taking
// direction from onto direction to. Antiparallel inputs rotate about any
// perpendicular axis.
func RotationBetween(from, to Vector3) (Vector3, float64) {
	a, b := from.Normalize(), to.Normalize()
	dot := math.Max(-1, math.Min(1, a.Dot(b)))
	axis := a.Cross(b)
	if axis.Length() < 1e-12 {
		if dot > 0 {
			return Vector3{0, 1, 0}, 0
		}
		axis = a.Cross(Vector3{1, 0, 0})
		if axis.Length() < 1e-12 {
			axis = a.Cross(Vector3{0, 0, 1})
		}
	}
	return axis.Normalize(), math.Acos(dot)
}
