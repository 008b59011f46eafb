package rendering

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"hexplanet/core"
)

// OrbitCamera circles the planet at a distance, looking at its center.
// The planet has radius 1 in camera space.
type OrbitCamera struct {
	Distance float32
	Yaw      float32
	Pitch    float32
	Width    int
	Height   int
}

// NewOrbitCamera starts three radii out on the +Z axis.
func NewOrbitCamera(width, height int) *OrbitCamera {
	return &OrbitCamera{Distance: 3, Width: width, Height: height}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() mgl32.Vec3 {
	cp, sp := float32(math.Cos(float64(c.Pitch))), float32(math.Sin(float64(c.Pitch)))
	cy, sy := float32(math.Cos(float64(c.Yaw))), float32(math.Sin(float64(c.Yaw)))
	return mgl32.Vec3{c.Distance * cp * sy, c.Distance * sp, c.Distance * cp * cy}
}

// View is the look-at matrix toward the origin.
func (c *OrbitCamera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
}

// Projection is a 45° perspective for the current viewport.
func (c *OrbitCamera) Projection() mgl32.Mat4 {
	aspect := float32(1)
	if c.Height > 0 {
		aspect = float32(c.Width) / float32(c.Height)
	}
	return mgl32.Perspective(mgl32.DegToRad(45), aspect, 0.01, 100)
}

// Resize updates the viewport.
func (c *OrbitCamera) Resize(width, height int) {
	c.Width, c.Height = width, height
}

// Rotate turns the camera by a mouse drag in pixels. Closer cameras turn
// slower so the surface follows the cursor.
func (c *OrbitCamera) Rotate(dx, dy float32) {
	sensitivity := 0.004 * (c.Distance - 1)
	c.Yaw -= dx * sensitivity
	c.Pitch = mgl32.Clamp(c.Pitch+dy*sensitivity, -1.5, 1.5)
}

// Zoom moves the camera by a scroll offset, never inside the planet.
func (c *OrbitCamera) Zoom(offset float32) {
	c.Distance = mgl32.Clamp(c.Distance*(1-offset*0.1), 1.2, 20)
}

// Ray returns the world-space ray through a window pixel.
func (c *OrbitCamera) Ray(x, y float64) (origin, dir mgl32.Vec3) {
	nx := 2*float32(x)/float32(c.Width) - 1
	ny := 1 - 2*float32(y)/float32(c.Height)
	inv := c.Projection().Mul4(c.View()).Inv()

	near := inv.Mul4x1(mgl32.Vec4{nx, ny, -1, 1})
	far := inv.Mul4x1(mgl32.Vec4{nx, ny, 1, 1})
	near = near.Mul(1 / near[3])
	far = far.Mul(1 / far[3])
	return near.Vec3(), far.Vec3().Sub(near.Vec3()).Normalize()
}

// RaySphere returns the nearest intersection of a ray with a sphere at the
// origin.
func RaySphere(origin, dir mgl32.Vec3, radius float32) (mgl32.Vec3, bool) {
	b := 2 * origin.Dot(dir)
	cc := origin.Dot(origin) - radius*radius
	disc := b*b - 4*dir.Dot(dir)*cc
	if disc < 0 {
		return mgl32.Vec3{}, false
	}
	sq := float32(math.Sqrt(float64(disc)))
	a2 := 2 * dir.Dot(dir)
	t := (-b - sq) / a2
	if t < 0 {
		t = (-b + sq) / a2
	}
	if t < 0 {
		return mgl32.Vec3{}, false
	}
	return origin.Add(dir.Mul(t)), true
}

// PickCell returns the cell under a window pixel, or core.NoCell.
func (c *OrbitCamera) PickCell(grid *core.Grid, x, y float64) int {
	origin, dir := c.Ray(x, y)
	hit, ok := RaySphere(origin, dir, 1)
	if !ok {
		return core.NoCell
	}
	return grid.CellContaining(core.Vector3{X: float64(hit[0]), Y: float64(hit[1]), Z: float64(hit[2])})
}
