package rendering

import (
	"github.com/go-gl/mathgl/mgl32"

	"hexplanet/core"
)

// DefaultFillRatio leaves a thin gap between neighbouring tiles.
const DefaultFillRatio = 0.95

// TileTransforms returns a model matrix per cell for instanced tile
// drawing. The tile's Z axis is the cell direction, its Y axis points at the
// first neighbour projected onto the tangent plane, and it is scaled to the
// cell's inner radius times fillRatio.
func TileTransforms(grid *core.Grid, radii []float64, fillRatio float64) []mgl32.Mat4 {
	out := make([]mgl32.Mat4, grid.NumCells())
	for cell := range out {
		p := grid.Position(cell)
		z := toVec3(p)

		n := grid.Position(grid.Neighbors(cell)[0])
		y := toVec3(n.Sub(p.Scale(n.Dot(p))).Normalize())
		x := y.Cross(z)

		r := 1.0
		if radii != nil {
			r = radii[cell]
		}
		s := float32(grid.InnerRadius(cell) * fillRatio * r)

		rot := mgl32.Mat4FromCols(x.Vec4(0), y.Vec4(0), z.Vec4(0), mgl32.Vec4{0, 0, 0, 1})
		out[cell] = mgl32.Translate3D(z[0]*float32(r), z[1]*float32(r), z[2]*float32(r)).
			Mul4(rot).
			Mul4(mgl32.Scale3D(s, s, s))
	}
	return out
}

func toVec3(v core.Vector3) mgl32.Vec3 {
	return mgl32.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}
