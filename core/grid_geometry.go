package core

import (
	"math"

	"github.com/golang/geo/s2"
)

// Corners returns the polygon corners of a cell, counter-clockwise. Each
// corner is the projected centroid of the cell and two consecutive neighbors.
func (g *Grid) Corners(cell int) []Vector3 {
	p := g.positions[cell]
	nbs := g.neighbors[cell]
	corners := make([]Vector3, len(nbs))
	for i, n := range nbs {
		next := nbs[(i+1)%len(nbs)]
		corners[i] = p.Add(g.positions[n]).Add(g.positions[next]).Normalize()
	}
	return corners
}

// CellArea returns the spherical area of a cell on the unit sphere.
func (g *Grid) CellArea(cell int) float64 {
	center := g.positions[cell].Point()
	corners := g.Corners(cell)
	area := 0.0
	for i := range corners {
		area += s2.PointArea(center, corners[i].Point(), corners[(i+1)%len(corners)].Point())
	}
	return area
}

// SurfaceArea sums the cell areas on a sphere of the given radius.
func (g *Grid) SurfaceArea(radius float64) float64 {
	total := 0.0
	for cell := range g.positions {
		total += g.CellArea(cell)
	}
	return total * radius * radius
}

// Volume returns the volume enclosed by the flat cell polygons scaled to
// radius. It approaches 4/3·π·r³ as the level increases.
func (g *Grid) Volume(radius float64) float64 {
	total := 0.0
	for cell, p := range g.positions {
		corners := g.Corners(cell)
		for i := range corners {
			a, b := corners[i], corners[(i+1)%len(corners)]
			total += math.Abs(p.Dot(a.Cross(b))) / 6
		}
	}
	return total * radius * radius * radius
}

// Edges returns every adjacent cell pair once, lower index first.
func (g *Grid) Edges() [][2]int {
	edges := make([][2]int, 0, len(g.positions)*3)
	for cell, nbs := range g.neighbors {
		for _, n := range nbs {
			if cell < n {
				edges = append(edges, [2]int{cell, n})
			}
		}
	}
	return edges
}

// InnerRadius is half the shortest chord from the cell to a neighbor on the
// unit sphere.
func (g *Grid) InnerRadius(cell int) float64 {
	p := g.positions[cell]
	r := math.Inf(1)
	for _, n := range g.neighbors[cell] {
		r = math.Min(r, g.positions[n].Sub(p).Length()/2)
	}
	return r
}
