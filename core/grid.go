package core

import (
	"fmt"
	"math"
	"sort"
)

// NoCell marks a missing cell or an unowned location.
const NoCell = -1

// Coord is an axial address of a lattice point on one of the ten rhombic
// faces of the unwrapped icosahedron. U runs from the obtuse corner O towards
// the acute corner A, V from O towards the acute corner B; (f, f) is the
// second obtuse corner C.
type Coord struct {
	Face int
	U, V int
}

// W is the third axial component, so that U - V + W == 0.
func (c Coord) W() int { return c.V - c.U }

// neighborOffsets are the six lattice steps around a point, counter-clockwise
// on a face seen from outside the sphere.
var neighborOffsets = [6][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 0}, {-1, -1}, {0, -1}}

const (
	faceCount     = 10
	icoVertexCnt  = 12
	icoTriangleCn = 20
)

// rhombus is a pair of icosahedron triangles (O, A, C) and (O, C, B) sharing
// the O-C edge; the values are icosahedron vertex ids.
type rhombus struct {
	o, a, b, c int
}

type triangle struct {
	face  int
	upper bool   // (O, A, C) half when true, (O, B, C) otherwise
	v     [3]int // O, A or B, C
}

// latticeKey identifies a lattice point by its integer barycentric weights
// over the icosahedron vertices it lies between. Shared points of
// neighboring faces produce equal keys.
type latticeKey [3][2]int32

// Grid is an immutable hex-dominant geodesic grid. All methods are safe for
// concurrent use.
type Grid struct {
	level int
	freq  int

	positions []Vector3
	neighbors [][]int
	aliases   [][]Coord
	lattice   []int

	ico             [icoVertexCnt]Vector3
	faces           [faceCount]rhombus
	triangles       [icoTriangleCn]triangle
	vertexTriangles [icoVertexCnt][]int
	vertexCell      [icoVertexCnt]int
}

// CellCount returns the number of cells at a subdivision level: 10·f² + 2
// with f = 2^(level+1).
func CellCount(level int) int {
	f := 1 << (level + 1)
	return 10*f*f + 2
}

// BuildGrid builds the grid for a subdivision level. The result depends only
// on level. A negative level is a caller bug and panics.
func BuildGrid(level int) *Grid {
	if level < 0 {
		panic(fmt.Sprintf("core: negative subdivision level %d", level))
	}

	f := 1 << (level + 1)
	g := &Grid{
		level: level,
		freq:  f,
		ico:   icosahedron(),
		faces: rhombi(),
	}

	n := CellCount(level)
	side := f + 1
	g.lattice = make([]int, faceCount*side*side)
	g.positions = make([]Vector3, 0, n)
	g.aliases = make([][]Coord, 0, n)

	index := make(map[latticeKey]int, n)
	for face := 0; face < faceCount; face++ {
		r := g.faces[face]
		for i := 0; i <= f; i++ {
			for j := 0; j <= f; j++ {
				key := r.key(i, j, f)
				cell, ok := index[key]
				if !ok {
					cell = len(g.positions)
					index[key] = cell
					g.positions = append(g.positions, r.point(&g.ico, i, j, f).Normalize())
					g.aliases = append(g.aliases, nil)
				}
				g.aliases[cell] = append(g.aliases[cell], Coord{Face: face, U: i, V: j})
				g.lattice[g.latticeIndex(face, i, j)] = cell
			}
		}
	}

	g.neighbors = make([][]int, len(g.positions))
	for cell, coords := range g.aliases {
		var list []int
		for _, c := range coords {
			for _, off := range neighborOffsets {
				nb, ok := g.CellAt(Coord{Face: c.Face, U: c.U + off[0], V: c.V + off[1]})
				if !ok || nb == cell || containsInt(list, nb) {
					continue
				}
				list = append(list, nb)
			}
		}
		g.neighbors[cell] = g.sortCCW(cell, list)
	}

	g.buildTriangles()
	return g
}

func icosahedron() [icoVertexCnt]Vector3 {
	var v [icoVertexCnt]Vector3
	ringLat := math.Atan(0.5)
	v[0] = Vector3{0, 1, 0}
	for k := 0; k < 5; k++ {
		v[1+k] = GeographicToCartesian(Geographic{Lat: ringLat, Lon: DegreesToRadians(72 * float64(k))}, 1)
		v[6+k] = GeographicToCartesian(Geographic{Lat: -ringLat, Lon: DegreesToRadians(72*float64(k) + 36)}, 1)
	}
	v[11] = Vector3{0, -1, 0}
	return v
}

// rhombi lays out the ten faces: vertex 0 is the north pole, 1-5 the upper
// ring, 6-10 the lower ring and 11 the south pole.
func rhombi() [faceCount]rhombus {
	var r [faceCount]rhombus
	for k := 0; k < 5; k++ {
		next := (k + 1) % 5
		r[k] = rhombus{o: 1 + k, a: 0, b: 6 + k, c: 1 + next}
		r[5+k] = rhombus{o: 6 + k, a: 1 + next, b: 11, c: 6 + next}
	}
	return r
}

// point is the planar lattice position before projection. Out of range
// (i, j) extrapolate the face's affine frame.
func (r rhombus) point(ico *[icoVertexCnt]Vector3, i, j, f int) Vector3 {
	o := ico[r.o]
	ff := float64(f)
	if i >= j {
		return o.Add(ico[r.a].Sub(o).Scale(float64(i-j) / ff)).Add(ico[r.c].Sub(o).Scale(float64(j) / ff))
	}
	return o.Add(ico[r.b].Sub(o).Scale(float64(j-i) / ff)).Add(ico[r.c].Sub(o).Scale(float64(i) / ff))
}

func (r rhombus) key(i, j, f int) latticeKey {
	var pairs [3][2]int32
	if i >= j {
		pairs = [3][2]int32{{int32(r.o), int32(f - i)}, {int32(r.a), int32(i - j)}, {int32(r.c), int32(j)}}
	} else {
		pairs = [3][2]int32{{int32(r.o), int32(f - j)}, {int32(r.b), int32(j - i)}, {int32(r.c), int32(i)}}
	}

	var key latticeKey
	n := 0
	for _, p := range pairs {
		if p[1] != 0 {
			key[n] = p
			n++
		}
	}
	for ; n < len(key); n++ {
		key[n] = [2]int32{-1, 0}
	}
	sort.Slice(key[:], func(a, b int) bool { return key[a][0] < key[b][0] })
	return key
}

func (g *Grid) buildTriangles() {
	for face, r := range g.faces {
		g.triangles[2*face] = triangle{face: face, upper: true, v: [3]int{r.o, r.a, r.c}}
		g.triangles[2*face+1] = triangle{face: face, upper: false, v: [3]int{r.o, r.b, r.c}}
	}
	for t, tri := range g.triangles {
		for _, v := range tri.v {
			g.vertexTriangles[v] = append(g.vertexTriangles[v], t)
		}
	}
	for v := range g.ico {
		g.vertexCell[v] = g.nearestOf(g.ico[v], 0)
	}
}

// sortCCW orders neighbors counter-clockwise around the cell as seen from
// outside the sphere, starting at the lowest index.
func (g *Grid) sortCCW(cell int, nbs []int) []int {
	if len(nbs) < 2 {
		return nbs
	}
	p := g.positions[cell]
	ref := g.positions[nbs[0]]
	e1 := ref.Sub(p.Scale(p.Dot(ref))).Normalize()
	e2 := p.Cross(e1)

	angles := make(map[int]float64, len(nbs))
	for _, n := range nbs {
		d := g.positions[n].Sub(p)
		angles[n] = math.Atan2(d.Dot(e2), d.Dot(e1))
	}
	sort.Slice(nbs, func(a, b int) bool { return angles[nbs[a]] < angles[nbs[b]] })

	lowest := 0
	for i, n := range nbs {
		if n < nbs[lowest] {
			lowest = i
		}
	}
	out := make([]int, 0, len(nbs))
	out = append(out, nbs[lowest:]...)
	return append(out, nbs[:lowest]...)
}

func (g *Grid) latticeIndex(face, i, j int) int {
	side := g.freq + 1
	return face*side*side + i*side + j
}

// Level returns the subdivision level the grid was built with.
func (g *Grid) Level() int { return g.level }

// Frequency returns the number of lattice steps along an icosahedron edge.
func (g *Grid) Frequency() int { return g.freq }

// NumCells returns the number of cells.
func (g *Grid) NumCells() int { return len(g.positions) }

// Position returns the unit direction of a cell.
func (g *Grid) Position(cell int) Vector3 { return g.positions[cell] }

// Neighbors returns the 5 or 6 neighbors of a cell in counter-clockwise
// order. The slice is shared and must not be modified.
func (g *Grid) Neighbors(cell int) []int { return g.neighbors[cell] }

// IsPentagon reports whether the cell sits on an icosahedron vertex.
func (g *Grid) IsPentagon(cell int) bool { return len(g.neighbors[cell]) == 5 }

// Aliases returns every axial coordinate addressing the cell.
func (g *Grid) Aliases(cell int) []Coord { return g.aliases[cell] }

// CellAt resolves an in-range axial coordinate.
func (g *Grid) CellAt(c Coord) (int, bool) {
	if c.Face < 0 || c.Face >= faceCount || c.U < 0 || c.U > g.freq || c.V < 0 || c.V > g.freq {
		return NoCell, false
	}
	return g.lattice[g.latticeIndex(c.Face, c.U, c.V)], true
}

// Offset steps from a coordinate by (du, dv). Steps that leave the face
// follow the face's frame onto the sphere: unit steps resolve to the
// neighbor in that direction, longer ones to the cell containing the
// extrapolated point.
func (g *Grid) Offset(c Coord, du, dv int) (int, bool) {
	from, ok := g.CellAt(c)
	if !ok {
		return NoCell, false
	}
	if cell, ok := g.CellAt(Coord{Face: c.Face, U: c.U + du, V: c.V + dv}); ok {
		return cell, true
	}
	if du == 0 && dv == 0 {
		return from, true
	}

	p := g.faces[c.Face].point(&g.ico, c.U+du, c.V+dv, g.freq).Normalize()
	if p == (Vector3{}) {
		return NoCell, false
	}
	if abs(du) <= 1 && abs(dv) <= 1 {
		best, bestDot := NoCell, math.Inf(-1)
		for _, n := range g.neighbors[from] {
			if d := g.positions[n].Dot(p); d > bestDot {
				best, bestDot = n, d
			}
		}
		return best, true
	}
	return g.CellContaining(p), true
}

// CellContaining maps a point to the cell whose center is nearest to its
// direction. Equidistant candidates resolve to the lowest index, so repeated
// queries return the same cell. The zero vector maps to cell 0.
func (g *Grid) CellContaining(point Vector3) int {
	p := point.Normalize()
	if p == (Vector3{}) {
		return 0
	}
	return g.nearestOf(p, g.latticeGuess(p))
}

// latticeGuess finds the icosahedron triangle hit by the ray through p and
// rounds the projected face coordinates to a lattice point.
func (g *Grid) latticeGuess(p Vector3) int {
	nearest, bestDot := 0, math.Inf(-1)
	for v := range g.ico {
		if d := g.ico[v].Dot(p); d > bestDot {
			nearest, bestDot = v, d
		}
	}

	tri, w := g.enclosingTriangle(p, g.vertexTriangles[nearest])
	if tri < 0 {
		all := make([]int, icoTriangleCn)
		for i := range all {
			all[i] = i
		}
		if tri, w = g.enclosingTriangle(p, all); tri < 0 {
			return g.vertexCell[nearest]
		}
	}

	t := g.triangles[tri]
	f := float64(g.freq)
	var fi, fj float64
	if t.upper {
		fi, fj = f*(w[1]+w[2]), f*w[2]
	} else {
		fi, fj = f*w[2], f*(w[1]+w[2])
	}

	best, bestDot := NoCell, math.Inf(-1)
	for _, i := range [2]float64{math.Floor(fi), math.Ceil(fi)} {
		for _, j := range [2]float64{math.Floor(fj), math.Ceil(fj)} {
			cell, ok := g.CellAt(Coord{Face: t.face, U: clampInt(int(i), 0, g.freq), V: clampInt(int(j), 0, g.freq)})
			if !ok {
				continue
			}
			d := g.positions[cell].Dot(p)
			if d > bestDot || (d == bestDot && cell < best) {
				best, bestDot = cell, d
			}
		}
	}
	return best
}

// enclosingTriangle picks, among candidates, the triangle whose ray
// barycentric weights are all non-negative, preferring the most interior one.
func (g *Grid) enclosingTriangle(p Vector3, candidates []int) (int, [3]float64) {
	const eps = 1e-9
	best, bestMin := -1, math.Inf(-1)
	var bestW [3]float64
	for _, t := range candidates {
		w, ok := g.barycentric(t, p)
		if !ok {
			continue
		}
		m := math.Min(w[0], math.Min(w[1], w[2]))
		if m < -eps {
			continue
		}
		if m > bestMin {
			best, bestMin, bestW = t, m, w
		}
	}
	return best, bestW
}

func (g *Grid) barycentric(t int, p Vector3) ([3]float64, bool) {
	v := g.triangles[t].v
	a, b, c := g.ico[v[0]], g.ico[v[1]], g.ico[v[2]]
	det := a.Dot(b.Cross(c))
	if math.Abs(det) < 1e-15 {
		return [3]float64{}, false
	}
	alpha := p.Dot(b.Cross(c)) / det
	beta := a.Dot(p.Cross(c)) / det
	gamma := a.Dot(b.Cross(p)) / det
	s := alpha + beta + gamma
	if s <= 0 {
		return [3]float64{}, false
	}
	return [3]float64{alpha / s, beta / s, gamma / s}, true
}

// nearestOf walks greedily from start towards p until no neighbor is
// closer. Each move strictly improves (dot, -index) so the walk terminates.
func (g *Grid) nearestOf(p Vector3, start int) int {
	cell := start
	best := g.positions[cell].Dot(p)
	for {
		next := cell
		for _, n := range g.neighbors[cell] {
			d := g.positions[n].Dot(p)
			if d > best || (d == best && n < next) {
				best, next = d, n
			}
		}
		if next == cell {
			return cell
		}
		cell = next
	}
}

// CellsWithin returns the cells at most rings steps from cell, in
// breadth-first order starting with cell itself.
func (g *Grid) CellsWithin(cell, rings int) []int {
	visited := map[int]bool{cell: true}
	out := []int{cell}
	frontier := []int{cell}
	for r := 0; r < rings && len(frontier) > 0; r++ {
		var next []int
		for _, c := range frontier {
			for _, n := range g.neighbors[c] {
				if visited[n] {
					continue
				}
				visited[n] = true
				out = append(out, n)
				next = append(next, n)
			}
		}
		frontier = next
	}
	return out
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
