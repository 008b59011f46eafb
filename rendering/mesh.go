package rendering

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"hexplanet/core"
	"hexplanet/simulation"
)

// HeightScale exaggerates relief when displacing cells from the unit sphere.
const HeightScale = 0.08

// CellRadius is the display radius of a cell of the given height.
func CellRadius(height, seaLevel float64) float64 {
	return 1 + (height-seaLevel)*HeightScale
}

// Radii returns the display radius of every cell.
func Radii(heights []float64, seaLevel float64) []float64 {
	out := make([]float64, len(heights))
	for i, h := range heights {
		out[i] = CellRadius(h, seaLevel)
	}
	return out
}

// Mesh is a triangle fan per cell: the center vertex followed by the
// cell's corners. Every vertex belongs to exactly one cell.
type Mesh struct {
	Vertices    [][3]float32
	Indices     []uint32
	VertexCells []int32
	// First vertex of every cell; the cell's vertices run to the next entry.
	CellStart []int32
}

// BuildMesh tessellates the grid into flat cell polygons on the unit sphere.
func BuildMesh(grid *core.Grid) Mesh {
	n := grid.NumCells()
	m := Mesh{
		Vertices:    make([][3]float32, 0, n*7),
		Indices:     make([]uint32, 0, n*18),
		VertexCells: make([]int32, 0, n*7),
		CellStart:   make([]int32, n+1),
	}
	for cell := 0; cell < n; cell++ {
		base := uint32(len(m.Vertices))
		m.CellStart[cell] = int32(base)

		m.Vertices = append(m.Vertices, vec(grid.Position(cell)))
		m.VertexCells = append(m.VertexCells, int32(cell))
		corners := grid.Corners(cell)
		for _, c := range corners {
			m.Vertices = append(m.Vertices, vec(c))
			m.VertexCells = append(m.VertexCells, int32(cell))
		}
		for i := range corners {
			next := (i + 1) % len(corners)
			m.Indices = append(m.Indices, base, base+1+uint32(i), base+1+uint32(next))
		}
	}
	m.CellStart[n] = int32(len(m.Vertices))
	return m
}

// Displaced returns the mesh vertices scaled by their cell's radius.
func (m Mesh) Displaced(radii []float64) [][3]float32 {
	out := make([][3]float32, len(m.Vertices))
	for i, v := range m.Vertices {
		r := float32(radii[m.VertexCells[i]])
		out[i] = [3]float32{v[0] * r, v[1] * r, v[2] * r}
	}
	return out
}

// VertexColors expands per-cell colours to every vertex as RGBA floats.
func (m Mesh) VertexColors(cells []rl.Color) [][4]float32 {
	out := make([][4]float32, len(m.Vertices))
	for i := range out {
		c := cells[m.VertexCells[i]]
		out[i] = [4]float32{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255, float32(c.A) / 255}
	}
	return out
}

func vec(v core.Vector3) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

// BoundaryData is one plate boundary edge for display.
type BoundaryData struct {
	Type  string `json:"type"`
	Cells [2]int `json:"cells"`
	Color string `json:"color"`
}

func boundaryColor(t simulation.BoundaryType) string {
	switch t {
	case simulation.Convergent:
		return "#ff0000"
	case simulation.Divergent:
		return "#0000ff"
	default:
		return "#ffff00"
	}
}

// Boundaries converts simulator boundaries to display records.
func Boundaries(bs []simulation.Boundary) []BoundaryData {
	out := make([]BoundaryData, len(bs))
	for i, b := range bs {
		out[i] = BoundaryData{Type: b.Type.String(), Cells: [2]int{b.A, b.B}, Color: boundaryColor(b.Type)}
	}
	return out
}

// MeshData is the initial payload sent to a viewer: the static cell mesh
// plus the current state.
type MeshData struct {
	Type        string       `json:"type"`
	Level       int          `json:"level"`
	Vertices    [][3]float32 `json:"vertices"`
	Indices     []uint32     `json:"indices"`
	VertexCells []int32      `json:"vertexCells"`
	State
}

// State is the per-step payload: one entry per cell.
type State struct {
	Step       int            `json:"step"`
	Paused     bool           `json:"paused"`
	Heights    []float64      `json:"heights"`
	Radii      []float64      `json:"radii"`
	PlateIDs   []int          `json:"plateIds"`
	Colors     [][4]uint8     `json:"colors"`
	Boundaries []BoundaryData `json:"boundaries,omitempty"`
	TotalMass  float64        `json:"totalMass"`
}

// StateUpdate wraps a State for the stream.
type StateUpdate struct {
	Type string `json:"type"`
	State
}

// NewState builds the per-step payload from a snapshot.
func NewState(snap *simulation.Snapshot, mode ColorMode, palette []rl.Color, seaLevel float64, boundaries []simulation.Boundary) State {
	heights := snap.Heights()
	plates := snap.PlateIDs()
	colors := CellColors(mode, heights, plates, palette, seaLevel)
	packed := make([][4]uint8, len(colors))
	for i, c := range colors {
		packed[i] = [4]uint8{c.R, c.G, c.B, c.A}
	}
	return State{
		Step:       snap.Step,
		Heights:    heights,
		Radii:      Radii(heights, seaLevel),
		PlateIDs:   plates,
		Colors:     packed,
		Boundaries: Boundaries(boundaries),
		TotalMass:  snap.TotalMass(),
	}
}

// NewMeshData builds the initial payload for a grid and state.
func NewMeshData(grid *core.Grid, mesh Mesh, state State) MeshData {
	return MeshData{
		Type:        "mesh",
		Level:       grid.Level(),
		Vertices:    mesh.Vertices,
		Indices:     mesh.Indices,
		VertexCells: mesh.VertexCells,
		State:       state,
	}
}
