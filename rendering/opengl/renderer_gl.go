package opengl

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"hexplanet/core"
	"hexplanet/rendering"
	"hexplanet/simulation"
)

// Source is what the renderer reads snapshots from and sends controls to.
// *simulation.Engine satisfies it.
type Source interface {
	Current() *simulation.Snapshot
	Pause()
	Resume()
	Paused() bool
	StepOnce()
}

// PlanetRenderer draws the cell mesh of a running simulation in a native
// window. All methods must be called from the goroutine that created it.
type PlanetRenderer struct {
	window *glfw.Window
	log    *slog.Logger

	program    uint32
	mvpLoc     int32
	vao        uint32
	positionVB uint32
	colorVB    uint32
	indexBuf   uint32
	indexCount int32

	grid     *core.Grid
	mesh     rendering.Mesh
	seaLevel float64
	palette  []rl.Color
	mode     rendering.ColorMode
	drawn    int // step of the uploaded snapshot
	dirty    bool

	camera     *rendering.OrbitCamera
	mouseDown  bool
	lastMouseX float64
	lastMouseY float64
	src        Source
}

// NewPlanetRenderer opens a window and uploads the static cell mesh.
func NewPlanetRenderer(width, height int, grid *core.Grid, seaLevel float64, palette []rl.Color, logger *slog.Logger) (*PlanetRenderer, error) {
	runtime.LockOSThread()
	if logger == nil {
		logger = slog.Default()
	}

	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("initializing GLFW: %w", err)
	}
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	window, err := glfw.CreateWindow(width, height, "hexplanet", nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("creating window: %w", err)
	}
	window.MakeContextCurrent()
	glfw.SwapInterval(1)

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("initializing OpenGL: %w", err)
	}
	logger.Info("opengl ready", "version", gl.GoStr(gl.GetString(gl.VERSION)))

	program, err := newProgram(tileVertexShader, tileFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("compiling tile shaders: %w", err)
	}

	fbWidth, fbHeight := window.GetFramebufferSize()
	r := &PlanetRenderer{
		window:   window,
		log:      logger,
		program:  program,
		mvpLoc:   gl.GetUniformLocation(program, gl.Str("mvp\x00")),
		grid:     grid,
		mesh:     rendering.BuildMesh(grid),
		seaLevel: seaLevel,
		palette:  palette,
		drawn:    -1,
		camera:   rendering.NewOrbitCamera(fbWidth, fbHeight),
	}

	gl.Enable(gl.DEPTH_TEST)
	gl.Enable(gl.CULL_FACE)
	gl.ClearColor(0.05, 0.05, 0.1, 1.0)
	gl.Viewport(0, 0, int32(fbWidth), int32(fbHeight))
	r.createBuffers()

	window.SetFramebufferSizeCallback(func(_ *glfw.Window, w, h int) { r.onResize(w, h) })
	window.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		r.onKey(key, action)
	})
	window.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		r.camera.Zoom(float32(yoff))
	})
	window.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		r.onMouseButton(button, action)
	})
	window.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) { r.onMouseMove(x, y) })
	return r, nil
}

func (r *PlanetRenderer) createBuffers() {
	gl.GenVertexArrays(1, &r.vao)
	gl.BindVertexArray(r.vao)

	gl.GenBuffers(1, &r.positionVB)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.positionVB)
	gl.BufferData(gl.ARRAY_BUFFER, len(r.mesh.Vertices)*3*4, gl.Ptr(r.mesh.Vertices), gl.DYNAMIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, 3*4, 0)

	gl.GenBuffers(1, &r.colorVB)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.colorVB)
	gl.BufferData(gl.ARRAY_BUFFER, len(r.mesh.Vertices)*4*4, nil, gl.DYNAMIC_DRAW)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(1, 4, gl.FLOAT, false, 4*4, 0)

	gl.GenBuffers(1, &r.indexBuf)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, r.indexBuf)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(r.mesh.Indices)*4, gl.Ptr(r.mesh.Indices), gl.STATIC_DRAW)
	r.indexCount = int32(len(r.mesh.Indices))

	gl.BindVertexArray(0)
}

// upload pushes displaced positions and cell colours of a snapshot.
func (r *PlanetRenderer) upload(snap *simulation.Snapshot) {
	heights := snap.Heights()
	positions := r.mesh.Displaced(rendering.Radii(heights, r.seaLevel))
	colors := r.mesh.VertexColors(rendering.CellColors(r.mode, heights, snap.PlateIDs(), r.palette, r.seaLevel))

	gl.BindBuffer(gl.ARRAY_BUFFER, r.positionVB)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(positions)*3*4, gl.Ptr(positions))
	gl.BindBuffer(gl.ARRAY_BUFFER, r.colorVB)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(colors)*4*4, gl.Ptr(colors))

	r.drawn = snap.Step
	r.dirty = false
}

// Run draws frames until the window closes or ctx is done.
func (r *PlanetRenderer) Run(ctx context.Context, src Source) error {
	r.src = src
	frames, last := 0, time.Now()
	for !r.window.ShouldClose() {
		if ctx.Err() != nil {
			return nil
		}
		glfw.PollEvents()

		if snap := src.Current(); snap != nil && (snap.Step != r.drawn || r.dirty) {
			r.upload(snap)
		}
		r.render()

		frames++
		if since := time.Since(last); since >= 5*time.Second {
			r.log.Debug("render stats", "fps", float64(frames)/since.Seconds(), "step", r.drawn)
			frames, last = 0, time.Now()
		}
	}
	return nil
}

func (r *PlanetRenderer) render() {
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	gl.UseProgram(r.program)

	mvp := r.camera.Projection().Mul4(r.camera.View())
	gl.UniformMatrix4fv(r.mvpLoc, 1, false, &mvp[0])

	gl.BindVertexArray(r.vao)
	gl.DrawElementsWithOffset(gl.TRIANGLES, r.indexCount, gl.UNSIGNED_INT, 0)
	gl.BindVertexArray(0)

	if err := gl.GetError(); err != gl.NO_ERROR {
		r.log.Warn("opengl error", "code", fmt.Sprintf("0x%x", err))
	}
	r.window.SwapBuffers()
}

func (r *PlanetRenderer) onResize(width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
	r.camera.Resize(width, height)
}

func (r *PlanetRenderer) onKey(key glfw.Key, action glfw.Action) {
	if action != glfw.Press || r.src == nil {
		return
	}
	switch key {
	case glfw.KeyEscape:
		r.window.SetShouldClose(true)
	case glfw.KeyP:
		if r.src.Paused() {
			r.src.Resume()
			r.log.Info("simulation resumed")
		} else {
			r.src.Pause()
			r.log.Info("simulation paused")
		}
	case glfw.KeySpace, glfw.KeyN:
		r.src.StepOnce()
	case glfw.Key1:
		r.mode, r.dirty = rendering.ColorByHeight, true
	case glfw.Key2:
		r.mode, r.dirty = rendering.ColorByPlate, true
	}
}

func (r *PlanetRenderer) onMouseButton(button glfw.MouseButton, action glfw.Action) {
	if button != glfw.MouseButtonLeft {
		return
	}
	if action == glfw.Release {
		r.mouseDown = false
		return
	}
	r.mouseDown = true
	r.lastMouseX, r.lastMouseY = r.window.GetCursorPos()
	r.logPick(r.lastMouseX, r.lastMouseY)
}

// logPick reports the cell under the cursor.
func (r *PlanetRenderer) logPick(x, y float64) {
	if r.src == nil {
		return
	}
	// Cursor positions are in window coordinates; the camera works in
	// framebuffer pixels.
	w, _ := r.window.GetSize()
	fw, _ := r.window.GetFramebufferSize()
	scale := float64(fw) / float64(max(w, 1))

	cell := r.camera.PickCell(r.grid, x*scale, y*scale)
	snap := r.src.Current()
	if cell == core.NoCell || snap == nil {
		return
	}
	c := snap.Cells[cell]
	r.log.Info("cell picked",
		"cell", cell,
		"plate", c.Plate,
		"height", c.Height,
		"thickness", c.Thickness,
		"density", c.Density,
		"created_at", c.CreatedAt,
	)
}

func (r *PlanetRenderer) onMouseMove(x, y float64) {
	if !r.mouseDown {
		return
	}
	r.camera.Rotate(float32(x-r.lastMouseX), float32(y-r.lastMouseY))
	r.lastMouseX, r.lastMouseY = x, y
}

// Terminate releases GL resources and closes the window.
func (r *PlanetRenderer) Terminate() {
	gl.DeleteProgram(r.program)
	gl.DeleteBuffers(1, &r.positionVB)
	gl.DeleteBuffers(1, &r.colorVB)
	gl.DeleteBuffers(1, &r.indexBuf)
	gl.DeleteVertexArrays(1, &r.vao)
	r.window.Destroy()
	glfw.Terminate()
}
