package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/gorilla/websocket"

	"hexplanet/config"
	"hexplanet/core"
	"hexplanet/rendering"
	"hexplanet/simulation"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:    1024,
	WriteBufferSize:   64 * 1024,
	EnableCompression: true,
	CheckOrigin: func(r *http.Request) bool {
		return true // viewers are served from anywhere during development
	},
}

// controlMessage is what viewers send over the socket.
type controlMessage struct {
	Action string `json:"action"` // pause, resume, step, mode
	Mode   string `json:"mode,omitempty"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Server streams the planet to websocket viewers.
type Server struct {
	cfg      config.ServerSettings
	engine   *simulation.Engine
	grid     *core.Grid
	mesh     rendering.Mesh
	palette  []rl.Color
	seaLevel float64
	log      *slog.Logger

	boundaries atomic.Pointer[[]simulation.Boundary]

	// closed gates clients.Add so it never races with the final Wait.
	mu      sync.Mutex
	closed  bool
	clients sync.WaitGroup
}

// NewServer prepares the static mesh and registers a hook that tracks
// plate boundaries. It must be called before the engine runs.
func NewServer(cfg config.ServerSettings, world *simulation.World, engine *simulation.Engine, palette []rl.Color, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		engine:   engine,
		grid:     world.Grid,
		mesh:     rendering.BuildMesh(world.Grid),
		palette:  palette,
		seaLevel: world.Sim.Model().SeaLevel,
		log:      logger,
	}
	initial := world.Sim.Boundaries()
	s.boundaries.Store(&initial)

	// Hooks run on the engine goroutine, the only one allowed to read sim.
	sim := world.Sim
	engine.OnStep(func(_ context.Context, _ *simulation.Snapshot, _ simulation.StepReport) error {
		b := sim.Boundaries()
		s.boundaries.Store(&b)
		return nil
	})
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.BindAddress, strconv.Itoa(s.cfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.stopAccepting()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	s.clients.Wait()
	s.log.Info("server stopped")
	return nil
}

type statusResponse struct {
	Step      int     `json:"step"`
	Paused    bool    `json:"paused"`
	Cells     int     `json:"cells"`
	Plates    int     `json:"plates"`
	TotalMass float64 `json:"totalMass"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Current()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusResponse{
		Step:      snap.Step,
		Paused:    s.engine.Paused(),
		Cells:     len(snap.Cells),
		Plates:    len(snap.Plates),
		TotalMass: snap.TotalMass(),
	})
}

// client is one viewer connection. Writes come from the stream loop and
// from control replies, so they share a mutex.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
	mode atomic.Int32
}

func (c *client) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

func (s *Server) state(snap *simulation.Snapshot, mode rendering.ColorMode) rendering.State {
	st := rendering.NewState(snap, mode, s.palette, s.seaLevel, *s.boundaries.Load())
	st.Paused = s.engine.Paused()
	return st
}

// acquire registers a viewer unless the server is shutting down.
func (s *Server) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients.Add(1)
	return true
}

// stopAccepting turns new viewers away; connected ones are unaffected.
func (s *Server) stopAccepting() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.acquire() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.clients.Done()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close()

	c := &client{conn: conn}
	log := s.log.With("remote", r.RemoteAddr)
	log.Info("viewer connected")
	defer log.Info("viewer disconnected")

	snaps, unsubscribe := s.engine.Subscribe()
	defer unsubscribe()

	first := s.engine.Current()
	if err := c.write(rendering.NewMeshData(s.grid, s.mesh, s.state(first, rendering.ColorByHeight))); err != nil {
		log.Warn("sending mesh failed", "err", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.stream(ctx, c, snaps, log)
	go func() {
		// Shutdown does not close hijacked connections; unblock the reader.
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var msg controlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket read ended", "err", err)
			}
			return
		}
		if err := s.control(c, msg); err != nil {
			log.Warn("bad control message", "action", msg.Action, "err", err)
			if werr := c.write(errorMessage{Type: "error", Error: err.Error()}); werr != nil {
				return
			}
		}
	}
}

// stream pushes a state update per published snapshot, at most one per
// update interval.
func (s *Server) stream(ctx context.Context, c *client, snaps <-chan *simulation.Snapshot, log *slog.Logger) {
	interval := time.Duration(s.cfg.UpdateIntervalMs) * time.Millisecond
	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-snaps:
			if wait := interval - time.Since(last); wait > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
				// a newer snapshot may have arrived while waiting
				select {
				case newer := <-snaps:
					snap = newer
				default:
				}
			}
			last = time.Now()
			mode := rendering.ColorMode(c.mode.Load())
			if err := c.write(rendering.StateUpdate{Type: "state", State: s.state(snap, mode)}); err != nil {
				log.Debug("state write failed", "err", err)
				c.conn.Close()
				return
			}
		}
	}
}

func (s *Server) control(c *client, msg controlMessage) error {
	switch msg.Action {
	case "pause":
		s.engine.Pause()
	case "resume":
		s.engine.Resume()
	case "step":
		s.engine.StepOnce()
	case "mode":
		switch msg.Mode {
		case "height":
			c.mode.Store(int32(rendering.ColorByHeight))
		case "plate":
			c.mode.Store(int32(rendering.ColorByPlate))
		default:
			return fmt.Errorf("unknown colour mode %q", msg.Mode)
		}
		return c.write(rendering.StateUpdate{Type: "state", State: s.state(s.engine.Current(), rendering.ColorMode(c.mode.Load()))})
	default:
		return fmt.Errorf("unknown action %q", msg.Action)
	}
	return nil
}
