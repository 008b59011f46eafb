package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"hexplanet/config"
	"hexplanet/rendering"
	"hexplanet/rendering/opengl"
	"hexplanet/simulation"
	"hexplanet/storage"
)

func init() {
	// GLFW must own the main thread.
	runtime.LockOSThread()
}

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Settings file (defaults apply when missing)")
		view       = flag.Bool("view", false, "Open a native OpenGL viewer")
		width      = flag.Int("width", 1280, "Viewer window width")
		height     = flag.Int("height", 720, "Viewer window height")
		runName    = flag.String("name", "", "Name of the persisted run")
		resume     = flag.String("resume", "", "Resume a persisted run by id")
		paused     = flag.Bool("paused", false, "Start with the simulation paused")
	)
	flag.Parse()

	if err := run(*configPath, options{
		view:   *view,
		width:  *width,
		height: *height,
		name:   *runName,
		resume: *resume,
		paused: *paused,
	}); err != nil {
		slog.Error("hexplanet failed", "err", err)
		os.Exit(1)
	}
}

type options struct {
	view          bool
	width, height int
	name          string
	resume        string
	paused        bool
}

func run(configPath string, opts options) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store *storage.Store
		runID uuid.UUID
		world *simulation.World
	)
	if cfg.Storage.DSN != "" {
		store, err = storage.Open(ctx, cfg.Storage.DSN, logger)
		if err != nil {
			return err
		}
		defer store.Close()
	} else if opts.resume != "" {
		return errors.New("-resume needs a storage dsn")
	}

	if opts.resume != "" {
		id, err := uuid.Parse(opts.resume)
		if err != nil {
			return fmt.Errorf("run id %q: %w", opts.resume, err)
		}
		var r storage.Run
		r, world, err = store.ResumeRun(ctx, id, logger)
		if err != nil {
			return err
		}
		// The world comes from the stored settings; serving and storage
		// follow the current config.
		stored := r.Settings
		stored.Server, stored.Storage, stored.LogLevel = cfg.Server, cfg.Storage, cfg.LogLevel
		cfg, runID = stored, r.ID
	} else {
		world, err = simulation.BuildWorld(cfg, logger)
		if err != nil {
			return err
		}
		if store != nil {
			name := opts.name
			if name == "" {
				name = fmt.Sprintf("level%d-seed%d", cfg.Grid.Level, cfg.Plates.Seed)
			}
			r, err := store.CreateRun(ctx, name, cfg)
			if err != nil {
				return err
			}
			runID = r.ID
			if _, err := store.SaveSnapshot(ctx, runID, world.Sim.Snapshot()); err != nil {
				return err
			}
		}
	}

	engine := simulation.NewEngine(world.Sim, time.Duration(cfg.Simulation.StepIntervalMs)*time.Millisecond, logger)
	if opts.paused {
		engine.Pause()
	}
	if store != nil {
		engine.OnStep(store.SnapshotHook(runID, cfg.Storage.SnapshotEvery))
	}
	palette := rendering.PlateColors(world.Sim.NumPlates(), cfg.Plates.Seed)
	server := NewServer(cfg.Server, world, engine, palette, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })

	if opts.view {
		if err := runViewer(gctx, opts, world, engine, palette, logger); err != nil {
			logger.Error("viewer failed", "err", err)
		}
		stop()
	}

	err = g.Wait()
	if store != nil {
		// The engine has stopped, so Current is final.
		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, serr := store.SaveSnapshot(saveCtx, runID, engine.Current()); serr != nil {
			logger.Error("saving final snapshot", "run", runID, "err", serr)
		} else {
			logger.Info("run saved", "run", runID, "step", engine.Current().Step)
		}
	}
	return err
}

// runViewer blocks on the main thread until the window closes.
func runViewer(ctx context.Context, opts options, world *simulation.World, engine *simulation.Engine, palette []rl.Color, logger *slog.Logger) error {
	renderer, err := opengl.NewPlanetRenderer(opts.width, opts.height, world.Grid, world.Sim.Model().SeaLevel, palette, logger)
	if err != nil {
		return err
	}
	defer renderer.Terminate()

	fmt.Println("Controls:")
	fmt.Println("  P: Pause / resume")
	fmt.Println("  Space or N: Single step")
	fmt.Println("  1/2: Colour by height / plate")
	fmt.Println("  Mouse: Drag to rotate, click to inspect a cell")
	fmt.Println("  Scroll: Zoom in/out")
	fmt.Println("  ESC: Exit")
	return renderer.Run(ctx, engine)
}
