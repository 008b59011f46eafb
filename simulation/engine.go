package simulation

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// StepHook is called on the engine goroutine after every step.
type StepHook func(ctx context.Context, snap *Snapshot, report StepReport) error

// Engine runs a simulator on its own goroutine and publishes an immutable
// snapshot after every step, so readers never see a step in progress.
type Engine struct {
	sim      *Simulator
	interval time.Duration
	log      *slog.Logger

	current atomic.Pointer[Snapshot]
	paused  atomic.Bool
	stepReq chan struct{}

	mu    sync.Mutex
	subs  map[chan *Snapshot]struct{}
	hooks []StepHook
}

// NewEngine wraps sim; it steps once per interval while running.
func NewEngine(sim *Simulator, interval time.Duration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		sim:      sim,
		interval: interval,
		log:      logger,
		stepReq:  make(chan struct{}, 1),
		subs:     make(map[chan *Snapshot]struct{}),
	}
	e.current.Store(sim.Snapshot())
	return e
}

// OnStep registers a hook. Hooks must be added before Run.
func (e *Engine) OnStep(h StepHook) {
	e.hooks = append(e.hooks, h)
}

// Current returns the latest published snapshot.
func (e *Engine) Current() *Snapshot {
	return e.current.Load()
}

// Pause stops timed stepping; StepOnce still works.
func (e *Engine) Pause() { e.paused.Store(true) }

// Resume restarts timed stepping.
func (e *Engine) Resume() { e.paused.Store(false) }

// Paused reports whether timed stepping is off.
func (e *Engine) Paused() bool { return e.paused.Load() }

// StepOnce requests a single step on the next loop iteration.
func (e *Engine) StepOnce() {
	select {
	case e.stepReq <- struct{}{}:
	default:
	}
}

// Subscribe returns a channel receiving every new snapshot. Slow readers
// only ever see the most recent one. Call cancel to unsubscribe.
func (e *Engine) Subscribe() (<-chan *Snapshot, func()) {
	ch := make(chan *Snapshot, 1)
	e.mu.Lock()
	e.subs[ch] = struct{}{}
	e.mu.Unlock()

	return ch, func() {
		e.mu.Lock()
		delete(e.subs, ch)
		e.mu.Unlock()
	}
}

// Run steps until ctx is done. A hook error stops the engine.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.log.Info("simulation engine started", "interval", e.interval, "step", e.sim.Step())
	for {
		select {
		case <-ctx.Done():
			e.log.Info("simulation engine stopped", "step", e.sim.Step())
			return nil
		case <-ticker.C:
			if e.paused.Load() {
				continue
			}
		case <-e.stepReq:
		}

		if err := e.advance(ctx); err != nil {
			return err
		}
	}
}

func (e *Engine) advance(ctx context.Context) error {
	start := time.Now()
	report := e.sim.ExecuteTimeStep()
	snap := e.sim.Snapshot()
	e.current.Store(snap)

	for _, h := range e.hooks {
		if err := h(ctx, snap, report); err != nil {
			return err
		}
	}
	e.publish(snap)

	if report.Step%100 == 0 {
		e.log.Info("simulation progress",
			"step", report.Step,
			"total_mass", snap.TotalMass(),
			"elapsed", time.Since(start),
		)
	}
	return nil
}

func (e *Engine) publish(snap *Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
