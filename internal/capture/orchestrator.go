// Package capture drives the camera viewer through one capture run.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikeyg42/plantwatch/internal/coords"
	"github.com/mikeyg42/plantwatch/internal/events"
	"github.com/mikeyg42/plantwatch/internal/screen"
)

var (
	ErrLoginTimeout = errors.New("login screen did not become ready")
	ErrLaunch       = errors.New("failed to launch viewer")
)

// AppController starts and stops the viewer process.
type AppController interface {
	TerminateStale(ctx context.Context) error
	Launch(ctx context.Context) error
}

// Waiter blocks until a target is ready or the timeout passes.
type Waiter interface {
	AwaitReady(ctx context.Context, target coords.ColoredTarget, match bool, timeout time.Duration) bool
}

// Config holds the run's wait and pause durations.
type Config struct {
	LoginTimeout    time.Duration
	CameraTimeout   time.Duration
	VideoTimeout    time.Duration
	ScrollDownPause time.Duration
	ScrollUpPause   time.Duration
}

func DefaultConfig() Config {
	return Config{
		LoginTimeout:    60 * time.Second,
		CameraTimeout:   60 * time.Second,
		VideoTimeout:    60 * time.Second,
		ScrollDownPause: 500 * time.Millisecond,
		ScrollUpPause:   time.Second,
	}
}

// Orchestrator runs the capture state machine. It is not safe for concurrent
// Run calls; callers serialize runs.
type Orchestrator struct {
	probe   screen.Probe
	waiter  Waiter
	app     AppController
	emitter events.Emitter
	cfg     Config
	logger  *zap.Logger
}

func NewOrchestrator(probe screen.Probe, waiter Waiter, app AppController, emitter events.Emitter, cfg Config) *Orchestrator {
	if emitter == nil {
		emitter = events.Discard
	}
	return &Orchestrator{
		probe:   probe,
		waiter:  waiter,
		app:     app,
		emitter: emitter,
		cfg:     cfg,
		logger:  zap.L().Named("capture"),
	}
}

// WithLogger replaces the orchestrator's logger.
func (o *Orchestrator) WithLogger(l *zap.Logger) *Orchestrator {
	if l != nil {
		o.logger = l
	}
	return o
}

// run is the mutable state of one Run call.
type run struct {
	id          string
	layout      *coords.Layout
	unavailable *UnavailableSet
	enableFail  []int
	videoFail   []int
	err         error
	logger      *zap.Logger
}

// Run executes one capture run to Done or Aborted.
func (o *Orchestrator) Run(ctx context.Context) Result {
	r := &run{
		id:          uuid.NewString(),
		unavailable: NewUnavailableSet(),
	}
	r.logger = o.logger.With(zap.String("run_id", r.id))
	started := time.Now()

	state := TerminateStale
	w, h := o.probe.DisplaySize()
	layout, err := coords.NewLayout(w, h)
	if err != nil {
		state = o.abort(r, fmt.Errorf("unsupported display %dx%d: %w", w, h, err))
	} else {
		r.layout = layout
		r.logger.Info("Capture run started", zap.Int("width", w), zap.Int("height", h))
	}

	for !state.Terminal() {
		if err := ctx.Err(); err != nil {
			state = o.abort(r, fmt.Errorf("run cancelled in %s: %w", state, err))
			break
		}
		state = o.step(ctx, r, state)
	}

	res := Result{
		RunID:          r.id,
		State:          state,
		Err:            r.err,
		StartedAt:      started,
		FinishedAt:     time.Now(),
		Unavailable:    r.unavailable.Sorted(),
		EnableFailures: r.enableFail,
		VideoFailures:  r.videoFail,
	}
	r.logger.Info("Capture run finished",
		zap.Stringer("state", state),
		zap.Ints("unavailable", res.Unavailable),
		zap.Duration("elapsed", res.FinishedAt.Sub(started)))
	return res
}

// step performs the work of state s and returns the next state.
func (o *Orchestrator) step(ctx context.Context, r *run, s State) State {
	r.logger.Debug("Entering state", zap.Stringer("state", s))

	switch s {
	case TerminateStale:
		if err := o.app.TerminateStale(ctx); err != nil {
			r.logger.Warn("Failed to terminate stale viewer", zap.Error(err))
			o.emitter.Emit(events.NewError(fmt.Sprintf("Failed to close running viewer: %v", err)).WithRun(r.id))
		}
		return Launch

	case Launch:
		if err := o.app.Launch(ctx); err != nil {
			return o.abort(r, fmt.Errorf("%w: %v", ErrLaunch, err))
		}
		return AwaitLogin

	case AwaitLogin:
		if !o.waiter.AwaitReady(ctx, r.layout.LoginReady(), true, o.cfg.LoginTimeout) {
			return o.abort(r, ErrLoginTimeout)
		}
		o.click(r.layout.Point(coords.Login))
		return EnableCameras

	case EnableCameras:
		o.enableCameras(ctx, r)
		return RestoreList

	case RestoreList:
		o.click(r.layout.Point(coords.ScrollUp))
		sleep(ctx, o.cfg.ScrollUpPause)
		return CaptureCameras

	case CaptureCameras:
		o.captureCameras(ctx, r)
		return Shutdown

	case Shutdown:
		o.click(r.layout.Point(coords.ScrollUp))
		o.click(r.layout.Point(coords.CloseApp))
		return Done
	}

	return o.abort(r, fmt.Errorf("no transition from state %s", s))
}

func (o *Orchestrator) enableCameras(ctx context.Context, r *run) {
	for slot := 0; slot < coords.Slots; slot++ {
		if ctx.Err() != nil {
			return
		}
		if slot == coords.FirstScrolledSlot {
			o.click(r.layout.Point(coords.ScrollDown))
			sleep(ctx, o.cfg.ScrollDownPause)
		}

		ready, _ := r.layout.CameraReady(slot)
		if !o.waiter.AwaitReady(ctx, ready, true, o.cfg.CameraTimeout) {
			r.unavailable.Add(slot)
			r.enableFail = append(r.enableFail, slot)
			r.logger.Warn("Camera did not come online", zap.Int("camera", slot+1))
			continue
		}

		toggle, _ := r.layout.CameraToggle(slot)
		o.click(toggle)
		r.logger.Debug("Camera enabled", zap.Int("camera", slot+1))
	}
}

func (o *Orchestrator) captureCameras(ctx context.Context, r *run) {
	for slot := 0; slot < coords.Slots; slot++ {
		if ctx.Err() != nil {
			return
		}
		if r.unavailable.Has(slot) {
			continue
		}

		tile := TileFor(slot, r.enableFail)
		notOn, _ := r.layout.VideoNotOn(tile)
		blank, _ := r.layout.VideoNotOnAlt(tile)

		if !o.waiter.AwaitReady(ctx, notOn, false, o.cfg.VideoTimeout) ||
			!o.waiter.AwaitReady(ctx, blank, false, o.cfg.VideoTimeout) {
			r.unavailable.Add(slot)
			r.videoFail = append(r.videoFail, slot)
			r.logger.Warn("Camera video never started",
				zap.Int("camera", slot+1),
				zap.Int("tile", tile))
			continue
		}

		box, _ := r.layout.VideoBox(tile)
		o.click(box)
		o.click(r.layout.Point(coords.Capture))
		o.click(r.layout.Point(coords.ClosePreview))
		r.logger.Debug("Camera captured", zap.Int("camera", slot+1), zap.Int("tile", tile))
	}
}

// TileFor returns the video tile of slot: the wall packs enabled cameras, so
// each slot that failed to enable below it shifts it one tile left.
func TileFor(slot int, enableFailures []int) int {
	tile := slot
	for _, f := range enableFailures {
		if f < slot {
			tile--
		}
	}
	return tile
}

func (o *Orchestrator) abort(r *run, err error) State {
	r.err = err
	r.logger.Error("Capture run aborted", zap.Error(err))
	o.emitter.Emit(events.NewError(err.Error()).WithRun(r.id))
	return Aborted
}

func (o *Orchestrator) click(p coords.ScreenPoint) {
	o.probe.Click(p.X, p.Y)
}

// sleep pauses for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
