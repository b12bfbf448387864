// Package monitor runs capture batches on a cron schedule and exposes the
// start and stop commands.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/plantwatch/internal/capture"
	"github.com/mikeyg42/plantwatch/internal/events"
	"github.com/mikeyg42/plantwatch/internal/metrics"
	"github.com/mikeyg42/plantwatch/internal/report"
	"github.com/mikeyg42/plantwatch/internal/schedule"
)

// Capturer performs one capture run.
type Capturer interface {
	Run(ctx context.Context) capture.Result
}

// Processor classifies a finished run.
type Processor interface {
	Process(ctx context.Context, run capture.Result) []report.Result
}

// InstallChecker reports whether the viewer is installed.
type InstallChecker interface {
	Installed() error
}

// Status is a snapshot of the service.
type Status struct {
	Triggers []string `json:"triggers"`
	Running  bool     `json:"running"`
	LastRun  *LastRun `json:"lastRun,omitempty"`
}

// LastRun summarizes the most recent capture run.
type LastRun struct {
	RunID       string    `json:"runId"`
	State       string    `json:"state"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Unavailable []int     `json:"unavailable"`
}

// Service owns the trigger registry and serializes capture runs: a trigger
// that fires while a run is active is skipped.
type Service struct {
	registry  *schedule.Registry
	capturer  Capturer
	processor Processor
	installer InstallChecker
	emitter   events.Emitter
	metrics   *metrics.Metrics
	logger    *zap.Logger

	// runMu is held for the whole of a run.
	runMu sync.Mutex
	wg    sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	running bool
	lastRun *LastRun
	latest  []report.Result
}

func NewService(registry *schedule.Registry, capturer Capturer, processor Processor, emitter events.Emitter) *Service {
	if emitter == nil {
		emitter = events.Discard
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		registry:  registry,
		capturer:  capturer,
		processor: processor,
		emitter:   emitter,
		logger:    zap.L().Named("monitor"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Service) WithInstallChecker(c InstallChecker) *Service {
	s.installer = c
	return s
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) WithLogger(l *zap.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// CheckInstallation emits an error event when the viewer is missing.
func (s *Service) CheckInstallation() error {
	if s.installer == nil {
		return nil
	}
	if err := s.installer.Installed(); err != nil {
		s.logger.Error("Viewer not installed", zap.Error(err))
		s.emitter.Emit(events.NewError(err.Error()))
		return err
	}
	return nil
}

// Start replaces the schedule with exprs and begins one capture run in the
// background. Any invalid expression rejects the whole call and leaves the
// current schedule untouched.
func (s *Service) Start(ctx context.Context, exprs []string) bool {
	for _, expr := range exprs {
		if err := schedule.Validate(expr); err != nil {
			s.logger.Warn("Rejected trigger list", zap.Strings("triggers", exprs), zap.Error(err))
			s.emitter.Emit(events.NewError(err.Error()))
			return false
		}
	}
	if err := ctx.Err(); err != nil {
		return false
	}

	s.registry.CancelAll()
	for _, expr := range exprs {
		if err := s.registry.Register(expr, func() { s.fire(expr) }); err != nil {
			s.logger.Error("Failed to register trigger", zap.String("expr", expr), zap.Error(err))
			s.emitter.Emit(events.NewError(err.Error()))
			s.registry.CancelAll()
			s.emitter.Emit(events.NewTriggersChanged(nil))
			return false
		}
	}

	active := s.registry.Active()
	s.logger.Info("Monitoring started", zap.Strings("triggers", active))
	s.emitter.Emit(events.NewTriggersChanged(active))

	s.launch("start")
	return true
}

// Stop cancels every trigger. A run already in progress finishes.
func (s *Service) Stop() {
	s.registry.CancelAll()
	s.logger.Info("Monitoring stopped")
	s.emitter.Emit(events.NewStopped())
	s.emitter.Emit(events.NewTriggersChanged(nil))
}

// RunOnce performs a capture run synchronously. It returns false without
// running when another run is active.
func (s *Service) RunOnce(ctx context.Context) ([]report.Result, bool) {
	return s.run(ctx, "manual")
}

// Triggers returns the active trigger expressions in registration order.
func (s *Service) Triggers() []string {
	return s.registry.Active()
}

// Running reports whether a capture run is in progress.
func (s *Service) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// LatestResults returns the last processed batch.
func (s *Service) LatestResults() []report.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]report.Result, len(s.latest))
	copy(out, s.latest)
	return out
}

func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{Triggers: s.registry.Active(), Running: s.running}
	if s.lastRun != nil {
		lr := *s.lastRun
		st.LastRun = &lr
	}
	return st
}

// Wait blocks until background runs finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the schedule and cancels any run in progress.
func (s *Service) Close(ctx context.Context) error {
	s.registry.Stop(ctx)
	s.cancel()
	return s.Wait(ctx)
}

func (s *Service) fire(expr string) {
	s.logger.Info("Trigger fired", zap.String("expr", expr))
	if s.launch(expr) {
		s.emitter.Emit(events.NewMonitoringUpdate(fmt.Sprintf("Task from %s executed!", expr)))
	}
}

// launch starts a run in the background unless one is active.
func (s *Service) launch(source string) bool {
	if !s.runMu.TryLock() {
		s.skipped(source)
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.runMu.Unlock()
		s.execute(s.ctx, source)
	}()
	return true
}

func (s *Service) run(ctx context.Context, source string) ([]report.Result, bool) {
	if !s.runMu.TryLock() {
		s.skipped(source)
		return nil, false
	}
	defer s.runMu.Unlock()
	return s.execute(ctx, source), true
}

func (s *Service) skipped(source string) {
	s.metrics.TriggerSkipped()
	s.logger.Warn("Capture run already in progress; trigger skipped", zap.String("source", source))
	s.emitter.Emit(events.NewMonitoringUpdate(
		fmt.Sprintf("Skipped %s: a capture run is already in progress", source)))
}

// execute must be called with runMu held.
func (s *Service) execute(ctx context.Context, source string) []report.Result {
	s.setRunning(true)
	defer s.setRunning(false)

	s.logger.Info("Capture run starting", zap.String("source", source))
	res := s.capturer.Run(ctx)
	s.metrics.ObserveRun(res.State.String(), res.FinishedAt.Sub(res.StartedAt), res.Unavailable, res.EnableFailures, res.VideoFailures)
	s.recordRun(res)

	if !res.Completed() {
		s.logger.Warn("Capture run did not complete; skipping classification",
			zap.String("run_id", res.RunID),
			zap.Stringer("state", res.State),
			zap.Error(res.Err))
		return nil
	}

	results := s.processor.Process(ctx, res)

	s.mu.Lock()
	s.latest = results
	s.mu.Unlock()
	return results
}

func (s *Service) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

func (s *Service) recordRun(res capture.Result) {
	lr := &LastRun{
		RunID:       res.RunID,
		State:       res.State.String(),
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
		Unavailable: res.Unavailable,
	}
	if res.Err != nil {
		lr.Error = res.Err.Error()
	}
	s.mu.Lock()
	s.lastRun = lr
	s.mu.Unlock()
}
