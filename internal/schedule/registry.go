// Package schedule keeps the set of active capture triggers.
package schedule

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type trigger struct {
	expr string
	id   cron.EntryID
}

// Registry owns a cron scheduler and the triggers registered on it.
// CancelAll removes entries but never interrupts a callback already running.
type Registry struct {
	mu       sync.Mutex
	cron     *cron.Cron
	triggers []trigger
	logger   *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.L().Named("schedule")
	}
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cronLogger{logger})))
	c.Start()
	return &Registry{cron: c, logger: logger}
}

// Validate parses a five-field cron expression.
func Validate(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid trigger %q: %w", expr, err)
	}
	return nil
}

// Register schedules fn on expr. An invalid expression registers nothing.
func (r *Registry) Register(expr string, fn func()) error {
	sched, err := parser.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid trigger %q: %w", expr, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.cron.Schedule(sched, cron.FuncJob(fn))
	r.triggers = append(r.triggers, trigger{expr: expr, id: id})
	r.logger.Info("Trigger registered", zap.String("expr", expr), zap.Int("entry", int(id)))
	return nil
}

func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.triggers {
		r.cron.Remove(t.id)
	}
	if len(r.triggers) > 0 {
		r.logger.Info("Triggers cancelled", zap.Int("count", len(r.triggers)))
	}
	r.triggers = nil
}

// Active returns the registered expressions in registration order.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.triggers))
	for _, t := range r.triggers {
		out = append(out, t.expr)
	}
	return out
}

// Stop cancels all triggers and waits for running callbacks or ctx.
func (r *Registry) Stop(ctx context.Context) {
	r.CancelAll()
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

type cronLogger struct {
	l *zap.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Infow(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
