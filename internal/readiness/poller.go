// Package readiness waits for a screen pixel to reach (or leave) a color.
package readiness

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/plantwatch/internal/coords"
	"github.com/mikeyg42/plantwatch/internal/screen"
)

const (
	DefaultInterval = 200 * time.Millisecond
	DefaultTimeout  = 60 * time.Second
)

// Poller samples a Probe until a target is ready or the wait expires.
type Poller struct {
	probe    screen.Probe
	interval time.Duration
	logger   *zap.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides the sampling interval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// New returns a poller over probe.
func New(probe screen.Probe, opts ...Option) *Poller {
	p := &Poller{
		probe:    probe,
		interval: DefaultInterval,
		logger:   zap.L().Named("readiness"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AwaitReady reports whether target became ready within timeout. With match set,
// ready means the sampled color equals target.Color; otherwise it means any other
// color. The first sample is taken immediately. A cancelled ctx counts as a timeout.
// No timer or ticker outlives the call.
func (p *Poller) AwaitReady(ctx context.Context, target coords.ColoredTarget, match bool, timeout time.Duration) bool {
	if p.ready(target, match) {
		return true
	}
	if timeout <= 0 {
		return false
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Wait cancelled",
				zap.Stringer("point", target.Point),
				zap.Error(ctx.Err()))
			return false
		case <-deadline.C:
			p.logger.Debug("Wait timed out",
				zap.Stringer("point", target.Point),
				zap.String("color", string(target.Color)),
				zap.Bool("match", match),
				zap.Duration("timeout", timeout))
			return false
		case <-ticker.C:
			if p.ready(target, match) {
				return true
			}
		}
	}
}

func (p *Poller) ready(target coords.ColoredTarget, match bool) bool {
	sampled := screen.NormalizeColor(p.probe.PixelColor(target.Point.X, target.Point.Y))
	equal := sampled == string(target.Color)
	return equal == match
}
