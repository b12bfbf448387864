// Package screen reads display pixels and drives the pointer.
package screen

import (
	"strings"
	"sync"

	"github.com/go-vgo/robotgo"
	"go.uber.org/zap"
)

// Probe is the only window onto the display the automation needs.
type Probe interface {
	// PixelColor returns the color at (x, y) as six lower-case hex digits without '#'.
	PixelColor(x, y int) string
	// Click moves the pointer to (x, y) and issues a left click.
	Click(x, y int)
	// DisplaySize reports the primary display size in pixels.
	DisplaySize() (width, height int)
}

// RobotProbe implements Probe on top of robotgo.
type RobotProbe struct {
	logger *zap.Logger

	// robotgo shares one C-side pointer state
	mu sync.Mutex
}

// NewRobotProbe creates a probe for the primary display
func NewRobotProbe() *RobotProbe {
	return &RobotProbe{
		logger: zap.L().Named("screen-probe"),
	}
}

func (p *RobotProbe) PixelColor(x, y int) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return NormalizeColor(robotgo.GetPixelColor(x, y))
}

func (p *RobotProbe) Click(x, y int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	robotgo.Move(x, y)
	robotgo.Click()

	p.logger.Debug("Clicked", zap.Int("x", x), zap.Int("y", y))
}

func (p *RobotProbe) DisplaySize() (int, int) {
	return robotgo.GetScreenSize()
}

// PointerPosition returns the current pointer location.
func (p *RobotProbe) PointerPosition() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return robotgo.Location()
}

// NormalizeColor lower-cases a hex color and strips an optional leading '#'.
func NormalizeColor(c string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c), "#"))
}
