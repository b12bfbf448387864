// Package coords holds the viewer's screen layout authored at 1366x768 and
// scales it to the live display.
package coords

import (
	"errors"
	"fmt"
	"math"
)

// Base resolution every point in this package is authored against.
const (
	BaseWidth  = 1366
	BaseHeight = 768
)

// Slots is the number of camera positions in the viewer.
const Slots = 16

// FirstScrolledSlot is the first slot hidden below the fold of the camera list.
const FirstScrolledSlot = 13

// Colors sampled by the automation, in robotgo's lower-case hex form.
const (
	ColorLoginReady  RGBHex = "ffffff"
	ColorCameraReady RGBHex = "2ec97c"
	ColorVideoNotOn  RGBHex = "2b2e32"
	ColorVideoBlank  RGBHex = "000000"
)

// Named single-point entries.
const (
	Login        = "login"
	LoginReady   = "login_ready"
	ScrollDown   = "scroll_down"
	ScrollUp     = "scroll_up"
	Capture      = "capture"
	ClosePreview = "close_preview"
	CloseApp     = "close_app"
)

var (
	// ErrAspectMismatch means the live display does not share the base aspect ratio.
	ErrAspectMismatch = errors.New("display aspect ratio does not match 1366x768")
	// ErrInvalidSize means a non-positive display dimension.
	ErrInvalidSize = errors.New("display size must be positive")
	// ErrUnknownTarget means the requested name or slot has no table entry.
	ErrUnknownTarget = errors.New("unknown screen target")
)

// RGBHex is a six-digit lower-case hex color without '#'.
type RGBHex string

// ScreenPoint is a location in live display pixels.
type ScreenPoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p ScreenPoint) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// ColoredTarget pairs a point with the color expected there.
type ColoredTarget struct {
	Point ScreenPoint `json:"point"`
	Color RGBHex      `json:"color"`
}

type basePoint struct{ x, y int }

var named = map[string]basePoint{
	Login:        {633, 485},
	LoginReady:   {637, 487},
	ScrollDown:   {262, 652},
	ScrollUp:     {262, 112},
	Capture:      {646, 700},
	ClosePreview: {1021, 98},
	CloseApp:     {1332, 11},
}

var namedColor = map[string]RGBHex{
	LoginReady: ColorLoginReady,
}

// Slots 13..15 are reached after scrolling and sit on rows 10..12.
var cameraReady = [Slots]basePoint{
	{69, 135}, {69, 174}, {69, 213}, {69, 252},
	{69, 291}, {69, 330}, {69, 369}, {69, 408},
	{69, 447}, {69, 486}, {69, 525}, {69, 564},
	{69, 603}, {69, 525}, {69, 564}, {69, 603},
}

var cameraToggle = [Slots]basePoint{
	{209, 135}, {210, 177}, {210, 219}, {210, 261},
	{210, 303}, {210, 345}, {210, 387}, {210, 429},
	{210, 471}, {210, 513}, {210, 555}, {210, 597},
	{210, 639}, {210, 555}, {210, 597}, {210, 639},
}

// Video tiles in the 4x4 wall, row-major.
var videoBox = [Slots]basePoint{
	{402, 167}, {669, 170}, {936, 167}, {1203, 167},
	{402, 317}, {669, 317}, {936, 317}, {1203, 317},
	{402, 467}, {669, 467}, {936, 467}, {1203, 467},
	{402, 617}, {669, 617}, {936, 617}, {1203, 617},
}

// ValidateResolution checks that w x h can be scaled from the base layout.
func ValidateResolution(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}
	if w*BaseHeight != h*BaseWidth {
		return fmt.Errorf("%w: got %dx%d", ErrAspectMismatch, w, h)
	}
	return nil
}

// Scale maps a base point into a w x h display.
func Scale(x, y, w, h int) ScreenPoint {
	return ScreenPoint{
		X: scaleAxis(x, w, BaseWidth),
		Y: scaleAxis(y, h, BaseHeight),
	}
}

func scaleAxis(v, live, base int) int {
	return int(math.Round(float64(v) * float64(live) / float64(base)))
}

// Resolve returns the live position of a named entry.
func Resolve(name string, w, h int) (ScreenPoint, error) {
	if err := ValidateResolution(w, h); err != nil {
		return ScreenPoint{}, err
	}
	bp, ok := named[name]
	if !ok {
		return ScreenPoint{}, fmt.Errorf("%w: %q", ErrUnknownTarget, name)
	}
	return Scale(bp.x, bp.y, w, h), nil
}

// ResolveTarget returns the live position and expected color of a named entry.
func ResolveTarget(name string, w, h int) (ColoredTarget, error) {
	color, ok := namedColor[name]
	if !ok {
		return ColoredTarget{}, fmt.Errorf("%w: %q has no color", ErrUnknownTarget, name)
	}
	p, err := Resolve(name, w, h)
	if err != nil {
		return ColoredTarget{}, err
	}
	return ColoredTarget{Point: p, Color: color}, nil
}

// Names lists every single-point entry.
func Names() []string {
	return []string{Login, LoginReady, ScrollDown, ScrollUp, Capture, ClosePreview, CloseApp}
}
