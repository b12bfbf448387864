// Package screentest provides a scriptable screen.Probe for tests.
package screentest

import (
	"fmt"
	"sync"
)

// Point is a probed or clicked location.
type Point struct {
	X, Y int
}

// ColorFunc decides the color at a point given how many times that point has been sampled.
type ColorFunc func(sample int) string

// FakeProbe records clicks and answers pixel reads from per-point scripts.
type FakeProbe struct {
	mu      sync.Mutex
	width   int
	height  int
	colors  map[Point]ColorFunc
	samples map[Point]int
	clicks  []Point
	onClick func(Point)

	// Fallback is returned for points without a script.
	Fallback string
}

// New returns a fake display of the given size.
func New(width, height int) *FakeProbe {
	return &FakeProbe{
		width:    width,
		height:   height,
		colors:   make(map[Point]ColorFunc),
		samples:  make(map[Point]int),
		Fallback: "123456",
	}
}

// SetColor makes (x, y) always report c.
func (f *FakeProbe) SetColor(x, y int, c string) {
	f.Script(x, y, func(int) string { return c })
}

// Script installs fn as the color source for (x, y).
func (f *FakeProbe) Script(x, y int, fn ColorFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.colors[Point{x, y}] = fn
}

// ChangeAfter reports before for the first n samples of (x, y) and after from then on.
func (f *FakeProbe) ChangeAfter(x, y, n int, before, after string) {
	f.Script(x, y, func(sample int) string {
		if sample < n {
			return before
		}
		return after
	})
}

// OnClick registers a hook run after every click, outside the probe lock.
func (f *FakeProbe) OnClick(fn func(Point)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onClick = fn
}

func (f *FakeProbe) PixelColor(x, y int) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := Point{x, y}
	n := f.samples[p]
	f.samples[p] = n + 1
	if fn, ok := f.colors[p]; ok {
		return fn(n)
	}
	return f.Fallback
}

func (f *FakeProbe) Click(x, y int) {
	f.mu.Lock()
	p := Point{x, y}
	f.clicks = append(f.clicks, p)
	hook := f.onClick
	f.mu.Unlock()

	if hook != nil {
		hook(p)
	}
}

func (f *FakeProbe) DisplaySize() (int, int) {
	return f.width, f.height
}

// Clicks returns a copy of every click in order.
func (f *FakeProbe) Clicks() []Point {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Point, len(f.clicks))
	copy(out, f.clicks)
	return out
}

// Samples returns how many times (x, y) has been read.
func (f *FakeProbe) Samples(x, y int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.samples[Point{x, y}]
}

// ClickCount returns how many times (x, y) was clicked.
func (f *FakeProbe) ClickCount(x, y int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.clicks {
		if c.X == x && c.Y == y {
			n++
		}
	}
	return n
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}
