package capture

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/plantwatch/internal/coords"
	"github.com/mikeyg42/plantwatch/internal/events"
	"github.com/mikeyg42/plantwatch/internal/readiness"
	"github.com/mikeyg42/plantwatch/internal/screen/screentest"
)

// fakeViewer models the viewer's screen: login form, a camera list that
// scrolls at slot 13, and a video wall that packs enabled cameras.
type fakeViewer struct {
	mu       sync.Mutex
	layout   *coords.Layout
	probe    *screentest.FakeProbe
	noLogin  bool
	offline  map[int]bool
	noVideo  map[int]bool
	scrolled bool
	enabled  []int
	captured []int
	lastTile int
}

func newFakeViewer(t *testing.T) *fakeViewer {
	t.Helper()
	layout, err := coords.NewLayout(coords.BaseWidth, coords.BaseHeight)
	if err != nil {
		t.Fatal(err)
	}
	v := &fakeViewer{
		layout:   layout,
		probe:    screentest.New(coords.BaseWidth, coords.BaseHeight),
		offline:  map[int]bool{},
		noVideo:  map[int]bool{},
		lastTile: -1,
	}
	return v
}

// install scripts the probe; call after offline/noVideo/noLogin are set.
func (v *fakeViewer) install() {
	login := v.layout.LoginReady().Point
	v.probe.Script(login.X, login.Y, func(int) string {
		if v.noLogin {
			return "0a0a0a"
		}
		return "ffffff"
	})

	for slot := 0; slot < coords.FirstScrolledSlot; slot++ {
		slot := slot
		ready, _ := v.layout.CameraReady(slot)
		v.probe.Script(ready.Point.X, ready.Point.Y, func(int) string {
			v.mu.Lock()
			defer v.mu.Unlock()
			s := v.rowSlot(slot)
			if v.offline[s] {
				return "379bff"
			}
			return "2ec97c"
		})
	}

	for tile := 0; tile < coords.Slots; tile++ {
		tile := tile
		box, _ := v.layout.VideoBox(tile)
		v.probe.Script(box.X, box.Y, func(int) string {
			v.mu.Lock()
			defer v.mu.Unlock()
			if tile >= len(v.enabled) {
				return "000000"
			}
			if v.noVideo[v.enabled[tile]] {
				return "2b2e32"
			}
			return "8a7f6e"
		})
	}

	v.probe.OnClick(v.onClick)
}

// rowSlot maps a list row to the slot shown there.
func (v *fakeViewer) rowSlot(row int) int {
	if v.scrolled && row >= 10 {
		return row + 3
	}
	return row
}

func (v *fakeViewer) onClick(p screentest.Point) {
	v.mu.Lock()
	defer v.mu.Unlock()

	pt := coords.ScreenPoint{X: p.X, Y: p.Y}
	switch pt {
	case v.layout.Point(coords.ScrollDown):
		v.scrolled = true
		return
	case v.layout.Point(coords.ScrollUp):
		v.scrolled = false
		return
	case v.layout.Point(coords.Capture):
		if v.lastTile >= 0 {
			v.captured = append(v.captured, v.enabled[v.lastTile])
		}
		return
	}
	for row := 0; row < coords.FirstScrolledSlot; row++ {
		toggle, _ := v.layout.CameraToggle(row)
		if toggle == pt {
			v.enabled = append(v.enabled, v.rowSlot(row))
			return
		}
	}
	for tile := 0; tile < coords.Slots; tile++ {
		box, _ := v.layout.VideoBox(tile)
		if box == pt {
			v.lastTile = tile
			return
		}
	}
}

func (v *fakeViewer) capturedSlots() []int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]int(nil), v.captured...)
}

type fakeApp struct {
	terminateErr error
	launchErr    error
	terminated   int
	launched     int
}

func (a *fakeApp) TerminateStale(context.Context) error {
	a.terminated++
	return a.terminateErr
}

func (a *fakeApp) Launch(context.Context) error {
	a.launched++
	return a.launchErr
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Emit(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Kind == events.Error {
			out = append(out, e.Payload.(string))
		}
	}
	return out
}

func testConfig() Config {
	return Config{
		LoginTimeout:  30 * time.Millisecond,
		CameraTimeout: 20 * time.Millisecond,
		VideoTimeout:  20 * time.Millisecond,
	}
}

func newTestOrchestrator(v *fakeViewer, app *fakeApp, rec *recorder) *Orchestrator {
	poller := readiness.New(v.probe, readiness.WithInterval(time.Millisecond), readiness.WithLogger(zap.NewNop()))
	return NewOrchestrator(v.probe, poller, app, rec, testConfig()).WithLogger(zap.NewNop())
}

func seq(from, to int) []int {
	var out []int
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

func TestRunAllCamerasOnline(t *testing.T) {
	v := newFakeViewer(t)
	v.install()
	app := &fakeApp{}
	rec := &recorder{}

	res := newTestOrchestrator(v, app, rec).Run(context.Background())

	if res.State != Done || res.Err != nil {
		t.Fatalf("state = %s, err = %v", res.State, res.Err)
	}
	if len(res.Unavailable) != 0 {
		t.Fatalf("unavailable = %v", res.Unavailable)
	}
	if got := v.capturedSlots(); !reflect.DeepEqual(got, seq(0, 16)) {
		t.Fatalf("captured = %v", got)
	}
	if app.terminated != 1 || app.launched != 1 {
		t.Fatalf("terminate=%d launch=%d", app.terminated, app.launched)
	}

	sd := v.layout.Point(coords.ScrollDown)
	su := v.layout.Point(coords.ScrollUp)
	if n := v.probe.ClickCount(sd.X, sd.Y); n != 1 {
		t.Errorf("scroll down clicked %d times", n)
	}
	if n := v.probe.ClickCount(su.X, su.Y); n != 2 {
		t.Errorf("scroll up clicked %d times", n)
	}

	clicks := v.probe.Clicks()
	last := clicks[len(clicks)-1]
	closeApp := v.layout.Point(coords.CloseApp)
	if last.X != closeApp.X || last.Y != closeApp.Y {
		t.Errorf("last click = %v, want close app", last)
	}
	if len(rec.errors()) != 0 {
		t.Errorf("unexpected error events: %v", rec.errors())
	}
}

func TestRunEnableFailuresShiftTiles(t *testing.T) {
	v := newFakeViewer(t)
	v.offline = map[int]bool{0: true, 3: true, 10: true}
	v.install()

	res := newTestOrchestrator(v, &fakeApp{}, &recorder{}).Run(context.Background())

	if res.State != Done {
		t.Fatalf("state = %s, err = %v", res.State, res.Err)
	}
	want := []int{0, 3, 10}
	if !reflect.DeepEqual(res.Unavailable, want) || !reflect.DeepEqual(res.EnableFailures, want) {
		t.Fatalf("unavailable = %v, enable failures = %v", res.Unavailable, res.EnableFailures)
	}
	if len(res.VideoFailures) != 0 {
		t.Fatalf("video failures = %v", res.VideoFailures)
	}
	if got, want := v.capturedSlots(), res.Available(); !reflect.DeepEqual(got, want) {
		t.Fatalf("captured = %v, want %v", got, want)
	}
	for tile := 13; tile < coords.Slots; tile++ {
		box, _ := v.layout.VideoBox(tile)
		if n := v.probe.ClickCount(box.X, box.Y); n != 0 {
			t.Errorf("empty tile %d clicked %d times", tile, n)
		}
	}
}

func TestRunScrolledSlotOffline(t *testing.T) {
	v := newFakeViewer(t)
	v.offline = map[int]bool{14: true}
	v.install()

	res := newTestOrchestrator(v, &fakeApp{}, &recorder{}).Run(context.Background())

	if !reflect.DeepEqual(res.Unavailable, []int{14}) {
		t.Fatalf("unavailable = %v", res.Unavailable)
	}
	if got := v.capturedSlots(); !reflect.DeepEqual(got, res.Available()) {
		t.Fatalf("captured = %v", got)
	}
}

func TestRunVideoGateFailure(t *testing.T) {
	v := newFakeViewer(t)
	v.offline = map[int]bool{2: true}
	v.noVideo = map[int]bool{5: true}
	v.install()

	res := newTestOrchestrator(v, &fakeApp{}, &recorder{}).Run(context.Background())

	if res.State != Done {
		t.Fatalf("state = %s", res.State)
	}
	if !reflect.DeepEqual(res.Unavailable, []int{2, 5}) {
		t.Fatalf("unavailable = %v", res.Unavailable)
	}
	if !reflect.DeepEqual(res.VideoFailures, []int{5}) {
		t.Fatalf("video failures = %v", res.VideoFailures)
	}
	if got := v.capturedSlots(); !reflect.DeepEqual(got, res.Available()) {
		t.Fatalf("captured = %v, want %v", got, res.Available())
	}
	if len(res.Unavailable)+len(res.Available()) != coords.Slots {
		t.Fatal("unavailable and available must partition the slots")
	}
}

func TestRunLoginTimeoutAborts(t *testing.T) {
	v := newFakeViewer(t)
	v.noLogin = true
	v.install()
	rec := &recorder{}

	res := newTestOrchestrator(v, &fakeApp{}, rec).Run(context.Background())

	if res.State != Aborted || !errors.Is(res.Err, ErrLoginTimeout) {
		t.Fatalf("state = %s, err = %v", res.State, res.Err)
	}
	if n := len(v.probe.Clicks()); n != 0 {
		t.Fatalf("%d clicks after login timeout", n)
	}
	if len(rec.errors()) != 1 {
		t.Fatalf("error events = %v", rec.errors())
	}
}

func TestRunAspectMismatchAbortsBeforeAnyStep(t *testing.T) {
	probe := screentest.New(1920, 1080)
	app := &fakeApp{}
	rec := &recorder{}
	poller := readiness.New(probe, readiness.WithLogger(zap.NewNop()))
	o := NewOrchestrator(probe, poller, app, rec, testConfig()).WithLogger(zap.NewNop())

	res := o.Run(context.Background())

	if res.State != Aborted || !errors.Is(res.Err, coords.ErrAspectMismatch) {
		t.Fatalf("state = %s, err = %v", res.State, res.Err)
	}
	if app.terminated != 0 || app.launched != 0 || len(probe.Clicks()) != 0 {
		t.Fatal("no step may run after a resolution mismatch")
	}
	if len(rec.errors()) != 1 {
		t.Fatalf("error events = %v", rec.errors())
	}
}

func TestRunStaleTerminationFailureContinues(t *testing.T) {
	v := newFakeViewer(t)
	v.install()
	app := &fakeApp{terminateErr: errors.New("access denied")}
	rec := &recorder{}

	res := newTestOrchestrator(v, app, rec).Run(context.Background())

	if res.State != Done {
		t.Fatalf("state = %s, err = %v", res.State, res.Err)
	}
	if app.launched != 1 {
		t.Fatal("launch must follow a failed termination")
	}
	if len(rec.errors()) != 1 {
		t.Fatalf("error events = %v", rec.errors())
	}
}

func TestRunLaunchFailureAborts(t *testing.T) {
	v := newFakeViewer(t)
	v.install()
	app := &fakeApp{launchErr: errors.New("not found")}

	res := newTestOrchestrator(v, app, &recorder{}).Run(context.Background())

	if res.State != Aborted || !errors.Is(res.Err, ErrLaunch) {
		t.Fatalf("state = %s, err = %v", res.State, res.Err)
	}
}

func TestRunCancelledAborts(t *testing.T) {
	v := newFakeViewer(t)
	v.install()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestOrchestrator(v, &fakeApp{}, &recorder{}).Run(ctx)

	if res.State != Aborted || !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("state = %s, err = %v", res.State, res.Err)
	}
}

func TestTileFor(t *testing.T) {
	tests := []struct {
		slot     int
		failures []int
		want     int
	}{
		{0, nil, 0},
		{15, nil, 15},
		{1, []int{0}, 0},
		{4, []int{0, 3}, 2},
		{11, []int{0, 3, 10}, 8},
		{2, []int{5, 9}, 2},
		{15, []int{0, 3, 10}, 12},
	}
	for _, tt := range tests {
		if got := TileFor(tt.slot, tt.failures); got != tt.want {
			t.Errorf("TileFor(%d, %v) = %d, want %d", tt.slot, tt.failures, got, tt.want)
		}
	}
}

func TestUnavailableSet(t *testing.T) {
	u := NewUnavailableSet(10, 0, 3, 3, -1, 16)
	if u.Len() != 3 {
		t.Fatalf("len = %d", u.Len())
	}
	if !reflect.DeepEqual(u.Sorted(), []int{0, 3, 10}) {
		t.Fatalf("sorted = %v", u.Sorted())
	}
	if got := len(u.Available()); got != coords.Slots-u.Len() {
		t.Fatalf("available = %d", got)
	}
}

func TestStateString(t *testing.T) {
	if AwaitLogin.String() != "await_login" || State(99).String() != "unknown" {
		t.Fatal("state names")
	}
	if !Done.Terminal() || !Aborted.Terminal() || Shutdown.Terminal() {
		t.Fatal("terminal states")
	}
}
