package readiness

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/mikeyg42/plantwatch/internal/coords"
	"github.com/mikeyg42/plantwatch/internal/screen/screentest"
)

var target = coords.ColoredTarget{
	Point: coords.ScreenPoint{X: 10, Y: 20},
	Color: coords.ColorCameraReady,
}

func TestAwaitReadyImmediate(t *testing.T) {
	probe := screentest.New(coords.BaseWidth, coords.BaseHeight)
	probe.SetColor(10, 20, "2EC97C")
	p := New(probe, WithInterval(time.Hour))

	start := time.Now()
	if !p.AwaitReady(context.Background(), target, true, time.Second) {
		t.Fatal("expected ready")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("immediate match took %v", elapsed)
	}
	if n := probe.Samples(10, 20); n != 1 {
		t.Fatalf("samples = %d, want 1", n)
	}
}

func TestAwaitReadyChangesAtTick(t *testing.T) {
	probe := screentest.New(coords.BaseWidth, coords.BaseHeight)
	probe.ChangeAfter(10, 20, 3, "379bff", "2ec97c")
	p := New(probe, WithInterval(5*time.Millisecond))

	if !p.AwaitReady(context.Background(), target, true, 5*time.Second) {
		t.Fatal("expected ready after color change")
	}
	if n := probe.Samples(10, 20); n != 4 {
		t.Fatalf("samples = %d, want 4 (ready on the fourth)", n)
	}
}

func TestAwaitReadyTimesOut(t *testing.T) {
	probe := screentest.New(coords.BaseWidth, coords.BaseHeight)
	probe.SetColor(10, 20, "379bff")
	p := New(probe, WithInterval(10*time.Millisecond))

	timeout := 120 * time.Millisecond
	start := time.Now()
	if p.AwaitReady(context.Background(), target, true, timeout) {
		t.Fatal("expected timeout")
	}
	elapsed := time.Since(start)
	if elapsed < timeout {
		t.Fatalf("returned after %v, before timeout %v", elapsed, timeout)
	}
	if elapsed > timeout+500*time.Millisecond {
		t.Fatalf("returned after %v, well past timeout %v", elapsed, timeout)
	}
}

func TestAwaitReadyNoMatchMode(t *testing.T) {
	probe := screentest.New(coords.BaseWidth, coords.BaseHeight)
	probe.ChangeAfter(10, 20, 2, "2b2e32", "8a7f6e")
	p := New(probe, WithInterval(5*time.Millisecond))

	notOn := coords.ColoredTarget{Point: target.Point, Color: coords.ColorVideoNotOn}
	if !p.AwaitReady(context.Background(), notOn, false, time.Second) {
		t.Fatal("expected ready once color differs")
	}

	still := screentest.New(coords.BaseWidth, coords.BaseHeight)
	still.SetColor(10, 20, "2b2e32")
	p = New(still, WithInterval(5*time.Millisecond))
	if p.AwaitReady(context.Background(), notOn, false, 50*time.Millisecond) {
		t.Fatal("expected timeout while color stays equal")
	}
}

func TestAwaitReadyContextCancelled(t *testing.T) {
	probe := screentest.New(coords.BaseWidth, coords.BaseHeight)
	p := New(probe, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	if p.AwaitReady(ctx, target, true, time.Minute) {
		t.Fatal("expected false on cancel")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("cancel not honoured, waited %v", elapsed)
	}
}

func TestAwaitReadyZeroTimeout(t *testing.T) {
	probe := screentest.New(coords.BaseWidth, coords.BaseHeight)
	p := New(probe)
	if p.AwaitReady(context.Background(), target, true, 0) {
		t.Fatal("expected false")
	}
	if n := probe.Samples(10, 20); n != 1 {
		t.Fatalf("samples = %d, want 1", n)
	}
}

func TestAwaitReadyStopsSampling(t *testing.T) {
	probe := screentest.New(coords.BaseWidth, coords.BaseHeight)
	p := New(probe, WithInterval(2*time.Millisecond))

	before := runtime.NumGoroutine()
	for i := 0; i < 20; i++ {
		p.AwaitReady(context.Background(), target, true, 10*time.Millisecond)
	}

	n := probe.Samples(10, 20)
	time.Sleep(50 * time.Millisecond)
	if after := probe.Samples(10, 20); after != n {
		t.Fatalf("probe sampled %d more times after return", after-n)
	}
	if after := runtime.NumGoroutine(); after > before+1 {
		t.Fatalf("goroutines grew from %d to %d", before, after)
	}
}
