package events

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/plantwatch/internal/report"
)

func TestHubFanOut(t *testing.T) {
	h := NewHub(zap.NewNop())
	a, cancelA := h.Subscribe("a", 4)
	defer cancelA()
	b, cancelB := h.Subscribe("b", 4)
	defer cancelB()

	h.Emit(NewProcessingStatus(true))

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case e := <-ch:
			if e.Kind != ProcessingStatus || e.Payload != true {
				t.Errorf("%s got %+v", name, e)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s received nothing", name)
		}
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub(zap.NewNop())
	ch, cancel := h.Subscribe("slow", 1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Emit(NewMonitoringUpdate("tick"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full subscriber")
	}
	if len(ch) != 1 {
		t.Fatalf("queued = %d, want 1", len(ch))
	}
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub(zap.NewNop())
	ch, cancel := h.Subscribe("x", 1)
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	if n := h.Subscribers(); n != 0 {
		t.Fatalf("subscribers = %d", n)
	}
	h.Emit(NewStopped())
}

func TestHubClose(t *testing.T) {
	h := NewHub(zap.NewNop())
	ch, cancel := h.Subscribe("x", 1)
	h.Close()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	late, _ := h.Subscribe("late", 1)
	if _, ok := <-late; ok {
		t.Fatal("subscribing to a closed hub yields a closed channel")
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (s *recordingSink) Publish(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	if s.fail {
		return errors.New("down")
	}
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestForward(t *testing.T) {
	h := NewHub(zap.NewNop())
	sink := &recordingSink{fail: true}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Forward(ctx, "rec", sink)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for h.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	h.Emit(NewError("boom"))
	h.Emit(NewBatchComplete(nil))

	for sink.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if sink.count() != 2 {
		t.Fatalf("sink got %d events, want 2 despite publish errors", sink.count())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Forward did not return after cancel")
	}
}

func TestEventJSON(t *testing.T) {
	e := NewBatchComplete(nil).WithRun("run-1")
	if res, ok := e.Payload.([]report.Result); !ok || res == nil {
		t.Fatalf("payload = %#v, want empty slice", e.Payload)
	}
	data, err := e.JSON()
	if err != nil {
		t.Fatal(err)
	}
	want := `"type":"processComplete"`
	if got := string(data); !strings.Contains(got, want) || !strings.Contains(got, `"payload":[]`) || !strings.Contains(got, `"runId":"run-1"`) {
		t.Fatalf("JSON = %s", got)
	}
}

func TestTriggersChangedCopies(t *testing.T) {
	exprs := []string{"0 9 * * *"}
	e := NewTriggersChanged(exprs)
	exprs[0] = "changed"
	if got := e.Payload.([]string)[0]; got != "0 9 * * *" {
		t.Fatalf("payload aliased caller slice: %q", got)
	}
}

func TestLogSink(t *testing.T) {
	s := NewLogSink(zap.NewNop())
	for _, e := range []Event{
		NewError("x"), NewProcessingStatus(false), NewTriggersChanged(nil),
		NewBatchComplete(nil), NewStopped(),
	} {
		if err := s.Publish(e); err != nil {
			t.Fatalf("Publish(%s): %v", e.Kind, err)
		}
	}
}
