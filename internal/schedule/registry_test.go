package schedule

import (
	"context"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		expr  string
		valid bool
	}{
		{"0 */6 * * *", true},
		{"30 8 * * 1-5", true},
		{"@hourly", true},
		{"*/15 * * * *", true},
		{"", false},
		{"not a cron", false},
		{"0 0 * * * *", false},
		{"61 * * * *", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := Validate(tt.expr)
			if (err == nil) != tt.valid {
				t.Errorf("Validate(%q) = %v, want valid=%v", tt.expr, err, tt.valid)
			}
		})
	}
}

func TestRegisterKeepsOrder(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	defer r.Stop(context.Background())

	for _, expr := range []string{"0 6 * * *", "0 12 * * *", "0 18 * * *"} {
		if err := r.Register(expr, func() {}); err != nil {
			t.Fatalf("Register(%q): %v", expr, err)
		}
	}
	want := []string{"0 6 * * *", "0 12 * * *", "0 18 * * *"}
	if got := r.Active(); !reflect.DeepEqual(got, want) {
		t.Errorf("Active = %v, want %v", got, want)
	}
}

func TestRegisterInvalidLeavesRegistryUnchanged(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	defer r.Stop(context.Background())

	if err := r.Register("0 6 * * *", func() {}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("bogus", func() {}); err == nil {
		t.Fatal("expected error for invalid expression")
	}
	if got := r.Active(); len(got) != 1 || got[0] != "0 6 * * *" {
		t.Errorf("Active = %v", got)
	}
	if n := len(r.cron.Entries()); n != 1 {
		t.Errorf("cron entries = %d, want 1", n)
	}
}

func TestCancelAll(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	defer r.Stop(context.Background())

	r.Register("0 6 * * *", func() {})
	r.Register("@every 1h", func() {})
	r.CancelAll()

	if got := r.Active(); len(got) != 0 {
		t.Errorf("Active after CancelAll = %v", got)
	}
	if n := len(r.cron.Entries()); n != 0 {
		t.Errorf("cron entries = %d, want 0", n)
	}
	r.CancelAll()
}

func TestTriggerFires(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	defer r.Stop(context.Background())

	fired := make(chan struct{}, 1)
	if err := r.Register("@every 1s", func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("trigger did not fire")
	}
}

func TestCancelAllDoesNotInterruptRunningCallback(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	defer r.Stop(context.Background())

	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan struct{})
	r.Register("@every 1s", func() {
		select {
		case <-started:
			return
		default:
		}
		close(started)
		<-release
		close(finished)
	})

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("trigger did not fire")
	}
	r.CancelAll()
	close(release)

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("running callback was interrupted")
	}
}
