package capture

import (
	"time"

	"github.com/mikeyg42/plantwatch/internal/coords"
)

// Result is what a run hands to the classification pipeline.
type Result struct {
	RunID      string
	State      State
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time

	// Unavailable is the union of both gates, ascending.
	Unavailable    []int
	EnableFailures []int
	VideoFailures  []int
}

// Completed reports whether the run reached Done.
func (r Result) Completed() bool {
	return r.State == Done
}

// Available returns the slots not marked unavailable, ascending.
func (r Result) Available() []int {
	return NewUnavailableSet(r.Unavailable...).Available()
}

// Captured is the number of slots that passed both gates.
func (r Result) Captured() int {
	return coords.Slots - len(r.Unavailable)
}
