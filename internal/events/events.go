// Package events carries monitoring notifications to whoever is listening.
package events

import (
	"encoding/json"
	"time"

	"github.com/mikeyg42/plantwatch/internal/report"
)

// Kind names an event on the wire.
type Kind string

const (
	TriggersChanged  Kind = "timeScheduled"
	ProcessingStatus Kind = "processingStatus"
	BatchComplete    Kind = "processComplete"
	Error            Kind = "errorReport"
	Stopped          Kind = "stoppedMonitoring"
	MonitoringUpdate Kind = "monitoringUpdate"
)

// Event is one notification. Payload depends on Kind:
// []string for TriggersChanged, bool for ProcessingStatus,
// []report.Result for BatchComplete, string for Error and MonitoringUpdate,
// nil for Stopped.
type Event struct {
	Kind    Kind      `json:"type"`
	Time    time.Time `json:"time"`
	RunID   string    `json:"runId,omitempty"`
	Payload any       `json:"payload"`
}

// Emitter accepts events. Emit must not block on slow consumers.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

func (f EmitterFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(Event) {})

func newEvent(kind Kind, payload any) Event {
	return Event{Kind: kind, Time: time.Now().UTC(), Payload: payload}
}

func NewTriggersChanged(exprs []string) Event {
	out := make([]string, len(exprs))
	copy(out, exprs)
	return newEvent(TriggersChanged, out)
}

func NewProcessingStatus(active bool) Event {
	return newEvent(ProcessingStatus, active)
}

func NewBatchComplete(results []report.Result) Event {
	if results == nil {
		results = []report.Result{}
	}
	return newEvent(BatchComplete, results)
}

func NewError(msg string) Event {
	return newEvent(Error, msg)
}

func NewStopped() Event {
	return newEvent(Stopped, nil)
}

func NewMonitoringUpdate(msg string) Event {
	return newEvent(MonitoringUpdate, msg)
}

// WithRun tags the event with a run id.
func (e Event) WithRun(runID string) Event {
	e.RunID = runID
	return e
}

// JSON encodes the event for text transports.
func (e Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}
