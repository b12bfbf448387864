// Package metrics exposes capture and pipeline counters for Prometheus.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "plantwatch"

type Metrics struct {
	registry *prometheus.Registry

	runs              *prometheus.CounterVec
	runDuration       prometheus.Histogram
	unavailableSlots  prometheus.Gauge
	slotFailures      *prometheus.CounterVec
	classifications   *prometheus.CounterVec
	diseaseDetections *prometheus.CounterVec
	alerts            *prometheus.CounterVec
	skippedTriggers   prometheus.Counter
	processing        prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_runs_total",
			Help:      "Capture runs grouped by final state.",
		}, []string{"state"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capture_run_duration_seconds",
			Help:      "Wall time of a capture run.",
			Buckets:   []float64{30, 60, 120, 300, 600, 900, 1200, 1800},
		}),
		unavailableSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unavailable_slots",
			Help:      "Slots marked unavailable in the last completed run.",
		}),
		slotFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_failures_total",
			Help:      "Camera slots that failed a readiness gate.",
		}, []string{"camera", "gate"}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Classification calls grouped by outcome.",
		}, []string{"outcome"}),
		diseaseDetections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disease_detections_total",
			Help:      "Labels over the disease threshold.",
		}, []string{"label"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Disease alert mails grouped by outcome.",
		}, []string{"outcome"}),
		skippedTriggers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_triggers_total",
			Help:      "Scheduled triggers skipped because a run was active.",
		}),
		processing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "processing",
			Help:      "1 while a batch is being classified.",
		}),
	}

	m.registry.MustRegister(
		m.runs,
		m.runDuration,
		m.unavailableSlots,
		m.slotFailures,
		m.classifications,
		m.diseaseDetections,
		m.alerts,
		m.skippedTriggers,
		m.processing,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(zap.L().Named("metrics")),
	})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRun records a finished capture run.
func (m *Metrics) ObserveRun(state string, elapsed time.Duration, unavailable, enableFailures, videoFailures []int) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(state).Inc()
	m.runDuration.Observe(elapsed.Seconds())
	m.unavailableSlots.Set(float64(len(unavailable)))
	for _, slot := range enableFailures {
		m.slotFailures.WithLabelValues(strconv.Itoa(slot+1), "enable").Inc()
	}
	for _, slot := range videoFailures {
		m.slotFailures.WithLabelValues(strconv.Itoa(slot+1), "video").Inc()
	}
}

func (m *Metrics) ClassificationSucceeded() {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues("ok").Inc()
}

func (m *Metrics) ClassificationFailed() {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues("error").Inc()
}

func (m *Metrics) DiseaseDetected(label string) {
	if m == nil {
		return
	}
	m.diseaseDetections.WithLabelValues(label).Inc()
}

// AlertSent records a mail attempt; err nil counts as sent.
func (m *Metrics) AlertSent(err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.alerts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TriggerSkipped() {
	if m == nil {
		return
	}
	m.skippedTriggers.Inc()
}

func (m *Metrics) SetProcessing(active bool) {
	if m == nil {
		return
	}
	if active {
		m.processing.Set(1)
	} else {
		m.processing.Set(0)
	}
}
