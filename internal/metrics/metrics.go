// Package metrics exposes Prometheus collectors for the agent loop.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors reported by the loop controller.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	turns            *prometheus.CounterVec
	rejectedTurns    *prometheus.CounterVec
	analyzerFailures *prometheus.CounterVec
	analyzerDuration *prometheus.HistogramVec
	sessionsActive   prometheus.Gauge
}

// New constructs the collectors and registers them with reg.
// Registration errors panic, mirroring promauto.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pcdoctor",
				Subsystem: "agent",
				Name:      "turns_total",
				Help:      "Completed loop turns by entry point and resulting loop status.",
			},
			[]string{"entry", "loop_status"},
		),
		rejectedTurns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pcdoctor",
				Subsystem: "agent",
				Name:      "rejected_turns_total",
				Help:      "Loop calls rejected before reaching the analyzer.",
			},
			[]string{"entry", "reason"},
		),
		analyzerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pcdoctor",
				Subsystem: "agent",
				Name:      "analyzer_failures_total",
				Help:      "Analyzer calls that failed and were replaced by a blocked decision.",
			},
			[]string{"entry"},
		),
		analyzerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "pcdoctor",
				Subsystem: "agent",
				Name:      "analyzer_duration_seconds",
				Help:      "Wall time spent waiting on the analyzer.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
			},
			[]string{"entry"},
		),
		sessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "pcdoctor",
				Subsystem: "agent",
				Name:      "sessions_active",
				Help:      "Sessions currently held in memory.",
			},
		),
	}

	reg.MustRegister(m.turns, m.rejectedTurns, m.analyzerFailures, m.analyzerDuration, m.sessionsActive)
	return m
}

// ObserveTurn counts a completed turn.
func (m *Metrics) ObserveTurn(entry, loopStatus string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(entry, loopStatus).Inc()
}

// ObserveRejected counts a call rejected before the analyzer ran.
func (m *Metrics) ObserveRejected(entry, reason string) {
	if m == nil {
		return
	}
	m.rejectedTurns.WithLabelValues(entry, reason).Inc()
}

// ObserveAnalyzer records analyzer latency and, when failed, a failure.
func (m *Metrics) ObserveAnalyzer(entry string, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.analyzerDuration.WithLabelValues(entry).Observe(d.Seconds())
	if failed {
		m.analyzerFailures.WithLabelValues(entry).Inc()
	}
}

// SetSessionsActive reports the current number of live sessions.
func (m *Metrics) SetSessionsActive(n int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(n))
}
