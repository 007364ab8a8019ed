// Package metrics holds the prometheus collectors shared by the runtime.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "turnkit"

// Metrics is nil-safe: every method on a nil *Metrics is a no-op.
type Metrics struct {
	ToolCalls    *prometheus.CounterVec
	ToolDuration *prometheus.HistogramVec
	MemoryOps    *prometheus.CounterVec
	Turns        *prometheus.CounterVec
	Deltas       *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ToolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool dispatches by tool and outcome",
		}, []string{"tool", "outcome"}),
		ToolDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Tool execution latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		MemoryOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_operations_total",
			Help:      "Memory store operations by command and outcome",
		}, []string{"command", "outcome"}),
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Finished turns by final status",
		}, []string{"status"}),
		Deltas: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_deltas_total",
			Help:      "Decoded stream deltas by kind",
		}, []string{"kind"}),
		gatherer: reg,
	}
}

func (m *Metrics) RecordTool(tool, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, outcome).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

func (m *Metrics) RecordMemoryOp(command, outcome string) {
	if m == nil {
		return
	}
	m.MemoryOps.WithLabelValues(command, outcome).Inc()
}

func (m *Metrics) RecordTurn(status string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordDelta(kind string) {
	if m == nil {
		return
	}
	m.Deltas.WithLabelValues(kind).Inc()
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
