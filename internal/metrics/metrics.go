// Package metrics exposes Prometheus instrumentation for the tunnel supervisor.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cycle outcomes.
const (
	OutcomeHealthy   = "healthy"
	OutcomeCreated   = "created"
	OutcomeRecreated = "recreated"
	OutcomeError     = "error"
)

// Recreation reasons.
const (
	ReasonDrift       = "drift"
	ReasonUnreachable = "unreachable"
	ReasonNoPeer      = "no_peer"
)

// Metrics holds Prometheus metrics for the supervisor. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Cycles       *prometheus.CounterVec
	Recreations  *prometheus.CounterVec
	Probes       *prometheus.CounterVec
	ProbeLatency prometheus.Histogram
	TunnelUp     prometheus.Gauge
	LastSuccess  prometheus.Gauge
}

// New creates the supervisor metrics and registers them with reg.
// A nil reg leaves the metrics unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tunneld",
				Name:      "reconcile_cycles_total",
				Help:      "Reconciliation cycles by outcome.",
			},
			[]string{"outcome"},
		),
		Recreations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tunneld",
				Name:      "interface_recreations_total",
				Help:      "Tunnel interface removals followed by recreation, by reason.",
			},
			[]string{"reason"},
		),
		Probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tunneld",
				Name:      "probes_total",
				Help:      "Reachability probes by result.",
			},
			[]string{"result"},
		),
		ProbeLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "tunneld",
				Name:      "probe_duration_seconds",
				Help:      "Duration of reachability probes.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
			},
		),
		TunnelUp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "tunneld",
				Name:      "tunnel_up",
				Help:      "1 if the last cycle left the tunnel configured, 0 otherwise.",
			},
		),
		LastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "tunneld",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful reconciliation cycle.",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Cycles, m.Recreations, m.Probes, m.ProbeLatency, m.TunnelUp, m.LastSuccess)
	}
	return m
}

// ObserveCycle records the outcome of one reconciliation cycle.
func (m *Metrics) ObserveCycle(outcome string) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(outcome).Inc()
	if outcome == OutcomeError {
		m.TunnelUp.Set(0)
		return
	}
	m.TunnelUp.Set(1)
	m.LastSuccess.SetToCurrentTime()
}

// ObserveRecreation records a teardown performed before recreating the interface.
func (m *Metrics) ObserveRecreation(reason string) {
	if m == nil {
		return
	}
	m.Recreations.WithLabelValues(reason).Inc()
}

// ObserveProbe records a probe result and its duration.
func (m *Metrics) ObserveProbe(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.Probes.WithLabelValues(result).Inc()
	m.ProbeLatency.Observe(d.Seconds())
}
