// Package observability exposes simulation metrics to Prometheus.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/automon-world/internal/policy"
)

// Metrics implements engine.Metrics and policy.Observer. Each instance owns
// its registry so tests can build as many as they like.
type Metrics struct {
	reg *prometheus.Registry

	ticks        *prometheus.CounterVec
	tickDuration prometheus.Histogram
	decisions    *prometheus.CounterVec
	decisionTime *prometheus.HistogramVec
	battles      *prometheus.CounterVec
	events       *prometheus.CounterVec
	saveFailures prometheus.Counter
}

// New creates and registers every collector, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worldsim_ticks_total",
			Help: "Ticks run, by outcome.",
		}, []string{"outcome"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "worldsim_tick_duration_seconds",
			Help:    "Wall time of one tick.",
			Buckets: prometheus.DefBuckets,
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worldsim_decisions_total",
			Help: "Trainer decisions, by source and fallback cause.",
		}, []string{"source", "cause"}),
		decisionTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worldsim_decision_duration_seconds",
			Help:    "Time spent producing one decision.",
			Buckets: []float64{.001, .01, .1, .5, 1, 2, 4, 8, 16},
		}, []string{"source"}),
		battles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worldsim_battles_total",
			Help: "Battles resolved, by kind and whether the initiator won.",
		}, []string{"kind", "initiator_won"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worldsim_events_total",
			Help: "World events logged, by category.",
		}, []string{"category"}),
		saveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worldsim_snapshot_save_failures_total",
			Help: "Snapshot saves that failed after retries.",
		}),
	}
	m.reg.MustRegister(
		m.ticks, m.tickDuration, m.decisions, m.decisionTime, m.battles, m.events, m.saveFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// TickCompleted records one tick.
func (m *Metrics) TickCompleted(d time.Duration, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "failed"
	}
	m.ticks.WithLabelValues(outcome).Inc()
	m.tickDuration.Observe(d.Seconds())
}

// BattleResolved records one battle.
func (m *Metrics) BattleResolved(kind string, won bool) {
	m.battles.WithLabelValues(kind, strconv.FormatBool(won)).Inc()
}

// EventLogged records one world event.
func (m *Metrics) EventLogged(category string) {
	m.events.WithLabelValues(category).Inc()
}

// SnapshotSaveFailed records a save that gave up.
func (m *Metrics) SnapshotSaveFailed() {
	m.saveFailures.Inc()
}

// ObserveDecision records where a decision came from. kind is empty for
// reasoner decisions and the fallback cause otherwise.
func (m *Metrics) ObserveDecision(source policy.Source, kind string, latency time.Duration) {
	if kind == "" {
		kind = "none"
	}
	m.decisions.WithLabelValues(string(source), kind).Inc()
	m.decisionTime.WithLabelValues(string(source)).Observe(latency.Seconds())
}
