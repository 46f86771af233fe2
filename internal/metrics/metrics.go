// Package metrics exposes Prometheus instrumentation for the flow engine.
// A Metrics value is optional everywhere it is accepted; the nil receiver is
// a no-op so callers never need to guard.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	transitions        *prometheus.CounterVec
	validationFailures prometheus.Counter
	commits            *prometheus.CounterVec
	assignments        *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "offramp_transitions_total",
				Help: "Total step transitions, by result.",
			},
			[]string{"result"},
		),
		validationFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "offramp_validation_failures_total",
				Help: "Total forward transitions blocked by validation.",
			},
		),
		commits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "offramp_commits_total",
				Help: "Total persistence commits, by outcome.",
			},
			[]string{"outcome"},
		),
		assignments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "offramp_variant_assignments_total",
				Help: "Total first-time cohort assignments, by variant.",
			},
			[]string{"variant"},
		),
	}
	reg.MustRegister(m.transitions, m.validationFailures, m.commits, m.assignments)
	return m
}

// Transition records a resolved step transition.
func (m *Metrics) Transition(result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(result).Inc()
}

// ValidationFailure records a blocked forward transition.
func (m *Metrics) ValidationFailure() {
	if m == nil {
		return
	}
	m.validationFailures.Inc()
}

// Commit records a persistence commit outcome ("upsert", "insert_fallback",
// "error").
func (m *Metrics) Commit(outcome string) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(outcome).Inc()
}

// Assignment records a first-time cohort assignment.
func (m *Metrics) Assignment(variant string) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues(variant).Inc()
}
