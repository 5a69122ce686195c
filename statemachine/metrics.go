package statemachine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric definitions with appropriate labels.
var (
	// ticksTotal counts ticks per machine, including ticks that fired nothing.
	ticksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sequence_ticks_total",
		Help: "Total number of ticks by machine",
	}, []string{"machine"})

	ruleFiringsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sequence_rule_firings_total",
		Help: "Total number of rule firings by machine and rule kind",
	}, []string{"machine", "kind"})

	stateChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sequence_state_changes_total",
		Help: "Total number of state changes by machine and target state",
	}, []string{"machine", "to_state"})

	tickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sequence_tick_duration_seconds",
		Help:    "Duration of a tick by machine",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"machine"})

	// validationFailuresTotal counts violations reported by failed builds.
	validationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sequence_validation_failures_total",
		Help: "Total number of validation violations by category",
	}, []string{"category"})

	throttledActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sequence_throttled_actions_total",
		Help: "Total number of actions skipped by a rate limit, by machine",
	}, []string{"machine"})
)

func recordTick(machine string, duration time.Duration) {
	name := sanitizeMachine(machine)

	ticksTotal.WithLabelValues(name).Inc()
	tickDuration.WithLabelValues(name).Observe(duration.Seconds())
}

func recordFiring(machine string, kind Kind) {
	ruleFiringsTotal.WithLabelValues(sanitizeMachine(machine), kind.String()).Inc()
}

func recordStateChange(machine, to string) {
	stateChangesTotal.WithLabelValues(sanitizeMachine(machine), to).Inc()
}

func recordValidationFailures(violations []Violation) {
	for _, v := range violations {
		validationFailuresTotal.WithLabelValues(v.Category).Inc()
	}
}

func sanitizeMachine(machine string) string {
	if machine == "" {
		return "unnamed"
	}

	return machine
}
