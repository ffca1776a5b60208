// Package metrics exposes Prometheus collectors for the audit stages, the
// merge stores and the arbitration pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Task status label values.
const (
	StatusOK       = "ok"
	StatusFailed   = "failed"
	StatusTimedOut = "timed_out"
)

// Submission result label values.
const (
	SubmitAccepted = "accepted"
	SubmitRejected = "rejected"
	SubmitLate     = "late"
)

var (
	// stageDuration measures wall time from fan-out to join barrier.
	// Labels: stage (detectives, judges, ...)
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tribunal",
		Subsystem: "fanout",
		Name:      "stage_duration_seconds",
		Help:      "Time from stage fan-out to join barrier in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"stage"})

	// taskOutcomes counts producer tasks by final status.
	// Labels: stage, status (ok, failed, timed_out)
	taskOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tribunal",
		Subsystem: "fanout",
		Name:      "tasks_total",
		Help:      "Producer tasks by final status",
	}, []string{"stage", "status"})

	// submissions counts store submissions.
	// Labels: store, result (accepted, rejected, late)
	submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tribunal",
		Subsystem: "store",
		Name:      "submissions_total",
		Help:      "Merge store submissions by result",
	}, []string{"store", "result"})

	// rulesFired counts arbitration rules that produced an effect.
	// Labels: rule
	rulesFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tribunal",
		Subsystem: "arbitrate",
		Name:      "rules_fired_total",
		Help:      "Arbitration rules that fired",
	}, []string{"rule"})

	// finalScores tracks the distribution of emitted criterion scores.
	finalScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tribunal",
		Subsystem: "arbitrate",
		Name:      "final_score",
		Help:      "Distribution of final criterion scores",
		Buckets:   []float64{1, 2, 3, 4, 5},
	})
)

// ObserveStage records how long a stage took to reach its join barrier.
func ObserveStage(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// CountTask records one producer task outcome.
func CountTask(stage, status string) {
	taskOutcomes.WithLabelValues(stage, status).Inc()
}

// CountSubmission records one store submission.
func CountSubmission(store, result string) {
	submissions.WithLabelValues(store, result).Inc()
}

// CountRule records one fired arbitration rule.
func CountRule(rule string) {
	rulesFired.WithLabelValues(rule).Inc()
}

// ObserveFinalScore records one emitted criterion score.
func ObserveFinalScore(score int) {
	finalScores.Observe(float64(score))
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
