// Package metrics exposes calibration telemetry as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "q2kcal"

// Outcome labels for the evaluations counter.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeUndefined = "undefined"
)

// Collector owns a private registry so several calibrations in one process
// (and tests) do not collide on the global one.
type Collector struct {
	registry *prometheus.Registry

	evaluations *prometheus.CounterVec
	duration    prometheus.Histogram
	inFlight    prometheus.Gauge
	best        prometheus.Gauge
	generation  prometheus.Gauge
	runs        *prometheus.CounterVec
}

// NewCollector creates and registers all calibration metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Candidate evaluations by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Wall-clock time of one candidate evaluation.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 12),
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "evaluations_in_flight",
			Help:      "Evaluations currently running.",
		}),
		best: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_fitness",
			Help:      "Best fitness found so far.",
		}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation",
			Help:      "Last completed search generation.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished calibration runs by status.",
		}, []string{"status"}),
	}
	c.registry.MustRegister(c.evaluations, c.duration, c.inFlight, c.best, c.generation, c.runs)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Started marks an evaluation as in flight.
func (c *Collector) Started() {
	c.inFlight.Inc()
}

// ObserveEvaluation records a finished evaluation.
func (c *Collector) ObserveEvaluation(outcome string, d time.Duration) {
	c.inFlight.Dec()
	c.evaluations.WithLabelValues(outcome).Inc()
	c.duration.Observe(d.Seconds())
}

// SetBest records a new best fitness.
func (c *Collector) SetBest(fitness float64) {
	c.best.Set(fitness)
}

// SetGeneration records the last completed generation.
func (c *Collector) SetGeneration(gen int) {
	c.generation.Set(float64(gen))
}

// RunFinished counts a finished run.
func (c *Collector) RunFinished(status string) {
	c.runs.WithLabelValues(status).Inc()
}
