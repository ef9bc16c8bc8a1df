// Package metrics exports maximizer progress as Prometheus metrics
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/psychicsniffle/sniffle/internal/improvement"
)

// Metric names
const (
	MetricGenerations   = "sniffle_generations_total"
	MetricBestFitness   = "sniffle_best_fitness"
	MetricMeanFitness   = "sniffle_mean_fitness"
	MetricFitnessStdDev = "sniffle_fitness_stddev"
	MetricContrast      = "sniffle_distribution_contrast"
	MetricCrankSeconds  = "sniffle_crank_duration_seconds"
	MetricCrankErrors   = "sniffle_crank_errors_total"
	MetricSessions      = "sniffle_sessions_active"
)

const sessionLabel = "session"

// Recorder owns the sniffle collectors and the registry they are registered with.
// It is safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	generations *prometheus.CounterVec
	best        *prometheus.GaugeVec
	mean        *prometheus.GaugeVec
	stddev      *prometheus.GaugeVec
	contrast    *prometheus.GaugeVec
	crank       *prometheus.HistogramVec
	errors      *prometheus.CounterVec
	sessions    prometheus.Gauge

	mu   sync.Mutex
	last map[string]time.Time
}

// NewRecorder registers the collectors with reg, or with a fresh registry when reg is nil
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	labels := []string{sessionLabel}
	r := &Recorder{
		registry: reg,
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricGenerations,
			Help: "Generations cranked per session.",
		}, labels),
		best: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: MetricBestFitness,
			Help: "Best fitness of the latest evaluated generation.",
		}, labels),
		mean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: MetricMeanFitness,
			Help: "Mean fitness of the latest evaluated generation.",
		}, labels),
		stddev: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: MetricFitnessStdDev,
			Help: "Fitness standard deviation of the latest evaluated generation.",
		}, labels),
		contrast: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: MetricContrast,
			Help: "Smallest per-byte histogram peak-to-floor distance, in [0,1].",
		}, labels),
		crank: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricCrankSeconds,
			Help:    "Wall time of one generation.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, labels),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricCrankErrors,
			Help: "Cranks that failed with an invariant error.",
		}, labels),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricSessions,
			Help: "Maximizer sessions currently held.",
		}),
		last: make(map[string]time.Time),
	}

	reg.MustRegister(r.generations, r.best, r.mean, r.stddev, r.contrast, r.crank, r.errors, r.sessions)
	return r
}

// Registry returns the registry backing the recorder
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveGeneration records the statistics of one generation and how long it took
func (r *Recorder) ObserveGeneration(session string, step improvement.GenerationStep, elapsed time.Duration) {
	r.generations.WithLabelValues(session).Inc()
	r.best.WithLabelValues(session).Set(step.Best)
	r.mean.WithLabelValues(session).Set(step.Mean)
	r.stddev.WithLabelValues(session).Set(step.StdDev)
	if elapsed > 0 {
		r.crank.WithLabelValues(session).Observe(elapsed.Seconds())
	}
}

// ObserveContrast records the distribution contrast of a session
func (r *Recorder) ObserveContrast(session string, contrast float64) {
	r.contrast.WithLabelValues(session).Set(contrast)
}

// CrankFailed counts a failed crank
func (r *Recorder) CrankFailed(session string) {
	r.errors.WithLabelValues(session).Inc()
}

// SessionOpened counts a new session
func (r *Recorder) SessionOpened(session string) {
	r.sessions.Inc()
}

// SessionClosed drops every series of the session
func (r *Recorder) SessionClosed(session string) {
	r.sessions.Dec()
	for _, vec := range []interface{ DeleteLabelValues(...string) bool }{
		r.generations, r.best, r.mean, r.stddev, r.contrast, r.crank, r.errors,
	} {
		vec.DeleteLabelValues(session)
	}

	r.mu.Lock()
	delete(r.last, session)
	r.mu.Unlock()
}

// Reporter returns a progress callback that records every step under session.
// Elapsed time is measured between consecutive calls.
func (r *Recorder) Reporter(session string) func(improvement.GenerationStep) {
	return func(step improvement.GenerationStep) {
		now := time.Now()
		r.mu.Lock()
		prev, ok := r.last[session]
		r.last[session] = now
		r.mu.Unlock()

		var elapsed time.Duration
		if ok {
			elapsed = now.Sub(prev)
		}
		r.ObserveGeneration(session, step, elapsed)
	}
}
