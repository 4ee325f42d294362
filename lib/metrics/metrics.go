// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records job outcomes, cache behavior, and engine timings.
type Metrics struct {
	registry *prometheus.Registry

	jobsTotal      *prometheus.CounterVec
	cacheHitsTotal prometheus.Counter
	sharedTotal    prometheus.Counter
	jobsInFlight   prometheus.Gauge
	engineDuration *prometheus.HistogramVec
}

// New creates collectors registered on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		jobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_slice_jobs_total",
				Help: "Slice jobs by final outcome",
			},
			[]string{"outcome"},
		),
		cacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "strata_slice_cache_hits_total",
			Help: "Slice jobs answered from a validated cached G-code file",
		}),
		sharedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "strata_slice_shared_total",
			Help: "Slice requests that joined an identical job already in flight",
		}),
		jobsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "strata_slice_jobs_in_flight",
			Help: "Slice jobs currently executing",
		}),
		engineDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "strata_engine_duration_seconds",
				Help:    "Wall time of engine runs",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
			},
			[]string{"engine", "status"},
		),
	}
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveJob counts a finished job.
func (m *Metrics) ObserveJob(outcome string, cacheHit bool) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(outcome).Inc()
	if cacheHit {
		m.cacheHitsTotal.Inc()
	}
}

// ObserveShared counts a request that waited on another caller's
// identical job.
func (m *Metrics) ObserveShared() {
	if m == nil {
		return
	}
	m.sharedTotal.Inc()
}

// JobStarted marks a job as executing. Call the returned function
// when it finishes.
func (m *Metrics) JobStarted() func() {
	if m == nil {
		return func() {}
	}
	m.jobsInFlight.Inc()
	return m.jobsInFlight.Dec
}

// ObserveEngine records one engine run.
func (m *Metrics) ObserveEngine(engine string, duration time.Duration, succeeded bool) {
	if m == nil {
		return
	}
	status := "success"
	if !succeeded {
		status = "failure"
	}
	m.engineDuration.WithLabelValues(engine, status).Observe(duration.Seconds())
}

// WriteTextfile writes the current values in the Prometheus text
// format to path, atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
