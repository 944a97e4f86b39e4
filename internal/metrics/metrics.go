// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

// Package metrics exposes Prometheus instrumentation for the acquisition
// pipeline: per-source fetch outcomes, which cascade tier answered, cache
// and breaker behavior, and metered-source quota usage.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector the pipeline records into. Construct one
// per process; collectors register on the given registerer at construction.
type Metrics struct {
	FetchAttemptsTotal *prometheus.CounterVec
	FetchDuration      *prometheus.HistogramVec

	TierServedTotal  *prometheus.CounterVec
	FallbackTotal    *prometheus.CounterVec
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	BreakerOpenTotal *prometheus.CounterVec
	BreakerState     *prometheus.GaugeVec
	ValidationFailed *prometheus.CounterVec
}

// New registers the pipeline collectors on reg. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh
// prometheus.NewRegistry so parallel packages never collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FetchAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zrates_fetch_attempts_total",
				Help: "Live fetch attempts per source and outcome (success, failure, skipped).",
			},
			[]string{"source", "outcome"},
		),

		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zrates_fetch_duration_seconds",
				Help:    "Wall time of a single live fetch attempt.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 9), // 50ms .. ~12.8s
			},
			[]string{"source"},
		),

		TierServedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zrates_tier_served_total",
				Help: "Requests answered per kind and cascade tier (cache, live, emergency, snapshot, constants).",
			},
			[]string{"kind", "tier"},
		),

		FallbackTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zrates_fallback_total",
				Help: "Requests that could not be served from a live source or fresh cache.",
			},
			[]string{"kind"},
		),

		CacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zrates_cache_hits_total",
				Help: "Cache hits per kind and state (fresh, emergency).",
			},
			[]string{"kind", "state"},
		),

		CacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zrates_cache_misses_total",
				Help: "Cache lookups that found nothing usable.",
			},
			[]string{"kind"},
		),

		BreakerOpenTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zrates_breaker_open_total",
				Help: "Times a data kind's circuit breaker tripped open.",
			},
			[]string{"kind"},
		),

		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zrates_breaker_open",
				Help: "Whether a data kind's circuit breaker is currently open (1) or closed (0).",
			},
			[]string{"kind"},
		),

		ValidationFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zrates_validation_failures_total",
				Help: "Fetched observations rejected by plausibility validation.",
			},
			[]string{"source"},
		),
	}
}

// RegisterQuotaGauge exposes a metered source's month-to-date quota usage on
// reg. The value comes from used at scrape time, so the gauge tracks the
// counter file without anyone pushing updates.
func RegisterQuotaGauge(reg prometheus.Registerer, source string, used func() float64) prometheus.GaugeFunc {
	return promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "zrates_quota_requests_used",
		Help:        "Requests spent against a metered source's monthly quota.",
		ConstLabels: prometheus.Labels{"source": source},
	}, used)
}

// Fetch outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

func (m *Metrics) RecordFetch(source, outcome string, seconds float64) {
	m.FetchAttemptsTotal.WithLabelValues(source, outcome).Inc()
	m.FetchDuration.WithLabelValues(source).Observe(seconds)
}

func (m *Metrics) RecordTierServed(kind, tier string) {
	m.TierServedTotal.WithLabelValues(kind, tier).Inc()
}

func (m *Metrics) RecordFallback(kind string) {
	m.FallbackTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordCacheHit(kind, state string) {
	m.CacheHitsTotal.WithLabelValues(kind, state).Inc()
}

func (m *Metrics) RecordCacheMiss(kind string) {
	m.CacheMissesTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordBreakerOpened(kind string) {
	m.BreakerOpenTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetBreakerState(kind string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	m.BreakerState.WithLabelValues(kind).Set(v)
}

func (m *Metrics) RecordValidationFailure(source string) {
	m.ValidationFailed.WithLabelValues(source).Inc()
}
