package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/event-calendar-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer,
// the occurrence cache and the recurrence engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	materializeDuration prometheus.Histogram
	occurrences         prometheus.Counter
	invalidRules        prometheus.Counter
	truncations         prometheus.Counter
	splits              *prometheus.CounterVec
	mutations           *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the Prometheus collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "occurrence_cache_latency_seconds",
		Help:    "Latency for occurrence cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "occurrence_cache_write_seconds",
		Help:    "Latency for occurrence cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "occurrence_cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "occurrence_cache_hits_total",
		Help: "Total occurrence cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "occurrence_cache_misses_total",
		Help: "Total occurrence cache misses",
	})

	materializeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "calendar_materialize_duration_seconds",
		Help:    "Time spent expanding one series for a query window",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	})

	occurrences := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "calendar_occurrences_materialized_total",
		Help: "Occurrences produced by the materializer",
	})

	invalidRules := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "calendar_invalid_rules_total",
		Help: "Series skipped because their stored recurrence rule or timezone is invalid",
	})

	truncations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "calendar_expansion_truncated_total",
		Help: "Expansions that hit the occurrence cap",
	})

	splits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_series_splits_total",
		Help: "Series split requests by outcome",
	}, []string{"outcome"})

	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_occurrence_mutations_total",
		Help: "Occurrence level mutations by action",
	}, []string{"action"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		materializeDuration, occurrences, invalidRules, truncations, splits, mutations, goroutines)

	return &MetricsService{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		cacheLatency:        cacheLatency,
		cacheWrite:          cacheWrite,
		cacheHitRatio:       cacheHitRatio,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
		materializeDuration: materializeDuration,
		occurrences:         occurrences,
		invalidRules:        invalidRules,
		truncations:         truncations,
		splits:              splits,
		mutations:           mutations,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Gatherer exposes the registry, mainly for tests.
func (m *MetricsService) Gatherer() prometheus.Gatherer {
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveMaterialize records one series expansion.
func (m *MetricsService) ObserveMaterialize(occurrences int, truncated bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.materializeDuration.Observe(duration.Seconds())
	m.occurrences.Add(float64(occurrences))
	if truncated {
		m.truncations.Inc()
	}
}

// RecordInvalidRule counts a series dropped from a listing.
func (m *MetricsService) RecordInvalidRule() {
	if m == nil {
		return
	}
	m.invalidRules.Inc()
}

// RecordSplit counts a split by outcome.
func (m *MetricsService) RecordSplit(outcome models.SplitOutcome) {
	if m == nil {
		return
	}
	m.splits.WithLabelValues(string(outcome)).Inc()
}

// RecordMutation counts an occurrence level mutation; action is an audit action.
func (m *MetricsService) RecordMutation(action string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(action).Inc()
}
