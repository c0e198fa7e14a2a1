package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mnuel1/spacio-backend/internal/models"
)

const metricsNamespace = "spacio"

// MetricsService owns a private Prometheus registry plus the counters behind
// the JSON summary endpoint.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	httpDuration *prometheus.HistogramVec
	httpTotal    *prometheus.CounterVec
	dbDuration   *prometheus.HistogramVec
	cacheOps     *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec

	validations  *prometheus.CounterVec
	runs         *prometheus.CounterVec
	placed       prometheus.Counter
	unassigned   prometheus.Counter
	runDuration  prometheus.Histogram
	conflictsNow *prometheus.GaugeVec

	requests, requestNanos atomic.Uint64
	queries, queryNanos    atomic.Uint64
	hits, misses           atomic.Uint64
	runCount, blocks       atomic.Uint64
	rejections             atomic.Uint64
	openConflicts          atomic.Int64
}

// NewMetricsService registers every collector on a fresh registry.
func NewMetricsService() *MetricsService {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &MetricsService{
		registry: reg,
		handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),

		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests by route template.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		httpTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route template.",
		}, []string{"method", "route", "status"}),
		dbDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "db_query_duration_seconds",
			Help:      "Duration of instrumented repository queries.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"query"}),
		cacheOps: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cache_operation_seconds",
			Help:      "Latency of conflict report cache reads and writes.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"op"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_lookups_total",
			Help:      "Conflict report cache lookups by result.",
		}, []string{"result"}),

		validations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "validator_decisions_total",
			Help:      "Meeting validation outcomes by rule.",
		}, []string{"result", "rule"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "autoschedule_runs_total",
			Help:      "Auto-schedule runs by outcome.",
		}, []string{"status"}),
		placed: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "autoschedule_placements_total",
			Help:      "Blocks placed by the auto-scheduler.",
		}),
		unassigned: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "autoschedule_unassigned_total",
			Help:      "Subject and section pairings the auto-scheduler could not place.",
		}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "autoschedule_duration_seconds",
			Help:      "Wall time of auto-schedule runs.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		conflictsNow: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "conflicts_detected",
			Help:      "Conflicts found by the latest scan, by type.",
		}, []string{"type"}),
	}
	return m
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

// ObserveHTTPRequest records one served request. route is the gin route template.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
	m.httpTotal.WithLabelValues(method, route, code).Inc()
	m.requests.Add(1)
	m.requestNanos.Add(uint64(duration))
}

// RecordCacheOperation records a cache read and whether it hit.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheOps.WithLabelValues("get").Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		m.hits.Add(1)
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
	m.misses.Add(1)
}

// ObserveCacheWrite records a cache write.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheOps.WithLabelValues("set").Observe(duration.Seconds())
}

// ObserveDBQuery records a repository query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbDuration.WithLabelValues(label).Observe(duration.Seconds())
	m.queries.Add(1)
	m.queryNanos.Add(uint64(duration))
}

// RecordValidation counts a validator decision. An empty rule means accepted.
func (m *MetricsService) RecordValidation(rule string) {
	if m == nil {
		return
	}
	if rule == "" {
		m.validations.WithLabelValues("accepted", "none").Inc()
		return
	}
	m.validations.WithLabelValues("rejected", rule).Inc()
	m.rejections.Add(1)
}

// RecordAutoSchedule records one auto-schedule run.
func (m *MetricsService) RecordAutoSchedule(status string, placed, unassigned int, duration time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	m.placed.Add(float64(placed))
	m.unassigned.Add(float64(unassigned))
	m.runDuration.Observe(duration.Seconds())
	m.runCount.Add(1)
	m.blocks.Add(uint64(placed))
}

// RecordConflicts publishes the per-type counts of the latest scan.
func (m *MetricsService) RecordConflicts(counts map[models.ConflictType]int) {
	if m == nil {
		return
	}
	var total int64
	for _, kind := range models.ConflictTypes {
		m.conflictsNow.WithLabelValues(string(kind)).Set(float64(counts[kind]))
		total += int64(counts[kind])
	}
	m.openConflicts.Store(total)
}

// Snapshot returns the aggregates served by the JSON summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits, misses := m.hits.Load(), m.misses.Load()
	requests, queries := m.requests.Load(), m.queries.Load()

	return models.SystemMetrics{
		CacheHitRatio:            ratio(hits, hits+misses),
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: averageMillis(m.requestNanos.Load(), requests),
		DBQueryCount:             queries,
		AverageDBQueryDurationMs: averageMillis(m.queryNanos.Load(), queries),
		AutoScheduleRuns:         m.runCount.Load(),
		BlocksPlaced:             m.blocks.Load(),
		ValidationRejections:     m.rejections.Load(),
		OpenConflicts:            m.openConflicts.Load(),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

func ratio(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

func averageMillis(nanos, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return float64(nanos) / float64(count) / float64(time.Millisecond)
}
