// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
// Record methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Upstream metrics
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamDurationSeconds *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	CacheErrorsTotal *prometheus.CounterVec

	// Name index metrics
	NameIndexInsertionsTotal *prometheus.CounterVec

	// Department warmup metrics
	DepartmentWarmupsTotal   *prometheus.CounterVec
	DepartmentWarmupDuration prometheus.Histogram
	DepartmentCount          *prometheus.GaugeVec

	// Snapshot metrics
	SnapshotTotal *prometheus.CounterVec

	// API metrics
	RateLimitDropsTotal prometheus.Counter
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		UpstreamRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nycu_upstream_requests_total",
				Help: "Total number of catalog API requests by operation and status",
			},
			[]string{"operation", "status"}, // status: success, error
		),

		UpstreamDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nycu_upstream_duration_seconds",
				Help:    "Catalog API request duration in seconds by operation",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"operation"},
		),

		CacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nycu_cache_hits_total",
				Help: "Total number of response cache hits by operation",
			},
			[]string{"operation"},
		),

		CacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nycu_cache_misses_total",
				Help: "Total number of response cache misses (including forced refreshes) by operation",
			},
			[]string{"operation"},
		),

		CacheErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nycu_cache_errors_total",
				Help: "Total number of key-value store failures by direction",
			},
			[]string{"op"}, // op: read, write
		),

		NameIndexInsertionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nycu_name_index_insertions_total",
				Help: "Total number of names added to the autocomplete index",
			},
			[]string{"kind"}, // kind: course, teacher
		),

		DepartmentWarmupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nycu_department_warmups_total",
				Help: "Total number of department hierarchy crawls by status",
			},
			[]string{"status"}, // status: success, error
		),

		DepartmentWarmupDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nycu_department_warmup_duration_seconds",
				Help:    "Department hierarchy crawl duration in seconds",
				Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
			},
		),

		DepartmentCount: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nycu_departments",
				Help: "Number of departments known per academic period",
			},
			[]string{"period"},
		),

		SnapshotTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nycu_snapshot_total",
				Help: "Total number of store snapshot transfers by direction and status",
			},
			[]string{"op", "status"}, // op: restore, publish
		),

		RateLimitDropsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nycu_api_rate_limited_total",
				Help: "Total number of API requests rejected by the per-client rate limit",
			},
		),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordUpstream records one catalog API round trip.
func (m *Metrics) RecordUpstream(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(operation, status(err)).Inc()
	m.UpstreamDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCacheHit records a response cache hit.
func (m *Metrics) RecordCacheHit(operation string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(operation).Inc()
}

// RecordCacheMiss records a response cache miss or forced refresh.
func (m *Metrics) RecordCacheMiss(operation string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(operation).Inc()
}

// RecordCacheError records a store failure; op is "read" or "write".
func (m *Metrics) RecordCacheError(op string) {
	if m == nil {
		return
	}
	m.CacheErrorsTotal.WithLabelValues(op).Inc()
}

// RecordNameInsertions adds n new names of kind ("course" or "teacher").
func (m *Metrics) RecordNameInsertions(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.NameIndexInsertionsTotal.WithLabelValues(kind).Add(float64(n))
}

// RecordDepartmentWarmup records one completed department crawl.
func (m *Metrics) RecordDepartmentWarmup(period string, count int, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.DepartmentWarmupsTotal.WithLabelValues(status(err)).Inc()
	m.DepartmentWarmupDuration.Observe(duration.Seconds())
	if err == nil {
		m.DepartmentCount.WithLabelValues(period).Set(float64(count))
	}
}

// RecordSnapshot records a snapshot upload or download.
func (m *Metrics) RecordSnapshot(op string, err error) {
	if m == nil {
		return
	}
	m.SnapshotTotal.WithLabelValues(op, status(err)).Inc()
}

// RecordRateLimitDrop counts one rejected API request.
func (m *Metrics) RecordRateLimitDrop() {
	if m == nil {
		return
	}
	m.RateLimitDropsTotal.Inc()
}
