// Package observability holds the Prometheus instruments shared across the service.
package observability

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu  sync.Mutex
	ins *instruments
)

type instruments struct {
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	cacheOpTotal               *prometheus.CounterVec
	cacheOpDurationSeconds     *prometheus.HistogramVec
	cacheResults               *prometheus.CounterVec
	warehouseQuerySeconds      *prometheus.HistogramVec
	buildInfo                  *prometheus.GaugeVec
}

// Init registers the instruments on reg. Safe to call more than once; later
// calls rebind the package to the new registry (tests use fresh registries).
func Init(reg prometheus.Registerer) {
	mu.Lock()
	defer mu.Unlock()

	i := &instruments{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
			},
			[]string{"method", "route", "status"},
		),
		cacheOpTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_op_total",
				Help: "Cache backend operations by op and result.",
			},
			[]string{"op", "result"},
		),
		cacheOpDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "redis_operation_duration_seconds",
				Help:    "Latency of Redis operations in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"op"},
		),
		cacheResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_results_total",
				Help: "Cache lookups by outcome (hit, miss, degraded).",
			},
			[]string{"outcome"},
		),
		warehouseQuerySeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warehouse_query_duration_seconds",
				Help:    "Latency of warehouse queries in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~200s
			},
			[]string{"query", "result"},
		),
		buildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "app_build_info",
				Help: "Build information for the binary.",
			},
			[]string{"version"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			i.httpRequestsTotal,
			i.httpRequestDurationSeconds,
			i.cacheOpTotal,
			i.cacheOpDurationSeconds,
			i.cacheResults,
			i.warehouseQuerySeconds,
			i.buildInfo,
		)
	}
	ins = i
}

func get() *instruments {
	mu.Lock()
	defer mu.Unlock()
	return ins
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	i := get()
	if i == nil {
		return
	}
	st := strconv.Itoa(status)
	i.httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	i.httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	i := get()
	if i == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	i.cacheOpTotal.WithLabelValues(op, result).Inc()
	i.cacheOpDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
}

func IncCacheHit()      { incOutcome("hit") }
func IncCacheMiss()     { incOutcome("miss") }
func IncCacheDegraded() { incOutcome("degraded") }

func incOutcome(outcome string) {
	i := get()
	if i == nil {
		return
	}
	i.cacheResults.WithLabelValues(outcome).Inc()
}

func ObserveWarehouseQuery(query string, err error, durationSeconds float64) {
	i := get()
	if i == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	i.warehouseQuerySeconds.WithLabelValues(query, result).Observe(durationSeconds)
}

func ExposeBuildInfo(version string) {
	i := get()
	if i == nil {
		return
	}
	if version == "" {
		version = "dev"
	}
	i.buildInfo.WithLabelValues(version).Set(1)
}
