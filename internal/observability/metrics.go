package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/apiverse/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation.
	HTTPRequestsInFlight prometheus.Gauge

	// Cache lookups by resource and result (hit, miss). Hit rate = hit/(hit+miss).
	CacheLookupsTotal *prometheus.CounterVec

	// Cache backend errors by operation and category. Errors are treated as misses.
	CacheErrorsTotal *prometheus.CounterVec

	// Cache backend latency by operation and status.
	CacheOperationDurationSeconds *prometheus.HistogramVec

	// Cache warming runs, failures and duration.
	CacheWarmingTotal           prometheus.Counter
	CacheWarmingErrorsTotal     prometheus.Counter
	CacheWarmingDurationSeconds prometheus.Histogram

	// Durable store latency by operation and status. Watch for: p99 near store timeout.
	StoreOperationDurationSeconds *prometheus.HistogramVec

	// Durable store retry attempts by operation. Watch for: unstable storage.
	StoreRetriesTotal *prometheus.CounterVec

	// Freshly generated records by resource (weather, student, text).
	GeneratedTotal *prometheus.CounterVec

	// Months whose stored days were incomplete and had to be regenerated.
	MonthRegenerationsTotal prometheus.Counter

	// Resolutions that joined an in-flight single-flight call instead of running their own.
	CoalescedResolutionsTotal *prometheus.CounterVec

	// Concurrent misses observed for the same key. Watch for: stampedes on hot keys.
	StampedeConcurrency *prometheus.HistogramVec

	// Placeholder fields replaced at read time, by kind.
	BackfilledFieldsTotal *prometheus.CounterVec

	// Text backend calls by status. Watch for: error ratio, breaker trips.
	TextAPICallsTotal *prometheus.CounterVec

	// Text backend latency.
	TextAPIDuration *prometheus.HistogramVec

	// Text backend retry attempts.
	TextAPIRetriesTotal prometheus.Counter

	// Circuit breaker state transitions for the text backend.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Files and cache entries removed by the background janitor.
	CleanupRemovedTotal *prometheus.CounterVec

	// Reference entities written by the importer, by kind.
	ImportedEntitiesTotal *prometheus.CounterVec

	// Rate limit denials.
	RateLimitDeniedTotal prometheus.Counter

	rateLimitGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheLookupsTotal",
			Help: "Cache lookups by resource and result (hit or miss)",
		},
		[]string{"resource", "result"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache backend errors by operation and category",
		},
		[]string{"operation", "category"},
	)
	CacheOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cacheOperationDurationSeconds",
			Help:    "Cache backend latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"operation", "status"},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Cache warming runs",
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Cache warming runs that finished with at least one error",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Cache warming duration in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10},
		},
	)
	StoreOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storeOperationDurationSeconds",
			Help:    "Durable store latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation", "status"},
	)
	StoreRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeRetriesTotal",
			Help: "Durable store retry attempts by operation",
		},
		[]string{"operation"},
	)
	GeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generatedTotal",
			Help: "Records produced by generators, by resource",
		},
		[]string{"resource"},
	)
	MonthRegenerationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherMonthRegenerationsTotal",
			Help: "Months regenerated because stored days were incomplete",
		},
	)
	CoalescedResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coalescedResolutionsTotal",
			Help: "Resolutions that shared another caller's in-flight result",
		},
		[]string{"resource"},
	)
	StampedeConcurrency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cacheStampedeConcurrency",
			Help:    "Concurrent cache misses observed for the same key",
			Buckets: []float64{2, 3, 5, 10, 25, 50},
		},
		[]string{"resource"},
	)
	BackfilledFieldsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backfilledFieldsTotal",
			Help: "Placeholder entity fields replaced at read time, by kind",
		},
		[]string{"kind"},
	)
	TextAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textApiCallsTotal",
			Help: "Total number of text backend calls",
		},
		[]string{"status"},
	)
	TextAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "textApiDurationSeconds",
			Help:    "Text backend latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	TextAPIRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "textApiRetriesTotal",
			Help: "Total number of retry attempts for text backend calls",
		},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	CleanupRemovedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanupRemovedTotal",
			Help: "Items removed by the background janitor, by target (downloads, cache)",
		},
		[]string{"target"},
	)
	ImportedEntitiesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "importedEntitiesTotal",
			Help: "Reference entities written by the importer, by kind",
		},
		[]string{"kind"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		CacheLookupsTotal, CacheErrorsTotal, CacheOperationDurationSeconds,
		CacheWarmingTotal, CacheWarmingErrorsTotal, CacheWarmingDurationSeconds,
		StoreOperationDurationSeconds, StoreRetriesTotal,
		GeneratedTotal, MonthRegenerationsTotal, CoalescedResolutionsTotal, StampedeConcurrency,
		BackfilledFieldsTotal,
		TextAPICallsTotal, TextAPIDuration, TextAPIRetriesTotal, CircuitBreakerTransitionsTotal,
		CleanupRemovedTotal, ImportedEntitiesTotal,
		RateLimitDeniedTotal,
	)
}

// RegisterTrafficGauges registers sliding-window request and error gauges.
// Call from main after config load with the health window.
func RegisterTrafficGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "requestsInWindow",
					Help: "Outcomes recorded in the sliding health window",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
		)
	})
}

// RecordCacheLookup records a cache hit or miss for resource.
func RecordCacheLookup(resource string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(resource, result).Inc()
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
