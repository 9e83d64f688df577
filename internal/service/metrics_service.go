package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-grouping-api/internal/models"
	"github.com/noah-isme/sma-grouping-api/pkg/jobs"
)

// QueueStatsProvider exposes background queue counters.
type QueueStatsProvider interface {
	Stats() jobs.Stats
}

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
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
	groupingRuns    *prometheus.CounterVec
	aiFallbacks     *prometheus.CounterVec
	llmDuration     *prometheus.HistogramVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	llmCallCount         uint64
	llmFailureCount      uint64
	llmDurationTotal     uint64

	mu           sync.Mutex
	runsByAlgo   map[string]uint64
	fallbacksBy  map[string]uint64
	queueSources []QueueStatsProvider
}

// NewMetricsService registers core Prometheus collectors.
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
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	groupingRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grouping_runs_total",
		Help: "Groupings produced, by algorithm version",
	}, []string{"algorithm"})

	aiFallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grouping_ai_fallback_total",
		Help: "AI grouping attempts that degraded to the heuristic engine, by failure category",
	}, []string{"category"})

	llmDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_request_duration_seconds",
		Help:    "Latency of language model requests",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
	}, []string{"model", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal,
		cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		groupingRuns, aiFallbacks, llmDuration,
		goroutines,
		collectors.NewGoCollector(),
	)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		groupingRuns:    groupingRuns,
		aiFallbacks:     aiFallbacks,
		llmDuration:     llmDuration,
		runsByAlgo:      make(map[string]uint64),
		fallbacksBy:     make(map[string]uint64),
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

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// TrackQueue includes q in snapshots.
func (m *MetricsService) TrackQueue(q QueueStatsProvider) {
	if m == nil || q == nil {
		return
	}
	m.mu.Lock()
	m.queueSources = append(m.queueSources, q)
	m.mu.Unlock()
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
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
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
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

// RecordGrouping counts a produced grouping; category is set for degraded AI runs.
func (m *MetricsService) RecordGrouping(algorithm, fallbackCategory string) {
	if m == nil {
		return
	}
	m.groupingRuns.WithLabelValues(algorithm).Inc()
	m.mu.Lock()
	m.runsByAlgo[algorithm]++
	if fallbackCategory != "" {
		m.fallbacksBy[fallbackCategory]++
	}
	m.mu.Unlock()
	if fallbackCategory != "" {
		m.aiFallbacks.WithLabelValues(fallbackCategory).Inc()
	}
}

// ObserveLLMCall records the latency and outcome of a language model request.
func (m *MetricsService) ObserveLLMCall(model string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "error"
		atomic.AddUint64(&m.llmFailureCount, 1)
	}
	m.llmDuration.WithLabelValues(model, outcome).Observe(duration.Seconds())
	atomic.AddUint64(&m.llmCallCount, 1)
	atomic.AddUint64(&m.llmDurationTotal, uint64(duration.Nanoseconds()))
}

// Snapshot returns aggregated metrics suitable for the system metrics endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	llmCalls := atomic.LoadUint64(&m.llmCallCount)
	llmDuration := atomic.LoadUint64(&m.llmDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}

	snapshot := models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: averageMillis(reqDuration, requests),
		LLMCalls:                 llmCalls,
		LLMFailures:              atomic.LoadUint64(&m.llmFailureCount),
		AverageLLMLatencyMs:      averageMillis(llmDuration, llmCalls),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}

	m.mu.Lock()
	snapshot.GroupingRuns = copyCounts(m.runsByAlgo)
	snapshot.AIFallbacks = copyCounts(m.fallbacksBy)
	sources := append([]QueueStatsProvider(nil), m.queueSources...)
	m.mu.Unlock()

	for _, q := range sources {
		stats := q.Stats()
		snapshot.Queues = append(snapshot.Queues, models.QueueMetrics{
			Name:      stats.Name,
			Pending:   stats.Pending,
			Processed: stats.Processed,
			Failed:    stats.Failed,
			Dropped:   stats.Dropped,
		})
	}
	return snapshot
}

func averageMillis(totalNanos, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return float64(totalNanos) / float64(count) / float64(time.Millisecond)
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
