package models

import "time"

// QueueMetrics mirrors the counters of a background job queue.
type QueueMetrics struct {
	Name      string `json:"name"`
	Pending   int    `json:"pending"`
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
}

// SystemMetrics is the instrumentation snapshot served on /system/metrics.
type SystemMetrics struct {
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	CacheHits                uint64            `json:"cache_hits"`
	CacheMisses              uint64            `json:"cache_misses"`
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	GroupingRuns             map[string]uint64 `json:"grouping_runs"`
	AIFallbacks              map[string]uint64 `json:"ai_fallbacks"`
	LLMCalls                 uint64            `json:"llm_calls"`
	LLMFailures              uint64            `json:"llm_failures"`
	AverageLLMLatencyMs      float64           `json:"average_llm_latency_ms"`
	Queues                   []QueueMetrics    `json:"queues,omitempty"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
