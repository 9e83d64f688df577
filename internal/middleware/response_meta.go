package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

const (
	responseMetaKey  = "response_meta"
	requestStartKey  = "response_meta_start"
	maxMetaRationale = 200
)

// Keys of the envelope meta block.
const (
	MetaCacheHit         = "cache_hit"
	MetaProcessingTimeMS = "processing_time_ms"
	MetaAlgorithmVersion = "algorithm_version"
	MetaProvenance       = "provenance"
	MetaFallbackUsed     = "fallback_used"
	MetaFallbackCategory = "fallback_category"
	MetaFallbackReason   = "fallback_reason"
	MetaValid            = "valid"
	MetaForced           = "forced"
)

// WithResponseMeta starts the request clock and attaches an empty meta block.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetCacheHit records whether the payload was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	ensureMeta(c)[MetaCacheHit] = hit
}

// SetGroupingMeta describes how a proposal was produced. fallback_used is only
// true when the AI engine degraded to the heuristic engine.
func SetGroupingMeta(c *gin.Context, result *models.GroupingResult, report models.ValidationReport) {
	if result == nil {
		return
	}
	meta := ensureMeta(c)
	meta[MetaAlgorithmVersion] = result.AlgorithmVersion
	meta[MetaProvenance] = string(result.Provenance)
	meta[MetaValid] = report.Valid
	meta[MetaFallbackUsed] = result.FallbackReason != ""
	if result.FallbackReason != "" {
		meta[MetaFallbackCategory] = result.FallbackCategory
		meta[MetaFallbackReason] = truncate(result.FallbackReason, maxMetaRationale)
	}
}

// SetApplyMeta records whether an apply overrode a failing validation.
func SetApplyMeta(c *gin.Context, forced bool, report models.ValidationReport) {
	meta := ensureMeta(c)
	meta[MetaForced] = forced
	meta[MetaValid] = report.Valid
}

// ExtractMeta returns the meta block with the elapsed processing time filled in.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	raw, exists := c.Get(responseMetaKey)
	if !exists {
		return nil
	}
	meta, ok := raw.(map[string]interface{})
	if !ok {
		return nil
	}
	if start, ok := c.Get(requestStartKey); ok {
		if t, ok := start.(time.Time); ok {
			meta[MetaProcessingTimeMS] = time.Since(t).Milliseconds()
		}
	}
	return meta
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return map[string]interface{}{}
	}
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	newMeta := make(map[string]interface{})
	c.Set(responseMetaKey, newMeta)
	return newMeta
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
