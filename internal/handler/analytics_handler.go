package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grouping-api/internal/dto"
	"github.com/noah-isme/sma-grouping-api/internal/models"
	appErrors "github.com/noah-isme/sma-grouping-api/pkg/errors"
	"github.com/noah-isme/sma-grouping-api/pkg/export"
	"github.com/noah-isme/sma-grouping-api/pkg/response"
)

type groupAnalyticsService interface {
	GroupAnalytics(ctx context.Context, query dto.GroupAnalyticsQuery) (*models.ClassGroupAnalytics, bool, error)
	StudentPerformance(ctx context.Context, classID string) ([]models.StudentPerformanceSummary, error)
	Export(ctx context.Context, query dto.ExportAnalyticsQuery) (*export.Document, error)
	GroupHistory(ctx context.Context, query dto.GroupHistoryQuery) ([]models.GroupMetricsRecord, error)
}

// AnalyticsHandler exposes group performance analytics endpoints.
type AnalyticsHandler struct {
	analytics groupAnalyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics groupAnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Groups godoc
// @Summary Group and class performance analytics
// @Tags Analytics
// @Produce json
// @Param classId path string true "Class ID"
// @Param details query bool false "Include per-student details"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/analytics/groups [get]
func (h *AnalyticsHandler) Groups(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	classID, ok := classIDParam(c)
	if !ok {
		return
	}
	details, err := parseBoolQuery(c, "details")
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	result, cacheHit, err := h.analytics.GroupAnalytics(c.Request.Context(), dto.GroupAnalyticsQuery{ClassID: classID, IncludeDetails: details})
	if err != nil {
		response.Error(c, err)
		return
	}
	respondTimed(c, http.StatusOK, result, cacheHit, start)
}

// Students godoc
// @Summary Per-student performance tiers and pretest categories
// @Tags Analytics
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/analytics/students [get]
func (h *AnalyticsHandler) Students(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	classID, ok := classIDParam(c)
	if !ok {
		return
	}
	start := time.Now()
	students, err := h.analytics.StudentPerformance(c.Request.Context(), classID)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondTimed(c, http.StatusOK, students, false, start)
}

// Export godoc
// @Summary Export group analytics as CSV or PDF
// @Tags Analytics
// @Produce text/csv
// @Produce application/pdf
// @Param classId path string true "Class ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /classes/{classId}/analytics/groups/export [get]
func (h *AnalyticsHandler) Export(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	classID, ok := classIDParam(c)
	if !ok {
		return
	}
	doc, err := h.analytics.Export(c.Request.Context(), dto.ExportAnalyticsQuery{
		ClassID: classID,
		Format:  strings.TrimSpace(c.Query("format")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Body)
}

// History godoc
// @Summary Recorded metrics snapshots of a persisted group
// @Tags Analytics
// @Produce json
// @Param groupId path string true "Group ID"
// @Param limit query int false "Maximum records (default 20)"
// @Success 200 {object} response.Envelope
// @Router /groups/{groupId}/analytics/history [get]
func (h *AnalyticsHandler) History(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	query := dto.GroupHistoryQuery{GroupID: strings.TrimSpace(c.Param("groupId"))}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid limit parameter"))
			return
		}
		query.Limit = limit
	}
	records, err := h.analytics.GroupHistory(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

func parseBoolQuery(c *gin.Context, name string) (bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, appErrors.Clone(appErrors.ErrValidation, "invalid "+name+" parameter")
	}
	return value, nil
}
