package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grouping-api/internal/dto"
	"github.com/noah-isme/sma-grouping-api/internal/models"
	appErrors "github.com/noah-isme/sma-grouping-api/pkg/errors"
	"github.com/noah-isme/sma-grouping-api/pkg/export"
)

type fakeAnalyticsSrv struct {
	lastQuery   dto.GroupAnalyticsQuery
	lastExport  dto.ExportAnalyticsQuery
	lastHistory dto.GroupHistoryQuery
	result      *models.ClassGroupAnalytics
	hit         bool
	students    []models.StudentPerformanceSummary
	doc         *export.Document
	history     []models.GroupMetricsRecord
	err         error
}

func (f *fakeAnalyticsSrv) GroupAnalytics(_ context.Context, query dto.GroupAnalyticsQuery) (*models.ClassGroupAnalytics, bool, error) {
	f.lastQuery = query
	return f.result, f.hit, f.err
}

func (f *fakeAnalyticsSrv) StudentPerformance(_ context.Context, classID string) ([]models.StudentPerformanceSummary, error) {
	return f.students, f.err
}

func (f *fakeAnalyticsSrv) Export(_ context.Context, query dto.ExportAnalyticsQuery) (*export.Document, error) {
	f.lastExport = query
	return f.doc, f.err
}

func (f *fakeAnalyticsSrv) GroupHistory(_ context.Context, query dto.GroupHistoryQuery) ([]models.GroupMetricsRecord, error) {
	f.lastHistory = query
	return f.history, f.err
}

func analyticsContext(target string, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	c.Params = params
	return c, rec
}

func TestAnalyticsHandlerGroups(t *testing.T) {
	srv := &fakeAnalyticsSrv{
		result: &models.ClassGroupAnalytics{ClassID: "class-1", Groups: []models.GroupPerformanceData{{GroupID: "g1"}}},
		hit:    true,
	}
	handler := NewAnalyticsHandler(srv)

	c, rec := analyticsContext("/classes/class-1/analytics/groups?details=true", gin.Params{{Key: "classId", Value: "class-1"}})
	handler.Groups(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.GroupAnalyticsQuery{ClassID: "class-1", IncludeDetails: true}, srv.lastQuery)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, true, env.Meta["cache_hit"])
	var payload models.ClassGroupAnalytics
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Len(t, payload.Groups, 1)
}

func TestAnalyticsHandlerGroupsInvalidDetails(t *testing.T) {
	handler := NewAnalyticsHandler(&fakeAnalyticsSrv{})
	c, rec := analyticsContext("/classes/class-1/analytics/groups?details=maybe", gin.Params{{Key: "classId", Value: "class-1"}})
	handler.Groups(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyticsHandlerStudents(t *testing.T) {
	srv := &fakeAnalyticsSrv{students: []models.StudentPerformanceSummary{{StudentRef: models.StudentRef{ID: "s1"}, PerformanceTier: models.TierHigh}}}
	handler := NewAnalyticsHandler(srv)

	c, rec := analyticsContext("/classes/class-1/analytics/students", gin.Params{{Key: "classId", Value: "class-1"}})
	handler.Students(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var students []models.StudentPerformanceSummary
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &students))
	require.Len(t, students, 1)
	assert.Equal(t, models.TierHigh, students[0].PerformanceTier)
}

func TestAnalyticsHandlerExportStreamsDocument(t *testing.T) {
	srv := &fakeAnalyticsSrv{doc: &export.Document{
		Format:      export.FormatCSV,
		ContentType: "text/csv",
		Filename:    "group-analytics-class-1.csv",
		Body:        []byte("group,type\n"),
	}}
	handler := NewAnalyticsHandler(srv)

	c, rec := analyticsContext("/classes/class-1/analytics/groups/export?format=csv", gin.Params{{Key: "classId", Value: "class-1"}})
	handler.Export(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", srv.lastExport.Format)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "group-analytics-class-1.csv")
	assert.Equal(t, "group,type\n", rec.Body.String())
}

func TestAnalyticsHandlerExportUnsupportedFormat(t *testing.T) {
	handler := NewAnalyticsHandler(&fakeAnalyticsSrv{err: appErrors.ErrUnsupportedFormat})
	c, rec := analyticsContext("/classes/class-1/analytics/groups/export?format=xlsx", gin.Params{{Key: "classId", Value: "class-1"}})
	handler.Export(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNSUPPORTED_FORMAT", decodeEnvelope(t, rec).Error.Code)
}

func TestAnalyticsHandlerHistory(t *testing.T) {
	srv := &fakeAnalyticsSrv{history: []models.GroupMetricsRecord{{ID: "r1", GroupID: "g1"}}}
	handler := NewAnalyticsHandler(srv)

	c, rec := analyticsContext("/groups/g1/analytics/history?limit=5", gin.Params{{Key: "groupId", Value: "g1"}})
	handler.History(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.GroupHistoryQuery{GroupID: "g1", Limit: 5}, srv.lastHistory)

	c, rec = analyticsContext("/groups/g1/analytics/history?limit=ten", gin.Params{{Key: "groupId", Value: "g1"}})
	handler.History(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
