package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

type fakeAuditRecorder struct {
	entries []models.AuditLog
	err     error
}

func (f *fakeAuditRecorder) Create(_ context.Context, log *models.AuditLog) error {
	f.entries = append(f.entries, *log)
	return f.err
}

func auditRouter(recorder AuditRecorder, status int) *gin.Engine {
	r := gin.New()
	r.POST("/classes/:classId/groupings/apply",
		func(c *gin.Context) {
			c.Set(ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
			c.Next()
		},
		Audit(recorder, nil, models.AuditActionApplyGrouping, models.AuditResourceStudentGroups),
		func(c *gin.Context) {
			SetAuditResource(c, "p-7")
			SetAuditDetail(c, "forced", true)
			c.JSON(status, gin.H{})
		})
	return r
}

func TestAuditRecordsSuccessfulMutation(t *testing.T) {
	recorder := &fakeAuditRecorder{}
	r := auditRouter(recorder, http.StatusOK)

	req := httptest.NewRequest(http.MethodPost, "/classes/class-1/groupings/apply", nil)
	req.Header.Set("User-Agent", "test-agent")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]
	assert.Equal(t, models.AuditActionApplyGrouping, entry.Action)
	assert.Equal(t, models.AuditResourceStudentGroups, entry.Resource)
	assert.Equal(t, "class-1", entry.ClassID)
	assert.Equal(t, "test-agent", entry.UserAgent)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "teacher-1", *entry.UserID)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "p-7", *entry.ResourceID)

	var values map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.NewValues, &values))
	assert.Equal(t, true, values["forced"])
	assert.Equal(t, "/classes/:classId/groupings/apply", values["path"])
	assert.Equal(t, float64(http.StatusOK), values["status"])
}

func TestAuditSkipsFailedRequests(t *testing.T) {
	recorder := &fakeAuditRecorder{}
	r := auditRouter(recorder, http.StatusUnprocessableEntity)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/classes/class-1/groupings/apply", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Empty(t, recorder.entries)
}

func TestAuditWriteFailureKeepsResponse(t *testing.T) {
	recorder := &fakeAuditRecorder{err: errors.New("db down")}
	r := auditRouter(recorder, http.StatusOK)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/classes/class-1/groupings/apply", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, recorder.entries, 1)
}

func TestAuditResourceDefaultsToProposalParam(t *testing.T) {
	recorder := &fakeAuditRecorder{}
	r := gin.New()
	r.DELETE("/classes/:classId/groupings/proposals/:proposalId",
		Audit(recorder, nil, models.AuditActionDiscardProposal, models.AuditResourceGroupingProposals),
		func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/classes/class-1/groupings/proposals/p-9", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	require.Len(t, recorder.entries, 1)
	require.NotNil(t, recorder.entries[0].ResourceID)
	assert.Equal(t, "p-9", *recorder.entries[0].ResourceID)
	assert.Nil(t, recorder.entries[0].UserID)
}
