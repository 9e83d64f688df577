package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grouping-api/internal/dto"
	"github.com/noah-isme/sma-grouping-api/internal/grouping"
	"github.com/noah-isme/sma-grouping-api/internal/middleware"
	"github.com/noah-isme/sma-grouping-api/internal/models"
	appErrors "github.com/noah-isme/sma-grouping-api/pkg/errors"
)

type testEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

type fakeGroupingSrv struct {
	lastGenerate dto.GenerateGroupingRequest
	lastApply    dto.ApplyGroupingRequest
	lastValidate dto.ValidateGroupingRequest
	proposal     *models.GroupingProposal
	applied      *dto.ApplyGroupingResponse
	report       models.ValidationReport
	err          error
	discarded    string
}

func (f *fakeGroupingSrv) Generate(_ context.Context, req dto.GenerateGroupingRequest) (*models.GroupingProposal, error) {
	f.lastGenerate = req
	return f.proposal, f.err
}

func (f *fakeGroupingSrv) GetProposal(classID, proposalID string) (*models.GroupingProposal, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.proposal, nil
}

func (f *fakeGroupingSrv) DiscardProposal(classID, proposalID string) error {
	f.discarded = proposalID
	return f.err
}

func (f *fakeGroupingSrv) Apply(_ context.Context, req dto.ApplyGroupingRequest) (*dto.ApplyGroupingResponse, error) {
	f.lastApply = req
	return f.applied, f.err
}

func (f *fakeGroupingSrv) Validate(_ context.Context, req dto.ValidateGroupingRequest) (models.ValidationReport, error) {
	f.lastValidate = req
	return f.report, f.err
}

func groupingContext(method, target, body string, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	if body != "" {
		c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")
	} else {
		c.Request = httptest.NewRequest(method, target, nil)
	}
	c.Params = params
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
	return c, rec
}

func TestGroupingHandlerAIPassesOptions(t *testing.T) {
	srv := &fakeGroupingSrv{proposal: &models.GroupingProposal{ProposalID: "p-1", ClassID: "class-1"}}
	handler := NewGroupingHandler(srv)

	c, rec := groupingContext(http.MethodPost, "/classes/class-1/groupings/ai", `{"groupCount":3,"constraints":{"minGroupSize":3}}`,
		gin.Params{{Key: "classId", Value: "class-1"}})
	handler.AI(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, dto.GroupingModeAI, srv.lastGenerate.Mode)
	assert.Equal(t, "class-1", srv.lastGenerate.ClassID)
	assert.Equal(t, 3, srv.lastGenerate.GroupCount)
	require.NotNil(t, srv.lastGenerate.Constraints)
	assert.Equal(t, 3, *srv.lastGenerate.Constraints.MinGroupSize)
	assert.Equal(t, "teacher-1", srv.lastGenerate.RequestedBy)

	env := decodeEnvelope(t, rec)
	var proposal models.GroupingProposal
	require.NoError(t, json.Unmarshal(env.Data, &proposal))
	assert.Equal(t, "p-1", proposal.ProposalID)
	assert.Equal(t, false, env.Meta["cache_hit"])
}

func TestGroupingHandlerReportsDegradeInMeta(t *testing.T) {
	srv := &fakeGroupingSrv{proposal: &models.GroupingProposal{
		ProposalID: "p-9",
		Result: models.GroupingResult{
			AlgorithmVersion: grouping.VersionAIFallback,
			Provenance:       models.ProvenanceFallback,
			FallbackReason:   "rate limit exceeded: 429",
			FallbackCategory: string(grouping.FailureRateLimit),
		},
		Validation: models.ValidationReport{Valid: true},
	}}
	handler := NewGroupingHandler(srv)

	c, rec := groupingContext(http.MethodPost, "/classes/class-1/groupings/ai", "", gin.Params{{Key: "classId", Value: "class-1"}})
	handler.AI(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, grouping.VersionAIFallback, env.Meta["algorithm_version"])
	assert.Equal(t, "fallback", env.Meta["provenance"])
	assert.Equal(t, true, env.Meta["fallback_used"])
	assert.Equal(t, string(grouping.FailureRateLimit), env.Meta["fallback_category"])
	assert.Equal(t, true, env.Meta["valid"])
}

func TestGroupingHandlerManualWithoutBody(t *testing.T) {
	srv := &fakeGroupingSrv{proposal: &models.GroupingProposal{ProposalID: "p-2"}}
	handler := NewGroupingHandler(srv)

	c, rec := groupingContext(http.MethodPost, "/classes/class-1/groupings/manual", "", gin.Params{{Key: "classId", Value: "class-1"}})
	handler.Manual(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, dto.GroupingModeManual, srv.lastGenerate.Mode)
}

func TestGroupingHandlerRejectsMalformedBody(t *testing.T) {
	handler := NewGroupingHandler(&fakeGroupingSrv{})
	c, rec := groupingContext(http.MethodPost, "/classes/class-1/groupings/fallback", `{"groupCount":`, gin.Params{{Key: "classId", Value: "class-1"}})
	handler.Fallback(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGroupingHandlerPreconditionDetails(t *testing.T) {
	pe := &grouping.PreconditionError{Code: grouping.CodeTooFewStudents, Message: "at least 3 students required", Count: 2, Required: 3}
	err := appErrors.WithDetails(appErrors.ErrPreconditionFailed, pe.Message, pe)
	err.Code = string(pe.Code)
	handler := NewGroupingHandler(&fakeGroupingSrv{err: err})

	c, rec := groupingContext(http.MethodPost, "/classes/class-1/groupings", "", gin.Params{{Key: "classId", Value: "class-1"}})
	handler.Auto(c)

	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "TOO_FEW_STUDENTS", env.Error.Code)
}

func TestGroupingHandlerProposalLifecycle(t *testing.T) {
	srv := &fakeGroupingSrv{proposal: &models.GroupingProposal{ProposalID: "p-3"}}
	handler := NewGroupingHandler(srv)
	params := gin.Params{{Key: "classId", Value: "class-1"}, {Key: "proposalId", Value: "p-3"}}

	c, rec := groupingContext(http.MethodGet, "/classes/class-1/groupings/proposals/p-3", "", params)
	handler.GetProposal(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = groupingContext(http.MethodDelete, "/classes/class-1/groupings/proposals/p-3", "", params)
	handler.DiscardProposal(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "p-3", srv.discarded)

	srv.err = appErrors.Clone(appErrors.ErrNotFound, "proposal not found")
	c, rec = groupingContext(http.MethodGet, "/classes/class-1/groupings/proposals/p-3", "", params)
	handler.GetProposal(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGroupingHandlerApply(t *testing.T) {
	srv := &fakeGroupingSrv{applied: &dto.ApplyGroupingResponse{ClassID: "class-1", ProposalID: "p-4", Forced: true}}
	handler := NewGroupingHandler(srv)

	c, rec := groupingContext(http.MethodPost, "/classes/class-1/groupings/apply", `{"proposalId":"p-4","force":true}`, gin.Params{{Key: "classId", Value: "class-1"}})
	handler.Apply(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "class-1", srv.lastApply.ClassID)
	assert.Equal(t, "p-4", srv.lastApply.ProposalID)
	assert.True(t, srv.lastApply.Force)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, true, env.Meta["forced"])
	assert.Equal(t, false, env.Meta["valid"])

	c, rec = groupingContext(http.MethodPost, "/classes/class-1/groupings/apply", "", gin.Params{{Key: "classId", Value: "class-1"}})
	handler.Apply(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGroupingHandlerValidate(t *testing.T) {
	srv := &fakeGroupingSrv{report: models.ValidationReport{Valid: false, Issues: []string{"Team A has 1 members"}}}
	handler := NewGroupingHandler(srv)

	body := `{"classId":"class-1","result":{"groups":[{"name":"Team A","student_ids":["s1"]}]}}`
	c, rec := groupingContext(http.MethodPost, "/groupings/validate", body, nil)
	handler.Validate(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "class-1", srv.lastValidate.ClassID)
	require.Len(t, srv.lastValidate.Result.Groups, 1)
	assert.Equal(t, []string{"s1"}, srv.lastValidate.Result.Groups[0].StudentIDs)

	var report models.ValidationReport
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &report))
	assert.False(t, report.Valid)
}

func TestGroupingHandlerRequiresClassID(t *testing.T) {
	handler := NewGroupingHandler(&fakeGroupingSrv{})
	c, rec := groupingContext(http.MethodPost, "/classes//groupings/ai", "", nil)
	handler.AI(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
