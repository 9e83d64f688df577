package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grouping-api/internal/dto"
	"github.com/noah-isme/sma-grouping-api/internal/middleware"
	"github.com/noah-isme/sma-grouping-api/internal/models"
	appErrors "github.com/noah-isme/sma-grouping-api/pkg/errors"
	"github.com/noah-isme/sma-grouping-api/pkg/response"
)

type groupingService interface {
	Generate(ctx context.Context, req dto.GenerateGroupingRequest) (*models.GroupingProposal, error)
	GetProposal(classID, proposalID string) (*models.GroupingProposal, error)
	DiscardProposal(classID, proposalID string) error
	Apply(ctx context.Context, req dto.ApplyGroupingRequest) (*dto.ApplyGroupingResponse, error)
	Validate(ctx context.Context, req dto.ValidateGroupingRequest) (models.ValidationReport, error)
}

// GroupingHandler exposes grouping proposal endpoints.
type GroupingHandler struct {
	service groupingService
}

// NewGroupingHandler constructs the handler.
func NewGroupingHandler(service groupingService) *GroupingHandler {
	return &GroupingHandler{service: service}
}

// Auto godoc
// @Summary Generate a grouping proposal, picking the engine by class size
// @Tags Grouping
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body dto.GenerateGroupingRequest false "Grouping options"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /classes/{classId}/groupings [post]
func (h *GroupingHandler) Auto(c *gin.Context) {
	h.generate(c, dto.GroupingModeAuto)
}

// Manual godoc
// @Summary Generate a rule-based proposal for 3 to 7 students
// @Tags Grouping
// @Produce json
// @Param classId path string true "Class ID"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /classes/{classId}/groupings/manual [post]
func (h *GroupingHandler) Manual(c *gin.Context) {
	h.generate(c, dto.GroupingModeManual)
}

// AI godoc
// @Summary Generate an AI proposal, degrading to the heuristic engine on failure
// @Tags Grouping
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body dto.GenerateGroupingRequest false "Grouping options"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /classes/{classId}/groupings/ai [post]
func (h *GroupingHandler) AI(c *gin.Context) {
	h.generate(c, dto.GroupingModeAI)
}

// Fallback godoc
// @Summary Generate a heuristic round-robin proposal
// @Tags Grouping
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body dto.GenerateGroupingRequest false "Grouping options"
// @Success 201 {object} response.Envelope
// @Router /classes/{classId}/groupings/fallback [post]
func (h *GroupingHandler) Fallback(c *gin.Context) {
	h.generate(c, dto.GroupingModeFallback)
}

func (h *GroupingHandler) generate(c *gin.Context, mode dto.GroupingMode) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	classID, ok := classIDParam(c)
	if !ok {
		return
	}
	var req dto.GenerateGroupingRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	req.ClassID = classID
	req.Mode = mode
	req.RequestedBy = requestedBy(c)

	start := time.Now()
	proposal, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetGroupingMeta(c, &proposal.Result, proposal.Validation)
	respondTimed(c, http.StatusCreated, proposal, false, start)
}

// GetProposal godoc
// @Summary Fetch a stored grouping proposal
// @Tags Grouping
// @Produce json
// @Param classId path string true "Class ID"
// @Param proposalId path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{classId}/groupings/proposals/{proposalId} [get]
func (h *GroupingHandler) GetProposal(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	classID, ok := classIDParam(c)
	if !ok {
		return
	}
	proposal, err := h.service.GetProposal(classID, strings.TrimSpace(c.Param("proposalId")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposal, nil)
}

// DiscardProposal godoc
// @Summary Discard a stored grouping proposal
// @Tags Grouping
// @Param classId path string true "Class ID"
// @Param proposalId path string true "Proposal ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /classes/{classId}/groupings/proposals/{proposalId} [delete]
func (h *GroupingHandler) DiscardProposal(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	classID, ok := classIDParam(c)
	if !ok {
		return
	}
	if err := h.service.DiscardProposal(classID, strings.TrimSpace(c.Param("proposalId"))); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Apply godoc
// @Summary Persist a stored proposal as the class grouping
// @Tags Grouping
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param payload body dto.ApplyGroupingRequest true "Proposal to apply"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /classes/{classId}/groupings/apply [post]
func (h *GroupingHandler) Apply(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	classID, ok := classIDParam(c)
	if !ok {
		return
	}
	var req dto.ApplyGroupingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	req.ClassID = classID

	start := time.Now()
	applied, err := h.service.Apply(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetApplyMeta(c, applied.Forced, applied.Validation)
	middleware.SetAuditResource(c, applied.ProposalID)
	middleware.SetAuditDetail(c, "forced", applied.Forced)
	middleware.SetAuditDetail(c, "groups", len(applied.Groups))
	respondTimed(c, http.StatusOK, applied, false, start)
}

// Validate godoc
// @Summary Validate an arbitrary grouping against constraints
// @Tags Grouping
// @Accept json
// @Produce json
// @Param payload body dto.ValidateGroupingRequest true "Grouping to validate"
// @Success 200 {object} response.Envelope
// @Router /groupings/validate [post]
func (h *GroupingHandler) Validate(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var req dto.ValidateGroupingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	report, err := h.service.Validate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
