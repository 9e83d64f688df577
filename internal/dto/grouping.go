package dto

import (
	"time"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

// GroupingMode selects the engine used to build a proposal.
type GroupingMode string

// Supported grouping modes. Auto picks manual for 3-7 students and AI above that.
const (
	GroupingModeAuto     GroupingMode = "auto"
	GroupingModeManual   GroupingMode = "manual"
	GroupingModeAI       GroupingMode = "ai"
	GroupingModeFallback GroupingMode = "fallback"
)

// ConstraintsRequest overrides individual fields of the default grouping constraints.
type ConstraintsRequest struct {
	MinGroupSize        *int              `json:"minGroupSize" validate:"omitempty,min=1,max=50"`
	MaxGroupSize        *int              `json:"maxGroupSize" validate:"omitempty,min=1,max=50"`
	TargetGenderBalance *float64          `json:"targetGenderBalance" validate:"omitempty,min=0,max=1"`
	Tiers               *models.TierBands `json:"tiers"`
}

// GenerateGroupingRequest asks for a grouping proposal for a class.
type GenerateGroupingRequest struct {
	ClassID     string              `json:"-" validate:"required"`
	Mode        GroupingMode        `json:"-"`
	GroupCount  int                 `json:"groupCount" validate:"omitempty,min=1,max=100"`
	Constraints *ConstraintsRequest `json:"constraints" validate:"omitempty"`
	RequestedBy string              `json:"-"`
}

// ApplyGroupingRequest persists a stored proposal.
type ApplyGroupingRequest struct {
	ClassID    string `json:"-" validate:"required"`
	ProposalID string `json:"proposalId" validate:"required"`
	Force      bool   `json:"force"`
}

// ApplyGroupingResponse returns the persisted groups.
type ApplyGroupingResponse struct {
	ClassID    string                  `json:"classId"`
	ProposalID string                  `json:"proposalId"`
	Groups     []models.PersistedGroup `json:"groups"`
	Validation models.ValidationReport `json:"validation"`
	Forced     bool                    `json:"forced"`
	AppliedAt  time.Time               `json:"appliedAt"`
}

// ValidateGroupingRequest checks an arbitrary grouping. When ClassID is set the
// group metrics are recomputed from the class roster before validation.
type ValidateGroupingRequest struct {
	ClassID     string                `json:"classId"`
	Result      models.GroupingResult `json:"result"`
	Constraints *ConstraintsRequest   `json:"constraints" validate:"omitempty"`
}
