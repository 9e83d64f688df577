package models

import "time"

// Tier is the High/Medium/Low classification used when forming groups.
type Tier string

// Performance tiers.
const (
	TierHigh   Tier = "High"
	TierMedium Tier = "Medium"
	TierLow    Tier = "Low"
)

// Provenance records which engine produced a grouping.
type Provenance string

// Grouping provenances.
const (
	ProvenanceAI       Provenance = "ai"
	ProvenanceManual   Provenance = "manual"
	ProvenanceFallback Provenance = "fallback"
)

// ScoreBand is an inclusive score range.
type ScoreBand struct {
	Min float64 `json:"min" validate:"gte=0,lte=100"`
	Max float64 `json:"max" validate:"gte=0,lte=100,gtefield=Min"`
}

// TierBands holds the score band for every tier.
type TierBands struct {
	High   ScoreBand `json:"high"`
	Medium ScoreBand `json:"medium"`
	Low    ScoreBand `json:"low"`
}

// GroupingConstraints parameterises every grouping engine.
type GroupingConstraints struct {
	MinGroupSize        int       `json:"min_group_size" validate:"gte=1"`
	MaxGroupSize        int       `json:"max_group_size" validate:"gtefield=MinGroupSize"`
	TargetGenderBalance float64   `json:"target_gender_balance" validate:"gte=0,lte=1"`
	Tiers               TierBands `json:"tiers"`
}

// GenderBalance describes the male/female mix of a set of students.
type GenderBalance struct {
	Male   int     `json:"male"`
	Female int     `json:"female"`
	Ratio  float64 `json:"ratio"`
}

// ScoreRange is the min/max overall score within a group.
type ScoreRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// AbilityDistribution counts students per tier.
type AbilityDistribution struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// PerformanceMetrics summarises the ability mix of a group.
type PerformanceMetrics struct {
	AverageScore        float64             `json:"average_score"`
	ScoreRange          ScoreRange          `json:"score_range"`
	AbilityDistribution AbilityDistribution `json:"ability_distribution"`
}

// Group is a single proposed or persisted collaborative group.
type Group struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	ClassID            string             `json:"class_id"`
	StudentIDs         []string           `json:"student_ids"`
	GenderBalance      GenderBalance      `json:"gender_balance"`
	PerformanceMetrics PerformanceMetrics `json:"performance_metrics"`
	Provenance         Provenance         `json:"provenance"`
	Rationale          string             `json:"rationale"`
}

// GenderBalanceSummary aggregates gender balance across a grouping.
type GenderBalanceSummary struct {
	OverallRatio   float64 `json:"overall_ratio"`
	BalancedGroups int     `json:"balanced_groups"`
	TotalGroups    int     `json:"total_groups"`
}

// PerformanceBalanceSummary aggregates ability balance across a grouping.
type PerformanceBalanceSummary struct {
	MeanAverageScore float64 `json:"mean_average_score"`
	StdDeviation     float64 `json:"std_deviation"`
}

// GroupingResult is the common output of the manual, fallback and AI engines.
type GroupingResult struct {
	ClassID                   string                    `json:"class_id"`
	Groups                    []Group                   `json:"groups"`
	OverallRationale          string                    `json:"overall_rationale"`
	GenderRationale           string                    `json:"gender_rationale,omitempty"`
	PerformanceRationale      string                    `json:"performance_rationale,omitempty"`
	AlgorithmVersion          string                    `json:"algorithm_version"`
	Provenance                Provenance                `json:"provenance"`
	GeneratedAt               time.Time                 `json:"generated_at"`
	TotalStudents             int                       `json:"total_students"`
	GenderBalanceSummary      GenderBalanceSummary      `json:"gender_balance_summary"`
	PerformanceBalanceSummary PerformanceBalanceSummary `json:"performance_balance_summary"`
	FallbackReason            string                    `json:"fallback_reason,omitempty"`
	FallbackCategory          string                    `json:"fallback_category,omitempty"`
	UnassignedStudentIDs      []string                  `json:"unassigned_student_ids,omitempty"`
}

// ValidationReport is the outcome of checking a grouping against constraints.
type ValidationReport struct {
	Valid    bool     `json:"valid"`
	Issues   []string `json:"issues"`
	Warnings []string `json:"warnings"`
}

// GroupingProposal is a generated grouping awaiting teacher review.
type GroupingProposal struct {
	ProposalID  string              `json:"proposal_id"`
	ClassID     string              `json:"class_id"`
	Result      GroupingResult      `json:"result"`
	Validation  ValidationReport    `json:"validation"`
	Constraints GroupingConstraints `json:"constraints"`
	RequestedBy string              `json:"requested_by,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}
