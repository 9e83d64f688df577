package models

import "time"

// GroupType distinguishes persisted groups from the synthetic ones built for analytics.
type GroupType string

// Group types emitted by the analytics aggregator.
const (
	GroupTypeGroup      GroupType = "group"
	GroupTypeManual     GroupType = "manual"
	GroupTypeIndividual GroupType = "individual"
)

// PersistedGroup is a stored group together with its membership.
type PersistedGroup struct {
	ID               string    `db:"id" json:"id"`
	ClassID          string    `db:"class_id" json:"class_id"`
	Name             string    `db:"name" json:"name"`
	IsAIGenerated    bool      `db:"is_ai_generated" json:"is_ai_generated"`
	AlgorithmVersion string    `db:"algorithm_version" json:"algorithm_version"`
	Rationale        string    `db:"rationale" json:"rationale"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	MemberIDs        []string  `db:"-" json:"member_ids"`
}

// StudentPerformanceDetail carries per-student deltas; each delta is nil when its inputs are missing.
type StudentPerformanceDetail struct {
	StudentRef
	Gender               string   `json:"gender"`
	Pretest              *float64 `json:"pretest"`
	Posttest             *float64 `json:"posttest"`
	Retention            *float64 `json:"retention"`
	PretestCategory      string   `json:"pretest_category"`
	ImmediateImprovement *float64 `json:"immediate_improvement"`
	SustainedImprovement *float64 `json:"sustained_improvement"`
	RetentionStability   *float64 `json:"retention_stability"`
}

// PretestAbility counts students per pretest category.
type PretestAbility struct {
	High    int `json:"high"`
	Mid     int `json:"mid"`
	Low     int `json:"low"`
	Unknown int `json:"unknown"`
}

// GroupPerformanceData is the analytics snapshot for one group.
type GroupPerformanceData struct {
	GroupID             string                     `json:"group_id"`
	GroupName           string                     `json:"group_name"`
	GroupType           GroupType                  `json:"group_type"`
	MemberCount         int                        `json:"member_count"`
	AveragePretest      float64                    `json:"average_pretest"`
	AveragePosttest     float64                    `json:"average_posttest"`
	AverageRetention    float64                    `json:"average_retention"`
	ImprovementRate     float64                    `json:"improvement_rate"`
	RetentionRate       float64                    `json:"retention_rate"`
	GenderBalance       GenderBalance              `json:"gender_balance"`
	AbilityDistribution PretestAbility             `json:"ability_distribution"`
	Students            []StudentPerformanceDetail `json:"students,omitempty"`
}

// TestCompletion counts how many students have a given test score.
type TestCompletion struct {
	Completed int     `json:"completed"`
	Rate      float64 `json:"rate"`
}

// GroupingCoverage describes how much of the class is grouped.
type GroupingCoverage struct {
	Grouped        int `json:"grouped"`
	Ungrouped      int `json:"ungrouped"`
	DistinctGroups int `json:"distinct_groups"`
}

// ClassPerformanceStats holds class-wide aggregates.
type ClassPerformanceStats struct {
	TotalStudents      int              `json:"total_students"`
	Pretest            TestCompletion   `json:"pretest"`
	Posttest           TestCompletion   `json:"posttest"`
	Retention          TestCompletion   `json:"retention"`
	AveragePretest     float64          `json:"average_pretest"`
	AveragePosttest    float64          `json:"average_posttest"`
	AverageRetention   float64          `json:"average_retention"`
	OverallImprovement float64          `json:"overall_improvement"`
	OverallRetention   float64          `json:"overall_retention"`
	Coverage           GroupingCoverage `json:"coverage"`
}

// ClassGroupAnalytics is the full analytics payload for a class.
type ClassGroupAnalytics struct {
	ClassID     string                 `json:"class_id"`
	Groups      []GroupPerformanceData `json:"groups"`
	Class       ClassPerformanceStats  `json:"class"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// GroupMetricsRecord is a historical snapshot written back after analytics runs.
type GroupMetricsRecord struct {
	ID               string    `db:"id" json:"id"`
	GroupID          string    `db:"group_id" json:"group_id"`
	ClassID          string    `db:"class_id" json:"class_id"`
	AveragePretest   float64   `db:"average_pretest" json:"average_pretest"`
	AveragePosttest  float64   `db:"average_posttest" json:"average_posttest"`
	AverageRetention float64   `db:"average_retention" json:"average_retention"`
	ImprovementRate  float64   `db:"improvement_rate" json:"improvement_rate"`
	RetentionRate    float64   `db:"retention_rate" json:"retention_rate"`
	GenderRatio      float64   `db:"gender_ratio" json:"gender_ratio"`
	MemberCount      int       `db:"member_count" json:"member_count"`
	RecordedAt       time.Time `db:"recorded_at" json:"recorded_at"`
}
