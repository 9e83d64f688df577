package models

// Gender labels accepted on student records.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// StudentPerformance is the computed view of an enrolled student used by the grouping and analytics engines.
type StudentPerformance struct {
	ID                string   `db:"student_id" json:"id"`
	Name              string   `db:"full_name" json:"name"`
	Gender            string   `db:"gender" json:"gender"`
	Pretest           *float64 `db:"pretest_score" json:"pretest,omitempty"`
	Posttest          *float64 `db:"posttest_score" json:"posttest,omitempty"`
	Retention         *float64 `db:"retention_score" json:"retention,omitempty"`
	LegacyGroupNumber *int     `db:"group_number" json:"group_number,omitempty"`
}

// StudentRef identifies a student in error details and listings.
type StudentRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Ref returns the lightweight reference for the student.
func (s StudentPerformance) Ref() StudentRef {
	return StudentRef{ID: s.ID, Name: s.Name}
}

// StudentPerformanceSummary is the per-student listing returned by the analytics API.
type StudentPerformanceSummary struct {
	StudentRef
	Gender             string   `json:"gender"`
	Pretest            *float64 `json:"pretest,omitempty"`
	Posttest           *float64 `json:"posttest,omitempty"`
	Retention          *float64 `json:"retention,omitempty"`
	OverallPerformance float64  `json:"overall_performance"`
	PerformanceTier    Tier     `json:"performance_tier"`
	PretestCategory    string   `json:"pretest_category"`
}
