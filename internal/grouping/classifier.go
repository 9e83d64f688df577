package grouping

import "github.com/noah-isme/sma-grouping-api/internal/models"

// Pretest categories used for analytics display.
const (
	CategoryHigh    = "High"
	CategoryMid     = "Mid"
	CategoryLow     = "Low"
	CategoryUnknown = "Unknown"
)

// OverallPerformance averages the available test scores. Missing pretest or
// posttest scores count as 0; retention only joins the mean when present.
func OverallPerformance(pretest, posttest, retention *float64) float64 {
	pre := valueOrZero(pretest)
	post := valueOrZero(posttest)
	if retention != nil {
		return (pre + post + *retention) / 3
	}
	return (pre + post) / 2
}

// Overall is OverallPerformance applied to a student record.
func Overall(s models.StudentPerformance) float64 {
	return OverallPerformance(s.Pretest, s.Posttest, s.Retention)
}

// TierFor classifies a score against the tier bands; the lower bound of each band is inclusive.
func TierFor(score float64, c models.GroupingConstraints) models.Tier {
	switch {
	case score >= c.Tiers.High.Min:
		return models.TierHigh
	case score >= c.Tiers.Medium.Min:
		return models.TierMedium
	default:
		return models.TierLow
	}
}

// PretestCategory classifies a student by pretest alone (>= 80 High, < 50 Low).
func PretestCategory(pretest *float64) string {
	if pretest == nil {
		return CategoryUnknown
	}
	switch {
	case *pretest >= 80:
		return CategoryHigh
	case *pretest < 50:
		return CategoryLow
	default:
		return CategoryMid
	}
}

// Summarize builds the per-student listing entry.
func Summarize(s models.StudentPerformance, c models.GroupingConstraints) models.StudentPerformanceSummary {
	overall := Overall(s)
	return models.StudentPerformanceSummary{
		StudentRef:         s.Ref(),
		Gender:             NormalizeGender(s.Gender),
		Pretest:            s.Pretest,
		Posttest:           s.Posttest,
		Retention:          s.Retention,
		OverallPerformance: round2(overall),
		PerformanceTier:    TierFor(overall, c),
		PretestCategory:    PretestCategory(s.Pretest),
	}
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
