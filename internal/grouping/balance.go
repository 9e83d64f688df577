package grouping

import (
	"math"
	"strings"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

// Gender ratio thresholds. A group at or below BalancedRatio counts as balanced;
// one above ImbalancedRatio counts against the grouping in validation.
const (
	BalancedRatio   = 0.3
	ImbalancedRatio = 0.4
)

// NormalizeGender maps free-form gender labels onto male, female or other.
func NormalizeGender(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "male", "m", "laki-laki", "l":
		return models.GenderMale
	case "female", "f", "perempuan", "p":
		return models.GenderFemale
	default:
		return models.GenderOther
	}
}

// GenderBalance computes |male-female| / total, 0 for an empty set.
func GenderBalance(students []models.StudentPerformance) models.GenderBalance {
	var out models.GenderBalance
	for _, s := range students {
		switch NormalizeGender(s.Gender) {
		case models.GenderMale:
			out.Male++
		case models.GenderFemale:
			out.Female++
		}
	}
	if len(students) == 0 {
		return out
	}
	diff := out.Male - out.Female
	if diff < 0 {
		diff = -diff
	}
	out.Ratio = round2(float64(diff) / float64(len(students)))
	return out
}

// PerformanceMetrics summarises the overall scores and tier mix of a set of students.
func PerformanceMetrics(students []models.StudentPerformance, c models.GroupingConstraints) models.PerformanceMetrics {
	var out models.PerformanceMetrics
	if len(students) == 0 {
		return out
	}
	total := 0.0
	out.ScoreRange.Min = math.Inf(1)
	out.ScoreRange.Max = math.Inf(-1)
	for _, s := range students {
		score := Overall(s)
		total += score
		out.ScoreRange.Min = math.Min(out.ScoreRange.Min, score)
		out.ScoreRange.Max = math.Max(out.ScoreRange.Max, score)
		switch TierFor(score, c) {
		case models.TierHigh:
			out.AbilityDistribution.High++
		case models.TierMedium:
			out.AbilityDistribution.Medium++
		default:
			out.AbilityDistribution.Low++
		}
	}
	out.AverageScore = math.Round(total / float64(len(students)))
	out.ScoreRange.Min = round2(out.ScoreRange.Min)
	out.ScoreRange.Max = round2(out.ScoreRange.Max)
	return out
}
