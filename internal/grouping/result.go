package grouping

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

// Algorithm version tags.
const (
	VersionManual     = "manual-v1"
	VersionHeuristic  = "heuristic-v1"
	VersionAI         = "ai-v1"
	VersionAIFallback = "ai-v1-fallback"
)

var nowFunc = time.Now

func buildGroup(classID, name string, members []models.StudentPerformance, provenance models.Provenance, rationale string, c models.GroupingConstraints) models.Group {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return models.Group{
		ID:                 uuid.NewString(),
		Name:               name,
		ClassID:            classID,
		StudentIDs:         ids,
		GenderBalance:      GenderBalance(members),
		PerformanceMetrics: PerformanceMetrics(members, c),
		Provenance:         provenance,
		Rationale:          rationale,
	}
}

func newResult(classID string, groups []models.Group, totalStudents int, version string, provenance models.Provenance) *models.GroupingResult {
	result := &models.GroupingResult{
		ClassID:          classID,
		Groups:           groups,
		AlgorithmVersion: version,
		Provenance:       provenance,
		GeneratedAt:      nowFunc().UTC(),
		TotalStudents:    totalStudents,
	}
	Summarise(result)
	return result
}

// Summarise recomputes the aggregate gender and performance summaries of a result.
func Summarise(result *models.GroupingResult) {
	n := len(result.Groups)
	result.GenderBalanceSummary = models.GenderBalanceSummary{TotalGroups: n}
	result.PerformanceBalanceSummary = models.PerformanceBalanceSummary{}
	if n == 0 {
		return
	}

	ratioSum, scoreSum := 0.0, 0.0
	for _, g := range result.Groups {
		ratioSum += g.GenderBalance.Ratio
		scoreSum += g.PerformanceMetrics.AverageScore
		if g.GenderBalance.Ratio <= BalancedRatio {
			result.GenderBalanceSummary.BalancedGroups++
		}
	}
	mean := scoreSum / float64(n)
	variance := 0.0
	for _, g := range result.Groups {
		d := g.PerformanceMetrics.AverageScore - mean
		variance += d * d
	}
	variance /= float64(n)

	result.GenderBalanceSummary.OverallRatio = round2(ratioSum / float64(n))
	result.PerformanceBalanceSummary.MeanAverageScore = round2(mean)
	result.PerformanceBalanceSummary.StdDeviation = round2(math.Sqrt(variance))
}

// Recompute rebuilds every group's balance and performance metrics from the
// roster, then refreshes the summaries. Member IDs missing from the roster are
// kept on the group but do not contribute to its metrics.
func Recompute(result *models.GroupingResult, roster []models.StudentPerformance, c models.GroupingConstraints) {
	if result == nil {
		return
	}
	byID := make(map[string]models.StudentPerformance, len(roster))
	for _, s := range roster {
		byID[s.ID] = s
	}
	for i := range result.Groups {
		members := make([]models.StudentPerformance, 0, len(result.Groups[i].StudentIDs))
		for _, id := range result.Groups[i].StudentIDs {
			if s, ok := byID[id]; ok {
				members = append(members, s)
			}
		}
		result.Groups[i].GenderBalance = GenderBalance(members)
		result.Groups[i].PerformanceMetrics = PerformanceMetrics(members, c)
	}
	if result.TotalStudents == 0 {
		result.TotalStudents = len(roster)
	}
	Summarise(result)
}
