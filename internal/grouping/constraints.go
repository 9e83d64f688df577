// Package grouping partitions class rosters into collaborative groups balanced by gender and ability.
package grouping

import (
	"math"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

// Size limits for the manual engine.
const (
	ManualMinStudents = 3
	ManualMaxStudents = 7
)

// DefaultConstraints returns the constraints applied when a caller supplies none.
func DefaultConstraints() models.GroupingConstraints {
	return models.GroupingConstraints{
		MinGroupSize:        4,
		MaxGroupSize:        6,
		TargetGenderBalance: 0.5,
		Tiers: models.TierBands{
			High:   models.ScoreBand{Min: 80, Max: 100},
			Medium: models.ScoreBand{Min: 60, Max: 79},
			Low:    models.ScoreBand{Min: 0, Max: 59},
		},
	}
}

// ConstraintsForGroupCount derives size bounds from a requested group count.
// A non-positive count leaves base untouched.
func ConstraintsForGroupCount(base models.GroupingConstraints, studentCount, groupCount int) models.GroupingConstraints {
	if groupCount <= 0 || studentCount <= 0 {
		return base
	}
	out := base
	out.MinGroupSize = studentCount / groupCount
	if out.MinGroupSize < 2 {
		out.MinGroupSize = 2
	}
	out.MaxGroupSize = int(math.Ceil(float64(studentCount)/float64(groupCount))) + 1
	return out
}

// ManualConstraints returns base with the size range produced by the manual layout table.
func ManualConstraints(base models.GroupingConstraints) models.GroupingConstraints {
	out := base
	out.MinGroupSize, out.MaxGroupSize = 2, 4
	return out
}

// EffectiveConstraints returns the constraints a result should be validated
// against. Manual layouts have fixed sizes; fallback results without a
// requested count are judged by the number of groups they actually formed.
func EffectiveConstraints(result *models.GroupingResult, base models.GroupingConstraints, groupCount int) models.GroupingConstraints {
	if result == nil {
		return base
	}
	switch {
	case result.Provenance == models.ProvenanceManual:
		return ManualConstraints(base)
	case result.Provenance == models.ProvenanceFallback && groupCount <= 0:
		return ConstraintsForGroupCount(base, result.TotalStudents, len(result.Groups))
	default:
		return ConstraintsForGroupCount(base, result.TotalStudents, groupCount)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
