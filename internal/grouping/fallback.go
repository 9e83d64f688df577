package grouping

import (
	"fmt"
	"sort"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

const fallbackGroupSize = 4

// FallbackGroup sorts the roster by performance then gender and deals students
// round-robin into groupCount groups (ceil(n/4) when groupCount <= 0).
func FallbackGroup(classID string, roster []models.StudentPerformance, groupCount int, c models.GroupingConstraints) (*models.GroupingResult, error) {
	n := len(roster)
	if n == 0 {
		return nil, noStudents()
	}
	if err := RequirePretests(roster); err != nil {
		return nil, err
	}

	sorted := append([]models.StudentPerformance(nil), roster...)
	sort.SliceStable(sorted, func(i, j int) bool {
		oi, oj := Overall(sorted[i]), Overall(sorted[j])
		if oi != oj {
			return oi > oj
		}
		return NormalizeGender(sorted[i].Gender) < NormalizeGender(sorted[j].Gender)
	})

	count := groupCount
	if count <= 0 {
		count = (n + fallbackGroupSize - 1) / fallbackGroupSize
	}
	if count > n {
		count = n
	}

	buckets := make([][]models.StudentPerformance, count)
	for i, s := range sorted {
		buckets[i%count] = append(buckets[i%count], s)
	}

	groups := make([]models.Group, 0, count)
	for i, members := range buckets {
		name := "Team " + teamLetter(i)
		rationale := fmt.Sprintf("%s receives every %s student from the performance-ranked roster", name, ordinal(count))
		groups = append(groups, buildGroup(classID, name, members, models.ProvenanceFallback, rationale, c))
	}

	result := newResult(classID, groups, n, VersionHeuristic, models.ProvenanceFallback)
	result.OverallRationale = fmt.Sprintf("%d students ranked by overall performance and dealt round-robin into %d groups.", n, count)
	result.GenderRationale = "Ties in performance are ordered by gender so that dealing alternates genders where possible."
	result.PerformanceRationale = "Round-robin over a ranked list spreads high, medium and low performers across groups."
	return result, nil
}

// teamLetter returns A..Z, then AA, AB, ...
func teamLetter(i int) string {
	name := ""
	for i >= 0 {
		name = string(rune('A'+i%26)) + name
		i = i/26 - 1
	}
	return name
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
