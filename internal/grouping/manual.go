package grouping

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

// slot lists the tiers tried, in order, when filling one seat of a group.
type slot []models.Tier

var (
	highFirst   = slot{models.TierHigh, models.TierMedium, models.TierLow}
	mediumFirst = slot{models.TierMedium, models.TierHigh, models.TierLow}
	lowFirst    = slot{models.TierLow, models.TierMedium, models.TierHigh}
	mediumLow   = slot{models.TierMedium, models.TierLow, models.TierHigh}
)

type manualLayout struct {
	rule   string
	groups [][]slot
}

var manualLayouts = map[int]manualLayout{
	3: {
		rule:   "one mixed group of high, medium and low performers",
		groups: [][]slot{{highFirst, mediumFirst, lowFirst}},
	},
	4: {
		rule:   "two pairs: high with medium, medium (or high) with low",
		groups: [][]slot{{highFirst, mediumFirst}, {mediumFirst, lowFirst}},
	},
	5: {
		rule:   "a mixed trio plus a medium/low pair",
		groups: [][]slot{{highFirst, mediumFirst, lowFirst}, {mediumFirst, lowFirst}},
	},
	6: {
		rule:   "two mixed trios of high, medium and low performers",
		groups: [][]slot{{highFirst, mediumFirst, lowFirst}, {highFirst, mediumFirst, lowFirst}},
	},
	7: {
		rule:   "a mixed trio plus a four-member group led by a high (or medium) performer",
		groups: [][]slot{{highFirst, mediumFirst, lowFirst}, {highFirst, mediumFirst, mediumLow, lowFirst}},
	},
}

type tierBuckets map[models.Tier][]models.StudentPerformance

func (b tierBuckets) pop(s slot) (models.StudentPerformance, bool) {
	for _, tier := range s {
		if students := b[tier]; len(students) > 0 {
			b[tier] = students[1:]
			return students[0], true
		}
	}
	return models.StudentPerformance{}, false
}

func bucketByTier(roster []models.StudentPerformance, c models.GroupingConstraints) tierBuckets {
	sorted := append([]models.StudentPerformance(nil), roster...)
	sort.SliceStable(sorted, func(i, j int) bool {
		oi, oj := Overall(sorted[i]), Overall(sorted[j])
		if oi != oj {
			return oi > oj
		}
		return sorted[i].ID < sorted[j].ID
	})
	buckets := tierBuckets{}
	for _, s := range sorted {
		tier := TierFor(Overall(s), c)
		buckets[tier] = append(buckets[tier], s)
	}
	return buckets
}

// CheckManualSize reports TOO_FEW_STUDENTS or TOO_MANY_STUDENTS when n falls
// outside the manual layout table.
func CheckManualSize(n int) error {
	if n < ManualMinStudents {
		return &PreconditionError{
			Code:       CodeTooFewStudents,
			Message:    fmt.Sprintf("at least %d students required", ManualMinStudents),
			Count:      n,
			Required:   ManualMinStudents,
			Suggestion: "enroll more students before grouping",
		}
	}
	if n > ManualMaxStudents {
		return &PreconditionError{
			Code:       CodeTooManyStudents,
			Message:    fmt.Sprintf("manual grouping supports at most %d students, use AI grouping", ManualMaxStudents),
			Count:      n,
			Required:   ManualMaxStudents,
			Suggestion: "use AI grouping",
		}
	}
	return nil
}

// ManualGroup applies the fixed layout table for classes of 3 to 7 students.
// Size is checked before pretest completeness.
func ManualGroup(classID string, roster []models.StudentPerformance, c models.GroupingConstraints) (*models.GroupingResult, error) {
	n := len(roster)
	if err := CheckManualSize(n); err != nil {
		return nil, err
	}
	if err := RequirePretests(roster); err != nil {
		return nil, err
	}

	layout := manualLayouts[n]
	buckets := bucketByTier(roster, c)
	groups := make([]models.Group, 0, len(layout.groups))
	for i, slots := range layout.groups {
		members := make([]models.StudentPerformance, 0, len(slots))
		for _, s := range slots {
			if student, ok := buckets.pop(s); ok {
				members = append(members, student)
			}
		}
		if len(members) == 0 {
			continue
		}
		name := fmt.Sprintf("Group %d", i+1)
		groups = append(groups, buildGroup(classID, name, members, models.ProvenanceManual, describeMembers(name, members, c), c))
	}

	result := newResult(classID, groups, n, VersionManual, models.ProvenanceManual)
	result.OverallRationale = fmt.Sprintf("Class of %d students: %s.", n, layout.rule)
	result.GenderRationale = "Seats are filled by ability; gender balance is reported per group."
	result.PerformanceRationale = "Each group draws from the highest available tier first so that ability levels mix."
	return result, nil
}

func describeMembers(name string, members []models.StudentPerformance, c models.GroupingConstraints) string {
	tiers := make([]string, 0, len(members))
	for _, m := range members {
		tiers = append(tiers, strings.ToLower(string(TierFor(Overall(m), c))))
	}
	return fmt.Sprintf("%s combines %s performers", name, strings.Join(tiers, ", "))
}
