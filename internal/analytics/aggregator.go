// Package analytics rolls student score histories up into group and class statistics.
package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/noah-isme/sma-grouping-api/internal/grouping"
	"github.com/noah-isme/sma-grouping-api/internal/models"
)

// Options controls the aggregation output.
type Options struct {
	IncludeDetails bool
}

// Aggregate joins persisted groups with the class roster. Every enrolled student
// appears in exactly one emitted group: their persisted group, a legacy numbered
// group, or a singleton individual group. Members no longer enrolled are ignored.
func Aggregate(classID string, groups []models.PersistedGroup, roster []models.StudentPerformance, opts Options) models.ClassGroupAnalytics {
	byID := make(map[string]models.StudentPerformance, len(roster))
	for _, s := range roster {
		byID[s.ID] = s
	}

	placed := make(map[string]bool, len(roster))
	out := make([]models.GroupPerformanceData, 0, len(groups))
	coverage := models.GroupingCoverage{}

	for _, g := range groups {
		var members []models.StudentPerformance
		for _, id := range g.MemberIDs {
			s, ok := byID[id]
			if !ok || placed[id] {
				continue
			}
			placed[id] = true
			members = append(members, s)
		}
		if len(members) > 0 {
			coverage.DistinctGroups++
		}
		coverage.Grouped += len(members)
		out = append(out, groupData(g.ID, g.Name, models.GroupTypeGroup, members, opts))
	}

	legacy := map[int][]models.StudentPerformance{}
	var ungrouped []models.StudentPerformance
	for _, s := range roster {
		if placed[s.ID] {
			continue
		}
		if s.LegacyGroupNumber != nil {
			legacy[*s.LegacyGroupNumber] = append(legacy[*s.LegacyGroupNumber], s)
			continue
		}
		ungrouped = append(ungrouped, s)
	}

	numbers := make([]int, 0, len(legacy))
	for n := range legacy {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	for _, n := range numbers {
		members := legacy[n]
		coverage.DistinctGroups++
		coverage.Grouped += len(members)
		out = append(out, groupData(fmt.Sprintf("manual-%d", n), fmt.Sprintf("Group %d", n), models.GroupTypeManual, members, opts))
	}

	for _, s := range ungrouped {
		coverage.Ungrouped++
		out = append(out, groupData("individual-"+s.ID, s.Name, models.GroupTypeIndividual, []models.StudentPerformance{s}, opts))
	}

	class := classStats(roster)
	class.Coverage = coverage
	return models.ClassGroupAnalytics{
		ClassID: classID,
		Groups:  out,
		Class:   class,
	}
}

func groupData(id, name string, groupType models.GroupType, members []models.StudentPerformance, opts Options) models.GroupPerformanceData {
	avgPre, _ := meanOf(members, pretest)
	avgPost, _ := meanOf(members, posttest)
	avgRet, n := meanOf(members, retention)
	if n == 0 {
		avgRet = avgPost
	}

	data := models.GroupPerformanceData{
		GroupID:          id,
		GroupName:        name,
		GroupType:        groupType,
		MemberCount:      len(members),
		AveragePretest:   round2(avgPre),
		AveragePosttest:  round2(avgPost),
		AverageRetention: round2(avgRet),
		ImprovementRate:  round2(improvementRate(avgPre, avgPost)),
		RetentionRate:    round2(retentionRate(avgRet, avgPost)),
		GenderBalance:    grouping.GenderBalance(members),
	}
	for _, s := range members {
		switch grouping.PretestCategory(s.Pretest) {
		case grouping.CategoryHigh:
			data.AbilityDistribution.High++
		case grouping.CategoryMid:
			data.AbilityDistribution.Mid++
		case grouping.CategoryLow:
			data.AbilityDistribution.Low++
		default:
			data.AbilityDistribution.Unknown++
		}
	}
	if opts.IncludeDetails {
		data.Students = make([]models.StudentPerformanceDetail, 0, len(members))
		for _, s := range members {
			data.Students = append(data.Students, StudentDetail(s))
		}
	}
	return data
}

// StudentDetail computes the per-student deltas. Each is nil when either endpoint
// is missing or its baseline is zero.
func StudentDetail(s models.StudentPerformance) models.StudentPerformanceDetail {
	return models.StudentPerformanceDetail{
		StudentRef:           s.Ref(),
		Gender:               grouping.NormalizeGender(s.Gender),
		Pretest:              s.Pretest,
		Posttest:             s.Posttest,
		Retention:            s.Retention,
		PretestCategory:      grouping.PretestCategory(s.Pretest),
		ImmediateImprovement: percentChange(s.Pretest, s.Posttest),
		SustainedImprovement: percentChange(s.Pretest, s.Retention),
		RetentionStability:   percentOf(s.Retention, s.Posttest),
	}
}

func classStats(roster []models.StudentPerformance) models.ClassPerformanceStats {
	total := len(roster)
	avgPre, nPre := meanOf(roster, pretest)
	avgPost, nPost := meanOf(roster, posttest)
	avgRet, nRet := meanOf(roster, retention)
	if nRet == 0 {
		avgRet = avgPost
	}
	return models.ClassPerformanceStats{
		TotalStudents:      total,
		Pretest:            completion(nPre, total),
		Posttest:           completion(nPost, total),
		Retention:          completion(nRet, total),
		AveragePretest:     round2(avgPre),
		AveragePosttest:    round2(avgPost),
		AverageRetention:   round2(avgRet),
		OverallImprovement: round2(improvementRate(avgPre, avgPost)),
		OverallRetention:   round2(retentionRate(avgRet, avgPost)),
	}
}

func completion(done, total int) models.TestCompletion {
	out := models.TestCompletion{Completed: done}
	if total > 0 {
		out.Rate = round2(float64(done) / float64(total) * 100)
	}
	return out
}

func improvementRate(avgPre, avgPost float64) float64 {
	if avgPre == 0 {
		return 0
	}
	return (avgPost - avgPre) / avgPre * 100
}

func retentionRate(avgRet, avgPost float64) float64 {
	if avgPost == 0 {
		return 100
	}
	return avgRet / avgPost * 100
}

func percentChange(from, to *float64) *float64 {
	if from == nil || to == nil || *from == 0 {
		return nil
	}
	v := round2((*to - *from) / *from * 100)
	return &v
}

func percentOf(part, whole *float64) *float64 {
	if part == nil || whole == nil || *whole == 0 {
		return nil
	}
	v := round2(*part / *whole * 100)
	return &v
}

type scoreField func(models.StudentPerformance) *float64

func pretest(s models.StudentPerformance) *float64 { return s.Pretest }
func posttest(s models.StudentPerformance) *float64 { return s.Posttest }
func retention(s models.StudentPerformance) *float64 { return s.Retention }

// meanOf averages the present values of field, returning 0 when none are present.
func meanOf(students []models.StudentPerformance, field scoreField) (float64, int) {
	sum, n := 0.0, 0
	for _, s := range students {
		if v := field(s); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
