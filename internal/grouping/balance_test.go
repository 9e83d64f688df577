package grouping

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

func TestGenderBalance(t *testing.T) {
	m := func(id string) models.StudentPerformance { return student(id, models.GenderMale, 70, 70) }
	f := func(id string) models.StudentPerformance { return student(id, models.GenderFemale, 70, 70) }
	o := func(id string) models.StudentPerformance { return student(id, "", 70, 70) }

	balanced := GenderBalance([]models.StudentPerformance{m("1"), m("2"), f("3"), f("4")})
	assert.Equal(t, models.GenderBalance{Male: 2, Female: 2, Ratio: 0}, balanced)

	assert.Equal(t, models.GenderBalance{}, GenderBalance(nil))

	maleHeavy := GenderBalance([]models.StudentPerformance{m("1"), m("2"), m("3"), f("4")})
	femaleHeavy := GenderBalance([]models.StudentPerformance{f("1"), f("2"), f("3"), m("4")})
	assert.Equal(t, 0.5, maleHeavy.Ratio)
	assert.Equal(t, maleHeavy.Ratio, femaleHeavy.Ratio)

	withOther := GenderBalance([]models.StudentPerformance{m("1"), m("2"), o("3")})
	assert.Equal(t, 2, withOther.Male)
	assert.Equal(t, 0.67, withOther.Ratio)
}

func TestNormalizeGender(t *testing.T) {
	assert.Equal(t, models.GenderMale, NormalizeGender(" Male "))
	assert.Equal(t, models.GenderMale, NormalizeGender("L"))
	assert.Equal(t, models.GenderFemale, NormalizeGender("perempuan"))
	assert.Equal(t, models.GenderOther, NormalizeGender("unspecified"))
}

func TestPerformanceMetrics(t *testing.T) {
	students := []models.StudentPerformance{
		student("1", models.GenderMale, 90, 91),
		student("2", models.GenderFemale, 70, 71),
		student("3", models.GenderMale, 40, 41),
	}
	metrics := PerformanceMetrics(students, DefaultConstraints())

	assert.Equal(t, float64(67), metrics.AverageScore)
	assert.Equal(t, 40.5, metrics.ScoreRange.Min)
	assert.Equal(t, 90.5, metrics.ScoreRange.Max)
	assert.Equal(t, models.AbilityDistribution{High: 1, Medium: 1, Low: 1}, metrics.AbilityDistribution)

	assert.Equal(t, models.PerformanceMetrics{}, PerformanceMetrics(nil, DefaultConstraints()))
}

func TestSummariseResult(t *testing.T) {
	result := &models.GroupingResult{Groups: []models.Group{
		{GenderBalance: models.GenderBalance{Ratio: 0}, PerformanceMetrics: models.PerformanceMetrics{AverageScore: 70}},
		{GenderBalance: models.GenderBalance{Ratio: 0.5}, PerformanceMetrics: models.PerformanceMetrics{AverageScore: 80}},
	}}
	Summarise(result)

	assert.Equal(t, models.GenderBalanceSummary{OverallRatio: 0.25, BalancedGroups: 1, TotalGroups: 2}, result.GenderBalanceSummary)
	assert.Equal(t, models.PerformanceBalanceSummary{MeanAverageScore: 75, StdDeviation: 5}, result.PerformanceBalanceSummary)
}
