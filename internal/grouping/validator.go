package grouping

import (
	"fmt"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

// Validate checks a grouping against constraints and collects every violation.
// Missing tiers are reported as warnings and never affect Valid.
func Validate(result *models.GroupingResult, c models.GroupingConstraints) models.ValidationReport {
	report := models.ValidationReport{Issues: []string{}, Warnings: []string{}}
	if result == nil {
		report.Issues = append(report.Issues, "grouping result is empty")
		return report
	}

	imbalanced := 0
	var tiers models.AbilityDistribution
	for _, g := range result.Groups {
		size := len(g.StudentIDs)
		switch {
		case size < c.MinGroupSize:
			report.Issues = append(report.Issues, fmt.Sprintf("%s has %d members, %d below the minimum of %d", g.Name, size, c.MinGroupSize-size, c.MinGroupSize))
		case c.MaxGroupSize > 0 && size > c.MaxGroupSize:
			report.Issues = append(report.Issues, fmt.Sprintf("%s has %d members, %d above the maximum of %d", g.Name, size, size-c.MaxGroupSize, c.MaxGroupSize))
		}
		if g.GenderBalance.Ratio > ImbalancedRatio {
			imbalanced++
		}
		tiers.High += g.PerformanceMetrics.AbilityDistribution.High
		tiers.Medium += g.PerformanceMetrics.AbilityDistribution.Medium
		tiers.Low += g.PerformanceMetrics.AbilityDistribution.Low
	}

	if total := len(result.Groups); imbalanced*2 > total {
		report.Issues = append(report.Issues, fmt.Sprintf("%d of %d groups exceed the gender imbalance ratio of %.1f", imbalanced, total, ImbalancedRatio))
	}

	if len(result.Groups) > 0 {
		if tiers.High == 0 {
			report.Warnings = append(report.Warnings, "No high-performing students distributed")
		}
		if tiers.Medium == 0 {
			report.Warnings = append(report.Warnings, "No medium-performing students distributed")
		}
		if tiers.Low == 0 {
			report.Warnings = append(report.Warnings, "No low-performing students distributed")
		}
	}

	report.Valid = len(report.Issues) == 0
	return report
}
