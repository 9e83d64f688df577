package grouping

import (
	"fmt"
	"strings"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

const systemPrompt = `You are an experienced teacher forming collaborative learning groups.
Every student must be placed in exactly one group. Use only the student IDs you are given.
Mix high, medium and low performers in every group and keep each group as close to an even male/female split as the roster allows.
Respond with JSON only.`

func buildUserMessage(roster []models.StudentPerformance, c models.GroupingConstraints, groupCount int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Form groups for a class of %d students.\n\n", len(roster))
	b.WriteString("Constraints:\n")
	fmt.Fprintf(&b, "- Group size between %d and %d students\n", c.MinGroupSize, c.MaxGroupSize)
	if groupCount > 0 {
		fmt.Fprintf(&b, "- Exactly %d groups\n", groupCount)
	}
	fmt.Fprintf(&b, "- Target gender balance %.0f%% male / %.0f%% female\n", c.TargetGenderBalance*100, (1-c.TargetGenderBalance)*100)
	fmt.Fprintf(&b, "- Performance tiers: High %.0f-%.0f, Medium %.0f-%.0f, Low %.0f-%.0f\n\n",
		c.Tiers.High.Min, c.Tiers.High.Max,
		c.Tiers.Medium.Min, c.Tiers.Medium.Max,
		c.Tiers.Low.Min, c.Tiers.Low.Max)

	b.WriteString("Students (id | name | gender | pretest | posttest | retention | overall | tier):\n")
	for _, s := range roster {
		overall := Overall(s)
		fmt.Fprintf(&b, "- %s | %s | %s | %s | %s | %s | %.1f | %s\n",
			s.ID, s.Name, NormalizeGender(s.Gender),
			formatScore(s.Pretest), formatScore(s.Posttest), formatScore(s.Retention),
			overall, TierFor(overall, c))
	}

	b.WriteString("\nReturn groups with groupId, groupName, studentIds and a short rationale, ")
	b.WriteString("plus overallRationale, genderBalanceRationale and performanceRationale.")
	return b.String()
}

func formatScore(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", *v)
}
