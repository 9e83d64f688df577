package grouping

import (
	"fmt"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

func score(v float64) *float64 { return &v }

func student(id, gender string, pre, post float64) models.StudentPerformance {
	return models.StudentPerformance{
		ID:       id,
		Name:     "Student " + id,
		Gender:   gender,
		Pretest:  score(pre),
		Posttest: score(post),
	}
}

// mixedRoster builds n students cycling through high, medium and low scores and alternating gender.
func mixedRoster(n int) []models.StudentPerformance {
	scores := []float64{92, 71, 45}
	roster := make([]models.StudentPerformance, 0, n)
	for i := 0; i < n; i++ {
		gender := models.GenderMale
		if i%2 == 1 {
			gender = models.GenderFemale
		}
		s := scores[i%3] - float64(i)/10
		roster = append(roster, student(fmt.Sprintf("s%d", i+1), gender, s, s))
	}
	return roster
}

func memberIDs(result *models.GroupingResult) [][]string {
	out := make([][]string, 0, len(result.Groups))
	for _, g := range result.Groups {
		out = append(out, g.StudentIDs)
	}
	return out
}

func allMembers(result *models.GroupingResult) []string {
	var out []string
	for _, g := range result.Groups {
		out = append(out, g.StudentIDs...)
	}
	return out
}

func rosterIDs(roster []models.StudentPerformance) []string {
	out := make([]string, 0, len(roster))
	for _, s := range roster {
		out = append(out, s.ID)
	}
	return out
}
