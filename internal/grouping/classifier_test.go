package grouping

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

func TestOverallPerformance(t *testing.T) {
	tests := []struct {
		name      string
		pre, post *float64
		retention *float64
		want      float64
	}{
		{name: "pre and post", pre: score(80), post: score(90), want: 85},
		{name: "with retention", pre: score(60), post: score(90), retention: score(75), want: 75},
		{name: "missing posttest counts as zero", pre: score(70), want: 35},
		{name: "nothing recorded", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, OverallPerformance(tt.pre, tt.post, tt.retention), 0.0001)
		})
	}
}

func TestTierForBoundaries(t *testing.T) {
	c := DefaultConstraints()
	assert.Equal(t, models.TierHigh, TierFor(80, c))
	assert.Equal(t, models.TierHigh, TierFor(100, c))
	assert.Equal(t, models.TierMedium, TierFor(79.9, c))
	assert.Equal(t, models.TierMedium, TierFor(60, c))
	assert.Equal(t, models.TierLow, TierFor(59.9, c))
	assert.Equal(t, models.TierLow, TierFor(0, c))
}

func TestPretestCategory(t *testing.T) {
	assert.Equal(t, CategoryHigh, PretestCategory(score(80)))
	assert.Equal(t, CategoryMid, PretestCategory(score(79.5)))
	assert.Equal(t, CategoryMid, PretestCategory(score(50)))
	assert.Equal(t, CategoryLow, PretestCategory(score(49.9)))
	assert.Equal(t, CategoryUnknown, PretestCategory(nil))
}

func TestSummarize(t *testing.T) {
	s := student("s1", "F", 70, 95)
	summary := Summarize(s, DefaultConstraints())

	assert.Equal(t, "s1", summary.ID)
	assert.Equal(t, models.GenderFemale, summary.Gender)
	assert.Equal(t, 82.5, summary.OverallPerformance)
	assert.Equal(t, models.TierHigh, summary.PerformanceTier)
	assert.Equal(t, CategoryMid, summary.PretestCategory)
}
