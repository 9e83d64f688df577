package grouping

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

func TestConstraintsForGroupCount(t *testing.T) {
	base := DefaultConstraints()

	c := ConstraintsForGroupCount(base, 10, 3)
	assert.Equal(t, 3, c.MinGroupSize)
	assert.Equal(t, 5, c.MaxGroupSize)
	assert.Equal(t, base.Tiers, c.Tiers)

	small := ConstraintsForGroupCount(base, 5, 4)
	assert.Equal(t, 2, small.MinGroupSize)
	assert.Equal(t, 3, small.MaxGroupSize)

	assert.Equal(t, base, ConstraintsForGroupCount(base, 10, 0))
}

func TestEffectiveConstraints(t *testing.T) {
	base := DefaultConstraints()

	manual := EffectiveConstraints(&models.GroupingResult{Provenance: models.ProvenanceManual, TotalStudents: 4}, base, 0)
	assert.Equal(t, 2, manual.MinGroupSize)
	assert.Equal(t, 4, manual.MaxGroupSize)

	fallback := EffectiveConstraints(&models.GroupingResult{
		Provenance:    models.ProvenanceFallback,
		TotalStudents: 9,
		Groups:        make([]models.Group, 3),
	}, base, 0)
	assert.Equal(t, 3, fallback.MinGroupSize)
	assert.Equal(t, 4, fallback.MaxGroupSize)

	ai := EffectiveConstraints(&models.GroupingResult{Provenance: models.ProvenanceAI, TotalStudents: 12}, base, 0)
	assert.Equal(t, base, ai)

	assert.Equal(t, base, EffectiveConstraints(nil, base, 3))
}

func TestFallbackResultPassesItsEffectiveConstraints(t *testing.T) {
	roster := mixedRoster(9)
	result, err := FallbackGroup("class-1", roster, 0, DefaultConstraints())
	if !assert.NoError(t, err) {
		return
	}
	report := Validate(result, EffectiveConstraints(result, DefaultConstraints(), 0))
	for _, issue := range report.Issues {
		assert.NotContains(t, issue, "members")
	}
}
