package grouping

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grouping-api/internal/models"
	"github.com/noah-isme/sma-grouping-api/pkg/llm"
)

const aiReply = "```json\n" + `{
  // two groups
  "groups": [
    {"groupId": "g1", "groupName": "Alpha", "studentIds": ["s1", "s2", "s3", "s4", "ghost"], "rationale": "mixed abilities"},
    {"groupId": "g2", "groupName": "", "studentIds": ["s5", "s6", "s7", "s1"], "rationale": "balanced"}
  ],
  "overallRationale": "Two balanced groups",
  "genderBalanceRationale": "Alternating genders",
  "performanceRationale": "Spread tiers"
}` + "\n```"

func TestAIEngineGroupParsesResponse(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(aiReply)})
	engine := NewAIEngine(mock, AIConfig{Temperature: 0.4}, nil)
	roster := mixedRoster(8)

	result, err := engine.Group(context.Background(), "class-1", roster, 2, DefaultConstraints())
	require.NoError(t, err)

	assert.Equal(t, VersionAI, result.AlgorithmVersion)
	assert.Equal(t, models.ProvenanceAI, result.Provenance)
	assert.Equal(t, [][]string{{"s1", "s2", "s3", "s4"}, {"s5", "s6", "s7"}}, memberIDs(result))
	assert.Equal(t, "Alpha", result.Groups[0].Name)
	assert.Equal(t, "Group 2", result.Groups[1].Name)
	assert.Equal(t, []string{"s8"}, result.UnassignedStudentIDs)
	assert.Equal(t, "Two balanced groups", result.OverallRationale)
	assert.Equal(t, 8, result.TotalStudents)
	assert.Empty(t, result.FallbackReason)

	require.Equal(t, 1, mock.CallCount())
	call := mock.Calls[0]
	assert.Same(t, GroupingSchema, call.Schema)
	assert.Equal(t, 0.4, call.Temperature)
	assert.Contains(t, call.Messages[0].Content, "s8 | Student s8")
	assert.Contains(t, call.Messages[0].Content, "Exactly 2 groups")
	assert.Contains(t, call.Messages[0].Content, "Group size between 4 and 5")
}

func TestAIEngineDegradesToFallback(t *testing.T) {
	tests := []struct {
		name     string
		response llm.MockResponse
		category FailureCategory
	}{
		{name: "quota", response: llm.MockResponse{Err: errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED quota exceeded")}, category: FailureQuota},
		{name: "rate limit", response: llm.MockResponse{Err: &llm.ErrRateLimit{Err: errors.New("429")}}, category: FailureRateLimit},
		{name: "connection", response: llm.MockResponse{Err: errors.New("dial tcp: connection refused")}, category: FailureConnection},
		{name: "malformed", response: llm.MockResponse{Content: json.RawMessage(`sorry, I cannot help`)}, category: FailureInvalidResponse},
		{name: "unknown ids only", response: llm.MockResponse{Content: json.RawMessage(`{"groups":[{"studentIds":["x","y"]}]}`)}, category: FailureInvalidResponse},
	}
	roster := mixedRoster(9)
	expected, err := FallbackGroup("class-1", roster, 3, ConstraintsForGroupCount(DefaultConstraints(), 9, 3))
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := llm.NewMockProvider(tt.response)
			engine := NewAIEngine(mock, AIConfig{}, nil)

			result, err := engine.Group(context.Background(), "class-1", roster, 3, DefaultConstraints())
			require.NoError(t, err)

			assert.Equal(t, VersionAIFallback, result.AlgorithmVersion)
			assert.Equal(t, models.ProvenanceFallback, result.Provenance)
			assert.Equal(t, string(tt.category), result.FallbackCategory)
			assert.NotEmpty(t, result.FallbackReason)
			assert.Equal(t, memberIDs(expected), memberIDs(result))
			assert.Equal(t, 1, mock.CallCount())
		})
	}
}

func TestAIEngineKeepsOriginalErrorText(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: errors.New("quota exceeded for model")})
	result, err := NewAIEngine(mock, AIConfig{}, nil).Group(context.Background(), "class-1", mixedRoster(8), 0, DefaultConstraints())
	require.NoError(t, err)

	assert.Equal(t, "quota exceeded for model", result.FallbackReason)
	assert.Equal(t, "ai-v1-fallback", result.AlgorithmVersion)
}

func TestAIEngineUnconfiguredProvider(t *testing.T) {
	result, err := NewAIEngine(nil, AIConfig{}, nil).Group(context.Background(), "class-1", mixedRoster(8), 0, DefaultConstraints())
	require.NoError(t, err)
	assert.Equal(t, string(FailureUnconfigured), result.FallbackCategory)
}

func TestAIEngineRejectsEmptyRoster(t *testing.T) {
	mock := llm.NewMockProvider()
	_, err := NewAIEngine(mock, AIConfig{}, nil).Group(context.Background(), "class-1", nil, 0, DefaultConstraints())

	pe, ok := AsPrecondition(err)
	require.True(t, ok)
	assert.Equal(t, CodeNoStudents, pe.Code)
	assert.Zero(t, mock.CallCount())
}

func TestAIEngineHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mock := llm.NewMockProvider(llm.MockResponse{Err: context.Canceled})

	result, err := NewAIEngine(mock, AIConfig{}, nil).Group(ctx, "class-1", mixedRoster(8), 0, DefaultConstraints())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAIEngineFallbackPreconditionFailure(t *testing.T) {
	roster := mixedRoster(8)
	roster[3].Pretest = nil
	mock := llm.NewMockProvider(llm.MockResponse{Err: errors.New("connection refused")})

	_, err := NewAIEngine(mock, AIConfig{}, nil).Group(context.Background(), "class-1", roster, 0, DefaultConstraints())
	pe, ok := AsPrecondition(err)
	require.True(t, ok)
	assert.Equal(t, CodePretestIncomplete, pe.Code)
}

func TestClassifyFailure(t *testing.T) {
	assert.Equal(t, FailureUnconfigured, ClassifyFailure(llm.ErrNotConfigured))
	assert.Equal(t, FailureQuota, ClassifyFailure(&llm.ErrQuotaExceeded{Err: errors.New("x")}))
	assert.Equal(t, FailureQuota, ClassifyFailure(&llm.ErrProviderUnavailable{Err: errors.New("RESOURCE_EXHAUSTED")}))
	assert.Equal(t, FailureRateLimit, ClassifyFailure(errors.New("rate limit reached")))
	assert.Equal(t, FailureConnection, ClassifyFailure(errors.New("TypeError: fetch failed")))
	assert.Equal(t, FailureConnection, ClassifyFailure(context.DeadlineExceeded))
	assert.Equal(t, FailureConnection, ClassifyFailure(&llm.ErrProviderUnavailable{}))
	assert.Equal(t, FailureInvalidResponse, ClassifyFailure(ErrInvalidAIResponse))
	assert.Equal(t, FailureInvalidResponse, ClassifyFailure(&llm.ErrMaxTokensExceeded{}))
	assert.Equal(t, FailureOther, ClassifyFailure(errors.New("boom")))
}
