package grouping

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grouping-api/internal/models"
	"github.com/noah-isme/sma-grouping-api/pkg/llm"
)

// FailureCategory classifies why an AI grouping attempt failed.
type FailureCategory string

// Failure categories reported on degraded results and metrics.
const (
	FailureQuota           FailureCategory = "quota"
	FailureRateLimit       FailureCategory = "rate_limit"
	FailureConnection      FailureCategory = "connection"
	FailureInvalidResponse FailureCategory = "invalid_response"
	FailureUnconfigured    FailureCategory = "unconfigured"
	FailureOther           FailureCategory = "other"
)

// AIConfig tunes generation requests.
type AIConfig struct {
	Temperature float64
	MaxTokens   int
	// Timeout bounds the provider call only; zero leaves it to the caller's context.
	Timeout time.Duration
}

// AIEngine asks a language model for a grouping and degrades to FallbackGroup when it cannot.
type AIEngine struct {
	provider llm.Provider
	cfg      AIConfig
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewAIEngine constructs an AIEngine.
func NewAIEngine(provider llm.Provider, cfg AIConfig, logger *zap.Logger) *AIEngine {
	if provider == nil {
		provider = llm.DisabledProvider{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return &AIEngine{
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer("github.com/noah-isme/sma-grouping-api/internal/grouping"),
	}
}

// Group produces an AI grouping, falling back to the heuristic engine exactly once on
// any provider or parse failure. Cancellation of ctx and roster preconditions are returned as errors.
func (e *AIEngine) Group(ctx context.Context, classID string, roster []models.StudentPerformance, groupCount int, base models.GroupingConstraints) (*models.GroupingResult, error) {
	if len(roster) == 0 {
		return nil, noStudents()
	}
	c := ConstraintsForGroupCount(base, len(roster), groupCount)

	ctx, span := e.tracer.Start(ctx, "grouping.ai", trace.WithAttributes(
		attribute.String("class_id", classID),
		attribute.Int("students", len(roster)),
		attribute.Int("group_count", groupCount),
		attribute.String("model", e.provider.ModelID()),
	))
	defer span.End()

	result, err := e.Generate(ctx, classID, roster, groupCount, c)
	if err == nil {
		span.SetAttributes(attribute.String("grouping.outcome", "ai"))
		return result, nil
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		span.SetStatus(codes.Error, "cancelled")
		return nil, ctx.Err()
	}
	if _, ok := AsPrecondition(err); ok {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	category := ClassifyFailure(err)
	span.RecordError(err)
	span.SetAttributes(
		attribute.String("grouping.outcome", "fallback"),
		attribute.String("grouping.fallback_reason", string(category)),
	)
	e.logger.Warn("ai grouping failed, using heuristic fallback",
		zap.String("class_id", classID),
		zap.String("category", string(category)),
		zap.Error(err),
	)

	fallback, fbErr := FallbackGroup(classID, roster, groupCount, c)
	if fbErr != nil {
		span.SetStatus(codes.Error, fbErr.Error())
		return nil, fmt.Errorf("fallback grouping after ai failure (%v): %w", err, fbErr)
	}
	fallback.AlgorithmVersion = VersionAIFallback
	fallback.FallbackReason = err.Error()
	fallback.FallbackCategory = string(category)
	fallback.OverallRationale = "AI grouping was unavailable, so the heuristic engine was used. " + fallback.OverallRationale
	return fallback, nil
}

// Generate runs the AI path only, with no fallback.
func (e *AIEngine) Generate(ctx context.Context, classID string, roster []models.StudentPerformance, groupCount int, c models.GroupingConstraints) (*models.GroupingResult, error) {
	if len(roster) == 0 {
		return nil, noStudents()
	}

	req := llm.UserPrompt(systemPrompt, buildUserMessage(roster, c, groupCount))
	req.Schema = GroupingSchema
	req.MaxTokens = e.cfg.MaxTokens
	req.Temperature = e.cfg.Temperature

	callCtx := ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	resp, err := e.provider.Generate(callCtx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, ErrInvalidAIResponse
	}

	parsed, err := parseAIResponse(resp.Content)
	if err != nil {
		return nil, err
	}
	return buildAIResult(classID, roster, parsed, c)
}

func buildAIResult(classID string, roster []models.StudentPerformance, parsed *aiGrouping, c models.GroupingConstraints) (*models.GroupingResult, error) {
	byID := make(map[string]models.StudentPerformance, len(roster))
	for _, s := range roster {
		byID[s.ID] = s
	}

	assigned := make(map[string]bool, len(roster))
	groups := make([]models.Group, 0, len(parsed.Groups))
	for _, g := range parsed.Groups {
		var members []models.StudentPerformance
		for _, id := range g.StudentIDs {
			id = strings.TrimSpace(id)
			student, known := byID[id]
			if !known || assigned[id] {
				continue
			}
			assigned[id] = true
			members = append(members, student)
		}
		if len(members) == 0 {
			continue
		}
		name := strings.TrimSpace(g.GroupName)
		if name == "" {
			name = fmt.Sprintf("Group %d", len(groups)+1)
		}
		groups = append(groups, buildGroup(classID, name, members, models.ProvenanceAI, g.Rationale, c))
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: no known students in response", ErrInvalidAIResponse)
	}

	result := newResult(classID, groups, len(roster), VersionAI, models.ProvenanceAI)
	result.OverallRationale = parsed.OverallRationale
	result.GenderRationale = parsed.GenderBalanceRationale
	result.PerformanceRationale = parsed.PerformanceRationale
	for _, s := range roster {
		if !assigned[s.ID] {
			result.UnassignedStudentIDs = append(result.UnassignedStudentIDs, s.ID)
		}
	}
	return result, nil
}

// ClassifyFailure maps a provider or parse error to a FailureCategory.
func ClassifyFailure(err error) FailureCategory {
	if err == nil {
		return ""
	}

	var (
		quota       *llm.ErrQuotaExceeded
		rateLimit   *llm.ErrRateLimit
		unavailable *llm.ErrProviderUnavailable
		invalid     *llm.ErrInvalidResponse
		truncated   *llm.ErrMaxTokensExceeded
	)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		return FailureUnconfigured
	case errors.As(err, &quota):
		return FailureQuota
	case errors.As(err, &rateLimit):
		return FailureRateLimit
	case errors.Is(err, ErrInvalidAIResponse), errors.As(err, &invalid), errors.As(err, &truncated):
		return FailureInvalidResponse
	case errors.Is(err, context.DeadlineExceeded):
		return FailureConnection
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "resource_exhausted"), strings.Contains(msg, "resource exhausted"), strings.Contains(msg, "quota"):
		return FailureQuota
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"):
		return FailureRateLimit
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "fetch failed"), strings.Contains(msg, "failed to fetch"), strings.Contains(msg, "timeout"):
		return FailureConnection
	}
	if errors.As(err, &unavailable) {
		return FailureConnection
	}
	return FailureOther
}
