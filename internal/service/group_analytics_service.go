package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-grouping-api/internal/analytics"
	"github.com/noah-isme/sma-grouping-api/internal/dto"
	"github.com/noah-isme/sma-grouping-api/internal/grouping"
	"github.com/noah-isme/sma-grouping-api/internal/models"
	"github.com/noah-isme/sma-grouping-api/internal/repository"
	appErrors "github.com/noah-isme/sma-grouping-api/pkg/errors"
	"github.com/noah-isme/sma-grouping-api/pkg/export"
	"github.com/noah-isme/sma-grouping-api/pkg/jobs"
)

const (
	analyticsCachePrefix = "grouping:analytics"
	historyJobType       = "group_metrics_history"
)

func analyticsCacheKey(classID string, includeDetails bool) string {
	return fmt.Sprintf("%s:%s:details=%t", analyticsCachePrefix, classID, includeDetails)
}

func analyticsCachePattern(classID string) string {
	return fmt.Sprintf("%s:%s:*", analyticsCachePrefix, classID)
}

type groupReader interface {
	ListByClass(ctx context.Context, classID string) ([]models.PersistedGroup, error)
}

type groupMetricsRepository interface {
	Record(ctx context.Context, record *models.GroupMetricsRecord) error
	ListByGroup(ctx context.Context, groupID string, limit int) ([]models.GroupMetricsRecord, error)
}

type historyEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

// GroupAnalyticsServiceConfig governs caching of analytics payloads.
type GroupAnalyticsServiceConfig struct {
	CacheTTL time.Duration
}

// GroupAnalyticsService aggregates persisted groups and enrollment scores into group and class analytics.
type GroupAnalyticsService struct {
	roster    rosterReader
	groups    groupReader
	history   groupMetricsRepository
	cache     *CacheService
	queue     historyEnqueuer
	validator *validator.Validate
	logger    *zap.Logger
	cfg       GroupAnalyticsServiceConfig
	now       func() time.Time
}

// NewGroupAnalyticsService wires analytics dependencies. history and cache may be nil.
func NewGroupAnalyticsService(
	roster rosterReader,
	groups groupReader,
	history groupMetricsRepository,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg GroupAnalyticsServiceConfig,
) *GroupAnalyticsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupAnalyticsService{
		roster:    roster,
		groups:    groups,
		history:   history,
		cache:     cache,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// HistoryQueueName names the metrics write-back queue.
const HistoryQueueName = "group-metrics-history"

// NewHistoryQueue builds the write-back queue that runs RecordHistory. A failed
// snapshot is logged and counted, never retried.
func NewHistoryQueue(svc *GroupAnalyticsService, workers int, logger *zap.Logger) *jobs.Queue {
	return jobs.NewQueue(HistoryQueueName, svc.RecordHistory, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: 0,
		Logger:     logger,
	})
}

// UseHistoryQueue enables metrics write-back through q.
func (s *GroupAnalyticsService) UseHistoryQueue(q historyEnqueuer) {
	s.queue = q
}

// GroupAnalytics returns the analytics payload of a class and whether it was served from cache.
func (s *GroupAnalyticsService) GroupAnalytics(ctx context.Context, query dto.GroupAnalyticsQuery) (*models.ClassGroupAnalytics, bool, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid analytics query")
	}

	key := analyticsCacheKey(query.ClassID, query.IncludeDetails)
	var cached models.ClassGroupAnalytics
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	roster, groups, err := s.load(ctx, query.ClassID)
	if err != nil {
		return nil, false, err
	}

	result := analytics.Aggregate(query.ClassID, groups, roster, analytics.Options{IncludeDetails: query.IncludeDetails})
	result.GeneratedAt = s.now().UTC()

	s.cache.Set(ctx, key, result, s.cfg.CacheTTL)
	s.enqueueHistory(result)

	return &result, false, nil
}

// StudentPerformance lists every enrolled student with tier and pretest category.
func (s *GroupAnalyticsService) StudentPerformance(ctx context.Context, classID string) ([]models.StudentPerformanceSummary, error) {
	if classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "classId is required")
	}
	roster, err := s.roster.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	c := grouping.DefaultConstraints()
	out := make([]models.StudentPerformanceSummary, 0, len(roster))
	for _, student := range roster {
		out = append(out, grouping.Summarize(student, c))
	}
	return out, nil
}

// Export renders the group analytics of a class as CSV or PDF.
func (s *GroupAnalyticsService) Export(ctx context.Context, query dto.ExportAnalyticsQuery) (*export.Document, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnsupportedFormat.Code, appErrors.ErrUnsupportedFormat.Status, "invalid export query")
	}
	format, err := export.ParseFormat(query.Format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnsupportedFormat.Code, appErrors.ErrUnsupportedFormat.Status, appErrors.ErrUnsupportedFormat.Message)
	}

	result, _, err := s.GroupAnalytics(ctx, dto.GroupAnalyticsQuery{ClassID: query.ClassID})
	if err != nil {
		return nil, err
	}

	doc, err := export.Render(format, "group-analytics-"+query.ClassID, analyticsDataset(result))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return doc, nil
}

// GroupHistory lists recorded metrics snapshots for a persisted group, newest first.
func (s *GroupAnalyticsService) GroupHistory(ctx context.Context, query dto.GroupHistoryQuery) ([]models.GroupMetricsRecord, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid history query")
	}
	if s.history == nil {
		return []models.GroupMetricsRecord{}, nil
	}
	records, err := s.history.ListByGroup(ctx, query.GroupID, query.Limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group history")
	}
	return records, nil
}

// RecordHistory is the job handler that writes one metrics snapshot. A group
// deleted since the snapshot was taken is skipped.
func (s *GroupAnalyticsService) RecordHistory(ctx context.Context, job jobs.Job) error {
	record, ok := job.Payload.(models.GroupMetricsRecord)
	if !ok {
		s.logger.Error("unexpected history job payload", zap.String("job_id", job.ID))
		return nil
	}
	if s.history == nil {
		return nil
	}
	if err := s.history.Record(ctx, &record); err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			s.logger.Info("skipping metrics history for missing group", zap.String("group_id", record.GroupID))
			return nil
		}
		return err
	}
	return nil
}

func (s *GroupAnalyticsService) load(ctx context.Context, classID string) ([]models.StudentPerformance, []models.PersistedGroup, error) {
	var (
		roster []models.StudentPerformance
		groups []models.PersistedGroup
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		roster, err = s.roster.ListByClass(gctx, classID)
		if err != nil {
			return fmt.Errorf("load roster: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		groups, err = s.groups.ListByClass(gctx, classID)
		if err != nil {
			return fmt.Errorf("load groups: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load analytics data")
	}
	return roster, groups, nil
}

func (s *GroupAnalyticsService) enqueueHistory(result models.ClassGroupAnalytics) {
	if s.queue == nil || s.history == nil {
		return
	}
	for _, g := range result.Groups {
		if g.GroupType != models.GroupTypeGroup {
			continue
		}
		record := models.GroupMetricsRecord{
			ID:               uuid.NewString(),
			GroupID:          g.GroupID,
			ClassID:          result.ClassID,
			AveragePretest:   g.AveragePretest,
			AveragePosttest:  g.AveragePosttest,
			AverageRetention: g.AverageRetention,
			ImprovementRate:  g.ImprovementRate,
			RetentionRate:    g.RetentionRate,
			GenderRatio:      g.GenderBalance.Ratio,
			MemberCount:      g.MemberCount,
			RecordedAt:       result.GeneratedAt,
		}
		job := jobs.Job{ID: record.ID, Type: historyJobType, Payload: record}
		if err := s.queue.TryEnqueue(job); err != nil {
			s.logger.Warn("metrics history not queued", zap.String("group_id", g.GroupID), zap.Error(err))
		}
	}
}

func analyticsDataset(result *models.ClassGroupAnalytics) export.Dataset {
	stats := result.Class
	data := export.Dataset{
		Title: "Group Performance Analytics",
		Summary: []string{
			fmt.Sprintf("Class: %s", result.ClassID),
			fmt.Sprintf("Students: %d (grouped %d, ungrouped %d, groups %d)", stats.TotalStudents, stats.Coverage.Grouped, stats.Coverage.Ungrouped, stats.Coverage.DistinctGroups),
			fmt.Sprintf("Class averages: pretest %s, posttest %s, retention %s", formatFloat(stats.AveragePretest), formatFloat(stats.AveragePosttest), formatFloat(stats.AverageRetention)),
			fmt.Sprintf("Improvement %s%%, retention %s%%", formatFloat(stats.OverallImprovement), formatFloat(stats.OverallRetention)),
			fmt.Sprintf("Generated at %s", result.GeneratedAt.Format(time.RFC3339)),
		},
		Headers: []string{"group", "type", "members", "avg_pretest", "avg_posttest", "avg_retention", "improvement_rate", "retention_rate", "gender_ratio"},
	}
	for _, g := range result.Groups {
		data.Rows = append(data.Rows, map[string]string{
			"group":            g.GroupName,
			"type":             string(g.GroupType),
			"members":          strconv.Itoa(g.MemberCount),
			"avg_pretest":      formatFloat(g.AveragePretest),
			"avg_posttest":     formatFloat(g.AveragePosttest),
			"avg_retention":    formatFloat(g.AverageRetention),
			"improvement_rate": formatFloat(g.ImprovementRate),
			"retention_rate":   formatFloat(g.RetentionRate),
			"gender_ratio":     formatFloat(g.GenderBalance.Ratio),
		})
	}
	return data
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
