package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

// ErrGroupNotFound is returned when a metrics snapshot references a group that no longer exists.
var ErrGroupNotFound = errors.New("student group not found")

// GroupMetricsRepository stores historical group analytics snapshots.
type GroupMetricsRepository struct {
	db *sqlx.DB
}

// NewGroupMetricsRepository constructs the repository.
func NewGroupMetricsRepository(db *sqlx.DB) *GroupMetricsRepository {
	return &GroupMetricsRepository{db: db}
}

// Record inserts a snapshot. It returns ErrGroupNotFound without writing when the group is gone.
func (r *GroupMetricsRepository) Record(ctx context.Context, record *models.GroupMetricsRecord) error {
	if record == nil {
		return fmt.Errorf("metrics record is nil")
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM student_groups WHERE id = $1)`, record.GroupID); err != nil {
		return fmt.Errorf("check student group: %w", err)
	}
	if !exists {
		return ErrGroupNotFound
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}
	const query = `INSERT INTO group_performance_history (id, group_id, class_id, average_pretest, average_posttest, average_retention, improvement_rate, retention_rate, gender_ratio, member_count, recorded_at)
VALUES (:id, :group_id, :class_id, :average_pretest, :average_posttest, :average_retention, :improvement_rate, :retention_rate, :gender_ratio, :member_count, :recorded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("insert group metrics: %w", err)
	}
	return nil
}

// ListByGroup returns the most recent snapshots for a group.
func (r *GroupMetricsRepository) ListByGroup(ctx context.Context, groupID string, limit int) ([]models.GroupMetricsRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const query = `SELECT id, group_id, class_id, average_pretest, average_posttest, average_retention, improvement_rate, retention_rate, gender_ratio, member_count, recorded_at
FROM group_performance_history WHERE group_id = $1 ORDER BY recorded_at DESC LIMIT $2`
	var records []models.GroupMetricsRecord
	if err := r.db.SelectContext(ctx, &records, query, groupID, limit); err != nil {
		return nil, fmt.Errorf("list group metrics: %w", err)
	}
	return records, nil
}
