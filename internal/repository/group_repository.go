package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

// GroupRepository persists applied groupings.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs the repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

type groupMember struct {
	GroupID   string `db:"group_id"`
	StudentID string `db:"student_id"`
}

// ListByClass returns the persisted groups of a class with their members.
func (r *GroupRepository) ListByClass(ctx context.Context, classID string) ([]models.PersistedGroup, error) {
	const groupsQuery = `SELECT id, class_id, name, is_ai_generated, algorithm_version, COALESCE(rationale, '') AS rationale, created_at
FROM student_groups WHERE class_id = $1 ORDER BY name ASC, id ASC`
	var groups []models.PersistedGroup
	if err := r.db.SelectContext(ctx, &groups, groupsQuery, classID); err != nil {
		return nil, fmt.Errorf("list student groups: %w", err)
	}
	if len(groups) == 0 {
		return groups, nil
	}

	const membersQuery = `SELECT m.group_id, m.student_id
FROM student_group_members m
JOIN student_groups g ON g.id = m.group_id
WHERE g.class_id = $1
ORDER BY m.group_id, m.student_id`
	var members []groupMember
	if err := r.db.SelectContext(ctx, &members, membersQuery, classID); err != nil {
		return nil, fmt.Errorf("list student group members: %w", err)
	}

	index := make(map[string]int, len(groups))
	for i := range groups {
		index[groups[i].ID] = i
		groups[i].MemberIDs = []string{}
	}
	for _, m := range members {
		if i, ok := index[m.GroupID]; ok {
			groups[i].MemberIDs = append(groups[i].MemberIDs, m.StudentID)
		}
	}
	return groups, nil
}

// ReplaceForClass deletes the class's groups and writes result in their place.
// Enrollment group numbers and rationales are rewritten in the same transaction.
func (r *GroupRepository) ReplaceForClass(ctx context.Context, classID string, result *models.GroupingResult) ([]models.PersistedGroup, error) {
	if result == nil {
		return nil, fmt.Errorf("grouping result is nil")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin replace student groups: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM student_group_members WHERE group_id IN (SELECT id FROM student_groups WHERE class_id = $1)`, classID); err != nil {
		return nil, fmt.Errorf("clear student group members: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM student_groups WHERE class_id = $1`, classID); err != nil {
		return nil, fmt.Errorf("clear student groups: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE enrollments SET group_number = NULL, group_rationale = NULL WHERE class_id = $1`, classID); err != nil {
		return nil, fmt.Errorf("reset enrollment groups: %w", err)
	}

	now := time.Now().UTC()
	persisted := make([]models.PersistedGroup, 0, len(result.Groups))
	for i, g := range result.Groups {
		row := models.PersistedGroup{
			ID:               g.ID,
			ClassID:          classID,
			Name:             g.Name,
			IsAIGenerated:    g.Provenance == models.ProvenanceAI,
			AlgorithmVersion: result.AlgorithmVersion,
			Rationale:        g.Rationale,
			CreatedAt:        now,
			MemberIDs:        append([]string(nil), g.StudentIDs...),
		}
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		const insertGroup = `INSERT INTO student_groups (id, class_id, name, is_ai_generated, algorithm_version, rationale, created_at)
VALUES (:id, :class_id, :name, :is_ai_generated, :algorithm_version, :rationale, :created_at)`
		if _, err = tx.NamedExecContext(ctx, insertGroup, &row); err != nil {
			return nil, fmt.Errorf("insert student group: %w", err)
		}
		for _, studentID := range row.MemberIDs {
			if _, err = tx.ExecContext(ctx, `INSERT INTO student_group_members (group_id, student_id) VALUES ($1, $2)`, row.ID, studentID); err != nil {
				return nil, fmt.Errorf("insert student group member: %w", err)
			}
			if _, err = tx.ExecContext(ctx, `UPDATE enrollments SET group_number = $1, group_rationale = $2 WHERE class_id = $3 AND student_id = $4`, i+1, g.Rationale, classID, studentID); err != nil {
				return nil, fmt.Errorf("annotate enrollment group: %w", err)
			}
		}
		persisted = append(persisted, row)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replace student groups: %w", err)
	}
	return persisted, nil
}
