package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

const enrollmentStatusActive = "ACTIVE"

// RosterRepository loads the active enrollment roster with score history.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs the repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// ListByClass returns every active student in the class with their test scores.
func (r *RosterRepository) ListByClass(ctx context.Context, classID string) ([]models.StudentPerformance, error) {
	const query = `SELECT s.id AS student_id, s.full_name, COALESCE(s.gender, '') AS gender,
e.pretest_score, e.posttest_score, e.retention_score, e.group_number
FROM enrollments e
JOIN students s ON s.id = e.student_id
WHERE e.class_id = $1 AND e.status = $2
ORDER BY s.full_name ASC, s.id ASC`
	var roster []models.StudentPerformance
	if err := r.db.SelectContext(ctx, &roster, query, classID, enrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list class roster: %w", err)
	}
	return roster, nil
}
