package repository

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

func TestAuditRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newGroupingRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), models.AuditActionApplyGrouping, models.AuditResourceStudentGroups,
			sqlmock.AnyArg(), "class-1", sqlmock.AnyArg(), "10.0.0.1", "test-agent", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	proposal := "p-1"
	entry := &models.AuditLog{
		Action:     models.AuditActionApplyGrouping,
		Resource:   models.AuditResourceStudentGroups,
		ResourceID: &proposal,
		ClassID:    "class-1",
		NewValues:  []byte(`{"forced":false}`),
		IPAddress:  "10.0.0.1",
		UserAgent:  "test-agent",
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryCreateError(t *testing.T) {
	db, mock, cleanup := newGroupingRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(errors.New("boom"))

	err := repo.Create(context.Background(), &models.AuditLog{Action: models.AuditActionDiscardProposal, ClassID: "class-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create audit log")
	assert.Error(t, repo.Create(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}
