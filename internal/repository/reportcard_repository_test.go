package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradebook-io/school-admin-api/internal/models"
	appErrors "github.com/gradebook-io/school-admin-api/pkg/errors"
)

func TestReportCardRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO report_cards")).
		WithArgs(sqlmock.AnyArg(), "student-1", 2026, 1, "DRAFT", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	card := &models.ReportCard{
		StudentID: "student-1",
		Year:      2026,
		Semester:  1,
	}
	require.NoError(t, repo.Create(context.Background(), card))
	assert.NotEmpty(t, card.ID)
	assert.Equal(t, models.ReportCardStatusDraft, card.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardRepositoryCreateUniqueViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO report_cards")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "report_cards_student_year_semester_key"})

	err := repo.Create(context.Background(), &models.ReportCard{
		StudentID: "student-1",
		Year:      2026,
		Semester:  1,
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}
