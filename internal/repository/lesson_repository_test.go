package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lessonColumns() []string {
	return []string{"id", "class_id", "subject", "start_time", "end_time", "date", "created_at", "updated_at"}
}

func TestLessonRepositoryListForStudentOnDate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	now := time.Now().UTC()
	date := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(lessonColumns()).
		AddRow("lesson-1", "class-1", "Math", "08:00", "08:45", date, now, now).
		AddRow("lesson-2", "class-1", "History", "09:00", "09:45", date, now, now)

	// The resolution goes through the student's current class membership,
	// ordered by start time.
	mock.ExpectQuery(regexp.QuoteMeta(`JOIN students s ON s.class_id = l.class_id
WHERE s.id = $1 AND l.date = $2
ORDER BY l.start_time ASC`)).
		WithArgs("student-1", date).
		WillReturnRows(rows)

	lessons, err := repo.ListForStudentOnDate(context.Background(), "student-1", date)
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Equal(t, "Math", lessons[0].Subject)
	assert.Equal(t, "History", lessons[1].Subject)
}

func TestLessonRepositoryListForStudentOnDateEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("JOIN students s ON s.class_id = l.class_id")).
		WithArgs("student-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(lessonColumns()))

	lessons, err := repo.ListForStudentOnDate(context.Background(), "student-1", time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, lessons)
}
