package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradebook-io/school-admin-api/internal/models"
	appErrors "github.com/gradebook-io/school-admin-api/pkg/errors"
)

type fakeAttendanceRepo struct {
	records map[string]*models.Attendance // keyed by lessonID+"/"+studentID
	created []*models.Attendance
	updated []*models.Attendance

	createErrs map[string]error // one-shot errors per lesson key
	findErr    error
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{records: map[string]*models.Attendance{}, createErrs: map[string]error{}}
}

func attKey(lessonID, studentID string) string { return lessonID + "/" + studentID }

func (f *fakeAttendanceRepo) FindByID(_ context.Context, id string) (*models.Attendance, error) {
	for _, r := range f.records {
		if r.ID == id {
			copied := *r
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAttendanceRepo) FindByLessonStudent(_ context.Context, lessonID, studentID string) (*models.Attendance, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	record, ok := f.records[attKey(lessonID, studentID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *record
	return &copied, nil
}

func (f *fakeAttendanceRepo) Create(_ context.Context, record *models.Attendance) error {
	key := attKey(record.LessonID, record.StudentID)
	if err, ok := f.createErrs[key]; ok {
		delete(f.createErrs, key)
		return err
	}
	if record.ID == "" {
		record.ID = "att-" + key
	}
	copied := *record
	f.records[key] = &copied
	f.created = append(f.created, &copied)
	return nil
}

func (f *fakeAttendanceRepo) Update(_ context.Context, record *models.Attendance) error {
	key := attKey(record.LessonID, record.StudentID)
	if _, ok := f.records[key]; !ok {
		return sql.ErrNoRows
	}
	copied := *record
	f.records[key] = &copied
	f.updated = append(f.updated, &copied)
	return nil
}

func (f *fakeAttendanceRepo) List(context.Context, models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	return nil, 0, nil
}

func (f *fakeAttendanceRepo) ListByStudent(context.Context, string, *time.Time, *time.Time) ([]models.AttendanceRecord, error) {
	return nil, nil
}

func (f *fakeAttendanceRepo) Delete(context.Context, string) error { return nil }

type fakeLessonRepo struct {
	lessons   []models.Lesson
	listCalls int
}

func (f *fakeLessonRepo) FindByID(_ context.Context, id string) (*models.Lesson, error) {
	for _, l := range f.lessons {
		if l.ID == id {
			copied := l
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeLessonRepo) ListForStudentOnDate(_ context.Context, _ string, _ time.Time) ([]models.Lesson, error) {
	f.listCalls++
	return f.lessons, nil
}

type fakeStudentRepo struct {
	students map[string]*models.StudentDetail
	calls    int
}

func (f *fakeStudentRepo) FindByID(_ context.Context, id string) (*models.StudentDetail, error) {
	f.calls++
	student, ok := f.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

func testDay() time.Time {
	return time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
}

func testLessons(n int) []models.Lesson {
	lessons := make([]models.Lesson, 0, n)
	for i := 0; i < n; i++ {
		lessons = append(lessons, models.Lesson{
			ID:      fmt.Sprintf("c3d9%04d-0000-4000-8000-000000000000", i),
			ClassID: "class-1",
			Subject: "Subject " + string(rune('A'+i)),
			Date:    testDay(),
		})
	}
	return lessons
}

func newAttendanceFixture(lessonCount int) (*AttendanceService, *fakeAttendanceRepo, *fakeLessonRepo, *fakeStudentRepo) {
	attRepo := newFakeAttendanceRepo()
	lessonRepo := &fakeLessonRepo{lessons: testLessons(lessonCount)}
	studentRepo := &fakeStudentRepo{students: map[string]*models.StudentDetail{
		"0b54ef10-2f54-4b3a-9f5d-1c2d3e4f5a6b": {Student: models.Student{
			ID:        "0b54ef10-2f54-4b3a-9f5d-1c2d3e4f5a6b",
			FirstName: "Lena",
			LastName:  "Morris",
		}},
	}}
	svc := NewAttendanceService(attRepo, lessonRepo, studentRepo, nil, nil)
	return svc, attRepo, lessonRepo, studentRepo
}

const testStudentID = "0b54ef10-2f54-4b3a-9f5d-1c2d3e4f5a6b"

func TestMarkAbsentForDayCreatesRecordForEveryLesson(t *testing.T) {
	svc, attRepo, _, _ := newAttendanceFixture(3)

	records, err := svc.MarkAbsentForDay(context.Background(), MarkAbsentRequest{
		StudentID: testStudentID,
		Date:      "2026-03-16",
	})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Len(t, attRepo.created, 3)
	assert.Empty(t, attRepo.updated)

	seen := map[string]bool{}
	for _, record := range records {
		seen[record.LessonID] = true
		assert.Equal(t, models.AttendanceStatusAbsent, record.Status)
		assert.False(t, record.IsJustified)
		require.NotNil(t, record.Comment)
		assert.Equal(t, "Marked absent for full day", *record.Comment)
		assert.True(t, record.Date.Equal(testDay()))
	}
	assert.Len(t, seen, 3)
}

func TestMarkAbsentForDayPreservesLessonOrder(t *testing.T) {
	svc, _, lessonRepo, _ := newAttendanceFixture(4)

	records, err := svc.MarkAbsentForDay(context.Background(), MarkAbsentRequest{
		StudentID: testStudentID,
		Date:      "2026-03-16",
	})
	require.NoError(t, err)
	require.Len(t, records, len(lessonRepo.lessons))
	for i, record := range records {
		assert.Equal(t, lessonRepo.lessons[i].ID, record.LessonID)
	}
}

func TestMarkAbsentForDayIsIdempotent(t *testing.T) {
	svc, attRepo, _, _ := newAttendanceFixture(2)

	req := MarkAbsentRequest{StudentID: testStudentID, Date: "2026-03-16"}
	first, err := svc.MarkAbsentForDay(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.MarkAbsentForDay(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, attRepo.created, 2, "second run must not insert new rows")
	assert.Len(t, attRepo.updated, 2, "second run rewrites the existing rows")
	require.Len(t, second, len(first))
	for i := range second {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, models.AttendanceStatusAbsent, second[i].Status)
	}
}

func TestMarkAbsentForDayOverwritesPresent(t *testing.T) {
	svc, attRepo, lessonRepo, _ := newAttendanceFixture(2)

	// Pre-mark the first lesson PRESENT, as a teacher would earlier in
	// the morning.
	justified := true
	note := "arrived on time"
	require.NoError(t, attRepo.Create(context.Background(), &models.Attendance{
		LessonID:    lessonRepo.lessons[0].ID,
		StudentID:   testStudentID,
		Date:        testDay(),
		Status:      models.AttendanceStatusPresent,
		IsJustified: justified,
		Comment:     &note,
	}))

	records, err := svc.MarkAbsentForDay(context.Background(), MarkAbsentRequest{
		StudentID: testStudentID,
		Date:      "2026-03-16",
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	flipped := attRepo.records[attKey(lessonRepo.lessons[0].ID, testStudentID)]
	assert.Equal(t, models.AttendanceStatusAbsent, flipped.Status)
	assert.False(t, flipped.IsJustified)
	require.NotNil(t, flipped.Comment)
	assert.Equal(t, "Marked absent for full day", *flipped.Comment)
}

func TestMarkAbsentForDayHonorsExplicitDefaults(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture(1)

	justified := true
	comment := "medical leave"
	records, err := svc.MarkAbsentForDay(context.Background(), MarkAbsentRequest{
		StudentID:   testStudentID,
		Date:        "2026-03-16",
		IsJustified: &justified,
		Comment:     &comment,
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].IsJustified)
	assert.Equal(t, "medical leave", *records[0].Comment)
}

func TestMarkAbsentForDayUnknownStudent(t *testing.T) {
	svc, attRepo, lessonRepo, _ := newAttendanceFixture(3)

	_, err := svc.MarkAbsentForDay(context.Background(), MarkAbsentRequest{
		StudentID: "119e8f10-2f54-4b3a-9f5d-1c2d3e4f5a6b",
		Date:      "2026-03-16",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Empty(t, attRepo.created, "no writes may happen for an unknown student")
	assert.Zero(t, lessonRepo.listCalls, "lesson resolution must not run for an unknown student")
}

func TestMarkAbsentForDayEmptySchedule(t *testing.T) {
	svc, attRepo, _, _ := newAttendanceFixture(0)

	_, err := svc.MarkAbsentForDay(context.Background(), MarkAbsentRequest{
		StudentID: testStudentID,
		Date:      "2026-03-16",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Empty(t, attRepo.created)
}

func TestMarkAbsentForDayRejectsBadDate(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture(1)

	_, err := svc.MarkAbsentForDay(context.Background(), MarkAbsentRequest{
		StudentID: testStudentID,
		Date:      "16-03-2026",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestMarkAbsentForDayRetriesLostInsertRace(t *testing.T) {
	svc, attRepo, lessonRepo, _ := newAttendanceFixture(1)
	lessonID := lessonRepo.lessons[0].ID
	key := attKey(lessonID, testStudentID)

	// Simulate a concurrent writer: our insert loses against the unique
	// constraint, and by the time we retry the row exists.
	conflict := appErrors.Wrap(errors.New("duplicate key"), appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "duplicate record")
	attRepo.createErrs[key] = conflict
	attRepo.records[key] = &models.Attendance{
		ID:        "att-racing",
		LessonID:  lessonID,
		StudentID: testStudentID,
		Date:      testDay(),
		Status:    models.AttendanceStatusPresent,
	}

	records, err := svc.MarkAbsentForDay(context.Background(), MarkAbsentRequest{
		StudentID: testStudentID,
		Date:      "2026-03-16",
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "att-racing", records[0].ID)
	assert.Equal(t, models.AttendanceStatusAbsent, records[0].Status)
	require.Len(t, attRepo.updated, 1)
}

func TestMarkCreatesAndOverwrites(t *testing.T) {
	svc, attRepo, lessonRepo, _ := newAttendanceFixture(1)
	lessonID := lessonRepo.lessons[0].ID

	record, err := svc.Mark(context.Background(), MarkRequest{
		LessonID:  lessonID,
		StudentID: testStudentID,
		Status:    "PRESENT",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusPresent, record.Status)
	assert.Len(t, attRepo.created, 1)

	again, err := svc.Mark(context.Background(), MarkRequest{
		LessonID:  lessonID,
		StudentID: testStudentID,
		Status:    "ABSENT",
	})
	require.NoError(t, err)
	assert.Equal(t, record.ID, again.ID)
	assert.Equal(t, models.AttendanceStatusAbsent, again.Status)
	assert.Len(t, attRepo.created, 1)
	assert.Len(t, attRepo.updated, 1)
}

func TestMarkUnknownLesson(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture(1)

	_, err := svc.Mark(context.Background(), MarkRequest{
		LessonID:  "5fa2b710-2f54-4b3a-9f5d-1c2d3e4f5a6b",
		StudentID: testStudentID,
		Status:    "PRESENT",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestMarkRejectsInvalidStatus(t *testing.T) {
	svc, _, lessonRepo, _ := newAttendanceFixture(1)

	_, err := svc.Mark(context.Background(), MarkRequest{
		LessonID:  lessonRepo.lessons[0].ID,
		StudentID: testStudentID,
		Status:    "LATE",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestUpdatePatchesFields(t *testing.T) {
	svc, attRepo, lessonRepo, _ := newAttendanceFixture(1)
	lessonID := lessonRepo.lessons[0].ID

	created, err := svc.Mark(context.Background(), MarkRequest{
		LessonID:  lessonID,
		StudentID: testStudentID,
		Status:    "ABSENT",
	})
	require.NoError(t, err)

	justified := true
	status := "ABSENT"
	note := "parent called"
	updated, err := svc.Update(context.Background(), created.ID, UpdateRequest{
		Status:      &status,
		IsJustified: &justified,
		Comment:     &note,
	})
	require.NoError(t, err)
	assert.True(t, updated.IsJustified)
	assert.Equal(t, "parent called", *updated.Comment)
	require.Len(t, attRepo.updated, 1)
}
