package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradebook-io/school-admin-api/internal/models"
	appErrors "github.com/gradebook-io/school-admin-api/pkg/errors"
)

type fakeEventRepo struct {
	events map[string]*models.EducationalEvent
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: map[string]*models.EducationalEvent{}}
}

func (f *fakeEventRepo) Create(_ context.Context, event *models.EducationalEvent) error {
	f.events[event.ID] = event
	return nil
}

func (f *fakeEventRepo) FindByID(_ context.Context, id string) (*models.EducationalEvent, error) {
	event, ok := f.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return event, nil
}

func (f *fakeEventRepo) List(_ context.Context, _ models.EventFilter) ([]models.EducationalEvent, error) {
	out := make([]models.EducationalEvent, 0, len(f.events))
	for _, event := range f.events {
		out = append(out, *event)
	}
	return out, nil
}

func (f *fakeEventRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.events[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.events, id)
	return nil
}

func newEventFixture() (*EventService, *fakeEventRepo) {
	repo := newFakeEventRepo()
	students := &fakeStudentRepo{students: map[string]*models.StudentDetail{
		testStudentID: {Student: models.Student{ID: testStudentID}},
	}}
	return NewEventService(repo, students, nil, nil, nil), repo
}

func TestEventGetReturnsStoredEvent(t *testing.T) {
	svc, _ := newEventFixture()

	created, err := svc.Create(context.Background(), "teacher-1", EventRequest{
		StudentID:   testStudentID,
		EventType:   string(models.EventTypeBehavior),
		Description: "disrupted the lesson",
		Severity:    string(models.EventSeverityMedium),
		Date:        "2026-03-16",
	})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, models.EventTypeBehavior, got.EventType)
	assert.Equal(t, "teacher-1", got.TeacherID)
}

func TestEventGetUnknownID(t *testing.T) {
	svc, _ := newEventFixture()

	_, err := svc.Get(context.Background(), "missing-event")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestEventCreateRejectsInvalidSeverity(t *testing.T) {
	svc, repo := newEventFixture()

	_, err := svc.Create(context.Background(), "teacher-1", EventRequest{
		StudentID:   testStudentID,
		EventType:   string(models.EventTypeOther),
		Description: "note",
		Severity:    "CRITICAL",
		Date:        "2026-03-16",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, repo.events)
}
