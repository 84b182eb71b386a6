package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradebook-io/school-admin-api/internal/models"
	appErrors "github.com/gradebook-io/school-admin-api/pkg/errors"
)

type fakeTeacherFinder struct {
	known map[string]bool
}

func (f *fakeTeacherFinder) FindByID(_ context.Context, id string) (*models.User, error) {
	if !f.known[id] {
		return nil, sql.ErrNoRows
	}
	return &models.User{ID: id, Role: models.RoleTeacher}, nil
}

type fakeGradeCounter struct {
	count int
	err   error
	calls int
}

func (f *fakeGradeCounter) CountByTeacher(context.Context, string) (int, error) {
	f.calls++
	return f.count, f.err
}

type fakeEventCounter struct {
	count     int
	high      int
	err       error
	highSince time.Time
}

func (f *fakeEventCounter) CountByTeacher(context.Context, string) (int, error) {
	return f.count, f.err
}

func (f *fakeEventCounter) CountHighSeveritySince(_ context.Context, _ string, since time.Time) (int, error) {
	f.highSince = since
	return f.high, f.err
}

func disabledCache() *CacheService {
	return NewCacheService(nil, nil, time.Minute, nil, false)
}

func knownTeachers(ids ...string) *fakeTeacherFinder {
	known := map[string]bool{}
	for _, id := range ids {
		known[id] = true
	}
	return &fakeTeacherFinder{known: known}
}

func TestTeacherSnapshotComposesCounters(t *testing.T) {
	grades := &fakeGradeCounter{count: 12}
	events := &fakeEventCounter{count: 5, high: 2}
	svc := NewDashboardService(knownTeachers("teacher-1"), grades, events, disabledCache(), nil, time.Minute)

	snapshot, cacheHit, err := svc.TeacherSnapshot(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, 12, snapshot.RecentGradesCount)
	assert.Equal(t, 5, snapshot.RecentEventsCount)
	assert.Equal(t, 2, snapshot.HighSeverityEventsCount)
	assert.Equal(t, 0, snapshot.MissingAttendanceCount)
}

func TestTeacherSnapshotUnknownTeacher(t *testing.T) {
	grades := &fakeGradeCounter{count: 12}
	svc := NewDashboardService(knownTeachers(), grades, &fakeEventCounter{}, disabledCache(), nil, time.Minute)

	_, _, err := svc.TeacherSnapshot(context.Background(), "ghost")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Zero(t, grades.calls, "no counters run for an unknown teacher")
}

func TestTeacherSnapshotHighSeverityWindow(t *testing.T) {
	events := &fakeEventCounter{}
	svc := NewDashboardService(knownTeachers("teacher-1"), &fakeGradeCounter{}, events, disabledCache(), nil, time.Minute)

	_, _, err := svc.TeacherSnapshot(context.Background(), "teacher-1")
	require.NoError(t, err)

	// The window is the trailing 7 days including today, so the cutoff
	// sits 6 days back at midnight.
	expected := time.Now().UTC().AddDate(0, 0, -6).Truncate(24 * time.Hour)
	assert.WithinDuration(t, expected, events.highSince, 24*time.Hour)
	assert.True(t, events.highSince.Before(time.Now().UTC()))
}

func TestTeacherSnapshotPropagatesCounterFailure(t *testing.T) {
	grades := &fakeGradeCounter{err: errors.New("db down")}
	events := &fakeEventCounter{count: 3, high: 1}
	svc := NewDashboardService(knownTeachers("teacher-1"), grades, events, disabledCache(), nil, time.Minute)

	_, _, err := svc.TeacherSnapshot(context.Background(), "teacher-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnavailable.Code, appErr.Code)
}

func TestTeacherSnapshotDoesNotCacheFailure(t *testing.T) {
	repo := &mapCacheRepo{store: map[string]TeacherDashboard{}}
	cacheService := NewCacheService(repo, nil, time.Minute, nil, true)
	grades := &fakeGradeCounter{err: errors.New("db down")}
	svc := NewDashboardService(knownTeachers("teacher-1"), grades, &fakeEventCounter{}, cacheService, nil, time.Minute)

	_, _, err := svc.TeacherSnapshot(context.Background(), "teacher-1")
	require.Error(t, err)
	assert.Zero(t, repo.sets, "a failed snapshot must not be cached")

	// Once the store recovers the real counts come through instead of a
	// cached zero snapshot.
	grades.err = nil
	grades.count = 42
	snapshot, cacheHit, err := svc.TeacherSnapshot(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, 42, snapshot.RecentGradesCount)
}

type mapCacheRepo struct {
	store map[string]TeacherDashboard
	sets  int
}

func (m *mapCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	value, ok := m.store[key]
	if !ok {
		return errors.New("cache miss")
	}
	*(dest.(*TeacherDashboard)) = value
	return nil
}

func (m *mapCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.sets++
	if snapshot, ok := value.(*TeacherDashboard); ok {
		m.store[key] = *snapshot
	}
	return nil
}

func (m *mapCacheRepo) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.store, key)
	}
	return nil
}

func TestTeacherSnapshotUsesCache(t *testing.T) {
	repo := &mapCacheRepo{store: map[string]TeacherDashboard{}}
	cacheService := NewCacheService(repo, nil, time.Minute, nil, true)
	grades := &fakeGradeCounter{count: 7}
	svc := NewDashboardService(knownTeachers("teacher-1"), grades, &fakeEventCounter{}, cacheService, nil, time.Minute)

	first, firstHit, err := svc.TeacherSnapshot(context.Background(), "teacher-1")
	require.NoError(t, err)
	second, secondHit, err := svc.TeacherSnapshot(context.Background(), "teacher-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.False(t, firstHit)
	assert.True(t, secondHit)
	assert.Equal(t, 1, grades.calls, "second call must be served from cache")
	assert.Equal(t, 1, repo.sets)

	svc.Invalidate(context.Background(), "teacher-1")
	_, _, err = svc.TeacherSnapshot(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, 2, grades.calls, "invalidation forces a recompute")
}
