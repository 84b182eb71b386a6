package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradebook-io/school-admin-api/internal/models"
	"github.com/gradebook-io/school-admin-api/internal/service"
	appErrors "github.com/gradebook-io/school-admin-api/pkg/errors"
)

type fakeAttendanceSrv struct {
	markResp     *models.Attendance
	markErr      error
	absentResp   []models.Attendance
	absentErr    error
	lastAbsent   service.MarkAbsentRequest
	absentCalled bool
}

func (f *fakeAttendanceSrv) Mark(_ context.Context, _ service.MarkRequest) (*models.Attendance, error) {
	return f.markResp, f.markErr
}

func (f *fakeAttendanceSrv) MarkAbsentForDay(_ context.Context, req service.MarkAbsentRequest) ([]models.Attendance, error) {
	f.absentCalled = true
	f.lastAbsent = req
	return f.absentResp, f.absentErr
}

func (f *fakeAttendanceSrv) List(context.Context, models.AttendanceFilter) ([]models.AttendanceRecord, *models.Pagination, error) {
	return nil, nil, nil
}

func (f *fakeAttendanceSrv) ByStudent(context.Context, string, *time.Time, *time.Time) ([]models.AttendanceRecord, error) {
	return nil, nil
}

func (f *fakeAttendanceSrv) Update(context.Context, string, service.UpdateRequest) (*models.Attendance, error) {
	return nil, nil
}

func (f *fakeAttendanceSrv) Delete(context.Context, string) error { return nil }

type errorEnvelope struct {
	Error *appErrors.Error `json:"error"`
}

func TestAttendanceHandlerMarkAbsentForDay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAttendanceHandler(&fakeAttendanceSrv{
		absentResp: []models.Attendance{
			{ID: "att-1", LessonID: "lesson-1", Status: models.AttendanceStatusAbsent},
			{ID: "att-2", LessonID: "lesson-2", Status: models.AttendanceStatusAbsent},
		},
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	body := `{"student_id":"0b54ef10-2f54-4b3a-9f5d-1c2d3e4f5a6b","date":"2026-03-16"}`
	c.Request = httptest.NewRequest(http.MethodPost, "/attendance/absent-day", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.MarkAbsentForDay(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var envelope struct {
		Data []models.Attendance `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 2)
	assert.Equal(t, models.AttendanceStatusAbsent, envelope.Data[0].Status)
}

func TestAttendanceHandlerMarkAbsentForDayPropagatesNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAttendanceHandler(&fakeAttendanceSrv{
		absentErr: appErrors.Clone(appErrors.ErrNotFound, "student not found"),
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	body := `{"student_id":"0b54ef10-2f54-4b3a-9f5d-1c2d3e4f5a6b","date":"2026-03-16"}`
	c.Request = httptest.NewRequest(http.MethodPost, "/attendance/absent-day", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.MarkAbsentForDay(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var envelope errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrNotFound.Code, envelope.Error.Code)
}

func TestAttendanceHandlerMarkAbsentForDayBadBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAttendanceSrv{}
	h := NewAttendanceHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/attendance/absent-day", strings.NewReader("{not json"))
	c.Request.Header.Set("Content-Type", "application/json")

	h.MarkAbsentForDay(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, srv.absentCalled)
}

func TestAttendanceHandlerListRejectsBadDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAttendanceHandler(&fakeAttendanceSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/attendance?dateFrom=16-03-2026", nil)

	h.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttendanceHandlerMark(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAttendanceHandler(&fakeAttendanceSrv{
		markResp: &models.Attendance{ID: "att-1", Status: models.AttendanceStatusPresent},
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	body := `{"lesson_id":"c3d90000-0000-4000-8000-000000000000","student_id":"0b54ef10-2f54-4b3a-9f5d-1c2d3e4f5a6b","status":"PRESENT"}`
	c.Request = httptest.NewRequest(http.MethodPost, "/attendance", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Mark(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
}
