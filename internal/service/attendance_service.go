package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gradebook-io/school-admin-api/internal/models"
	appErrors "github.com/gradebook-io/school-admin-api/pkg/errors"
)

// fullDayAbsenceComment is stamped on every record the full-day sweep
// creates or overwrites, so the rows are distinguishable from per-lesson
// marks entered by hand.
const fullDayAbsenceComment = "Marked absent for full day"

type attendanceRepository interface {
	FindByID(ctx context.Context, id string) (*models.Attendance, error)
	FindByLessonStudent(ctx context.Context, lessonID, studentID string) (*models.Attendance, error)
	Create(ctx context.Context, record *models.Attendance) error
	Update(ctx context.Context, record *models.Attendance) error
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	ListByStudent(ctx context.Context, studentID string, from, to *time.Time) ([]models.AttendanceRecord, error)
	Delete(ctx context.Context, id string) error
}

type attendanceLessonRepository interface {
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	ListForStudentOnDate(ctx context.Context, studentID string, date time.Time) ([]models.Lesson, error)
}

type attendanceStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// AttendanceService implements attendance marking, including the
// full-day absence sweep across a student's schedule.
type AttendanceService struct {
	repo      attendanceRepository
	lessons   attendanceLessonRepository
	students  attendanceStudentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs an AttendanceService instance.
func NewAttendanceService(repo attendanceRepository, lessons attendanceLessonRepository, students attendanceStudentRepository, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, lessons: lessons, students: students, validator: validate, logger: logger}
}

// MarkRequest is the payload for recording attendance in a single lesson.
type MarkRequest struct {
	LessonID    string  `json:"lesson_id" validate:"required,uuid4"`
	StudentID   string  `json:"student_id" validate:"required,uuid4"`
	Status      string  `json:"status" validate:"required"`
	IsJustified bool    `json:"is_justified"`
	Comment     *string `json:"comment"`
}

// MarkAbsentRequest is the payload for the full-day absence sweep.
type MarkAbsentRequest struct {
	StudentID   string  `json:"student_id" validate:"required,uuid4"`
	Date        string  `json:"date" validate:"required,datetime=2006-01-02"`
	IsJustified *bool   `json:"is_justified"`
	Comment     *string `json:"comment"`
}

// Mark records attendance for one student in one lesson. When a record
// already exists for the pair it is overwritten in place, so repeated
// submissions converge on the latest mark.
func (s *AttendanceService) Mark(ctx context.Context, req MarkRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	status := models.AttendanceStatus(req.Status)
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid attendance status")
	}

	lesson, err := s.lessons.FindByID(ctx, req.LessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch lesson")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch student")
	}

	record, err := s.upsert(ctx, lesson, req.StudentID, status, req.IsJustified, req.Comment)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// MarkAbsentForDay marks a student absent in every lesson scheduled for
// their class on the given date. The sweep is idempotent: rerunning it
// rewrites each record to the same absent state rather than duplicating
// rows, and a presence mark entered earlier in the day is flipped to
// absent. Rows come back in schedule order.
func (s *AttendanceService) MarkAbsentForDay(ctx context.Context, req MarkAbsentRequest) ([]models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid full-day absence payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
	}

	// Defaults are resolved once here so every lesson in the sweep gets
	// the same justification flag and comment.
	justified := false
	if req.IsJustified != nil {
		justified = *req.IsJustified
	}
	comment := fullDayAbsenceComment
	if req.Comment != nil && *req.Comment != "" {
		comment = *req.Comment
	}

	// The student lookup runs before any write so an unknown id fails
	// the whole request instead of leaving a partial sweep behind.
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch student")
	}

	lessons, err := s.lessons.ListForStudentOnDate(ctx, req.StudentID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to resolve lessons for student")
	}
	if len(lessons) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no lessons scheduled for student on this date")
	}

	records := make([]models.Attendance, 0, len(lessons))
	for _, lesson := range lessons {
		record, err := s.upsert(ctx, &lesson, req.StudentID, models.AttendanceStatusAbsent, justified, &comment)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	s.logger.Info("marked student absent for full day",
		zap.String("student_id", req.StudentID),
		zap.String("date", req.Date),
		zap.Int("lessons", len(records)))
	return records, nil
}

// upsert writes the attendance state for a (lesson, student) pair. The
// existing row wins the id; a concurrent insert racing past the initial
// lookup is caught by the unique constraint and retried as an update.
func (s *AttendanceService) upsert(ctx context.Context, lesson *models.Lesson, studentID string, status models.AttendanceStatus, justified bool, comment *string) (*models.Attendance, error) {
	existing, err := s.repo.FindByLessonStudent(ctx, lesson.ID, studentID)
	switch {
	case err == nil:
		existing.Date = lesson.Date
		existing.Status = status
		existing.IsJustified = justified
		existing.Comment = comment
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to update attendance")
		}
		return existing, nil
	case errors.Is(err, sql.ErrNoRows):
		record := &models.Attendance{
			LessonID:    lesson.ID,
			StudentID:   studentID,
			Date:        lesson.Date,
			Status:      status,
			IsJustified: justified,
			Comment:     comment,
		}
		if err := s.repo.Create(ctx, record); err != nil {
			var appErr *appErrors.Error
			if errors.As(err, &appErr) && appErr.Code == appErrors.ErrConflict.Code {
				return s.retryAsUpdate(ctx, lesson, studentID, status, justified, comment)
			}
			return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to create attendance")
		}
		return record, nil
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch attendance")
	}
}

// retryAsUpdate handles the lost insert race: some other writer created
// the row between our lookup and insert, so fetch it and overwrite.
func (s *AttendanceService) retryAsUpdate(ctx context.Context, lesson *models.Lesson, studentID string, status models.AttendanceStatus, justified bool, comment *string) (*models.Attendance, error) {
	s.logger.Warn("attendance insert lost race, retrying as update",
		zap.String("lesson_id", lesson.ID),
		zap.String("student_id", studentID))
	existing, err := s.repo.FindByLessonStudent(ctx, lesson.ID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch attendance after conflict")
	}
	existing.Date = lesson.Date
	existing.Status = status
	existing.IsJustified = justified
	existing.Comment = comment
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to update attendance after conflict")
	}
	return existing, nil
}

// List returns attendance records matching the filter with pagination.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, *models.Pagination, error) {
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to list attendance")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ByStudent returns one student's attendance history.
func (s *AttendanceService) ByStudent(ctx context.Context, studentID string, from, to *time.Time) ([]models.AttendanceRecord, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch student")
	}
	rows, err := s.repo.ListByStudent(ctx, studentID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to list student attendance")
	}
	return rows, nil
}

// UpdateRequest carries mutable attendance fields.
type UpdateRequest struct {
	Status      *string `json:"status"`
	IsJustified *bool   `json:"is_justified"`
	Comment     *string `json:"comment"`
}

// Update patches an attendance record in place.
func (s *AttendanceService) Update(ctx context.Context, id string, req UpdateRequest) (*models.Attendance, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch attendance")
	}
	if req.Status != nil {
		status := models.AttendanceStatus(*req.Status)
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid attendance status")
		}
		record.Status = status
	}
	if req.IsJustified != nil {
		record.IsJustified = *req.IsJustified
	}
	if req.Comment != nil {
		record.Comment = req.Comment
	}
	if err := s.repo.Update(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to update attendance")
	}
	return record, nil
}

// Delete removes an attendance record.
func (s *AttendanceService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to delete attendance")
	}
	return nil
}
