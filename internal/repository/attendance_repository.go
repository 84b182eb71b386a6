package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gradebook-io/school-admin-api/internal/models"
)

// AttendanceRepository handles persistence for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// FindByID returns one attendance row.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	query := `SELECT id, lesson_id, student_id, date, status, is_justified, comment, created_at, updated_at
FROM attendances WHERE id = $1`
	var row models.Attendance
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	return &row, nil
}

// FindByLessonStudent returns the attendance row for a (lesson, student)
// pair. At most one such row exists; the pair is unique in the schema.
func (r *AttendanceRepository) FindByLessonStudent(ctx context.Context, lessonID, studentID string) (*models.Attendance, error) {
	query := `SELECT id, lesson_id, student_id, date, status, is_justified, comment, created_at, updated_at
FROM attendances WHERE lesson_id = $1 AND student_id = $2`
	var row models.Attendance
	if err := r.db.GetContext(ctx, &row, query, lessonID, studentID); err != nil {
		return nil, fmt.Errorf("find attendance by lesson and student: %w", err)
	}
	return &row, nil
}

// Create inserts a new attendance row. A racing insert for the same
// (lesson, student) pair loses against the unique constraint and is
// surfaced as a Conflict so callers can retry as an update.
func (r *AttendanceRepository) Create(ctx context.Context, record *models.Attendance) error {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CreatedAt = now
	record.UpdatedAt = now
	query := `INSERT INTO attendances (id, lesson_id, student_id, date, status, is_justified, comment, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, query,
		record.ID, record.LessonID, record.StudentID, record.Date, record.Status,
		record.IsJustified, record.Comment, record.CreatedAt, record.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return errConflict(err)
		}
		return fmt.Errorf("create attendance: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of an attendance row.
func (r *AttendanceRepository) Update(ctx context.Context, record *models.Attendance) error {
	record.UpdatedAt = time.Now().UTC()
	query := `UPDATE attendances SET date = $2, status = $3, is_justified = $4, comment = $5, updated_at = $6
WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		record.ID, record.Date, record.Status, record.IsJustified, record.Comment, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update attendance: %w", err)
	}
	return requireRowAffected(res, "update attendance")
}

// List returns attendance rows matching the filter, newest date first.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	base := `FROM attendances a
JOIN lessons l ON l.id = a.lesson_id
JOIN students s ON s.id = a.student_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.LessonID != "" {
		where = append(where, fmt.Sprintf("a.lesson_id = $%d", len(args)+1))
		args = append(args, filter.LessonID)
	}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Date != nil {
		where = append(where, fmt.Sprintf("a.date = $%d", len(args)+1))
		args = append(args, *filter.Date)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("a.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("a.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT a.id, a.lesson_id, a.student_id, a.date, a.status, a.is_justified, a.comment, a.created_at, a.updated_at,
        l.subject, s.first_name || ' ' || s.last_name AS student_name
        %s WHERE %s
        ORDER BY a.date DESC
        LIMIT %d OFFSET %d`, base, whereClause, size, offset)

	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return rows, total, nil
}

// ListByStudent returns a student's attendance history, newest first.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string, from, to *time.Time) ([]models.AttendanceRecord, error) {
	where := []string{"a.student_id = $1"}
	args := []interface{}{studentID}
	if from != nil {
		where = append(where, fmt.Sprintf("a.date >= $%d", len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		where = append(where, fmt.Sprintf("a.date <= $%d", len(args)+1))
		args = append(args, *to)
	}
	query := fmt.Sprintf(`SELECT a.id, a.lesson_id, a.student_id, a.date, a.status, a.is_justified, a.comment, a.created_at, a.updated_at,
l.subject, s.first_name || ' ' || s.last_name AS student_name
FROM attendances a
JOIN lessons l ON l.id = a.lesson_id
JOIN students s ON s.id = a.student_id
WHERE %s
ORDER BY a.date DESC`, strings.Join(where, " AND "))
	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("student attendance history: %w", err)
	}
	return rows, nil
}

// Delete removes an attendance row.
func (r *AttendanceRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendances WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	return requireRowAffected(res, "delete attendance")
}
