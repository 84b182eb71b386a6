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

// LessonRepository handles persistence for lessons.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository constructs the repository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// List returns lessons matching the filter.
func (r *LessonRepository) List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ClassID != "" {
		where = append(where, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Date != nil {
		where = append(where, fmt.Sprintf("date = $%d", len(args)+1))
		args = append(args, *filter.Date)
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

	query := fmt.Sprintf(`SELECT id, class_id, subject, start_time, end_time, date, created_at, updated_at
FROM lessons WHERE %s
ORDER BY date ASC, start_time ASC
LIMIT %d OFFSET %d`, whereClause, size, offset)

	var rows []models.Lesson
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list lessons: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM lessons WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count lessons: %w", err)
	}
	return rows, total, nil
}

// FindByID returns one lesson.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	query := `SELECT id, class_id, subject, start_time, end_time, date, created_at, updated_at
FROM lessons WHERE id = $1`
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, fmt.Errorf("find lesson: %w", err)
	}
	return &lesson, nil
}

// ListForStudentOnDate resolves the lessons a student attends on a date,
// joining through the student's current class membership. This is a
// point-in-time view: a student who changed classes since the date will
// resolve lessons of the new class, not the class they were in back then.
func (r *LessonRepository) ListForStudentOnDate(ctx context.Context, studentID string, date time.Time) ([]models.Lesson, error) {
	query := `SELECT l.id, l.class_id, l.subject, l.start_time, l.end_time, l.date, l.created_at, l.updated_at
FROM lessons l
JOIN students s ON s.class_id = l.class_id
WHERE s.id = $1 AND l.date = $2
ORDER BY l.start_time ASC`
	var rows []models.Lesson
	if err := r.db.SelectContext(ctx, &rows, query, studentID, date); err != nil {
		return nil, fmt.Errorf("list lessons for student on date: %w", err)
	}
	return rows, nil
}

// Create inserts a new lesson.
func (r *LessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	now := time.Now().UTC()
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	lesson.CreatedAt = now
	lesson.UpdatedAt = now
	query := `INSERT INTO lessons (id, class_id, subject, start_time, end_time, date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query,
		lesson.ID, lesson.ClassID, lesson.Subject, lesson.StartTime, lesson.EndTime, lesson.Date, lesson.CreatedAt, lesson.UpdatedAt); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// Update rewrites a lesson's schedule fields.
func (r *LessonRepository) Update(ctx context.Context, lesson *models.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()
	query := `UPDATE lessons
SET class_id = $1, subject = $2, start_time = $3, end_time = $4, date = $5, updated_at = $6
WHERE id = $7`
	res, err := r.db.ExecContext(ctx, query,
		lesson.ClassID, lesson.Subject, lesson.StartTime, lesson.EndTime, lesson.Date, lesson.UpdatedAt, lesson.ID)
	if err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	return requireRowAffected(res, "update lesson")
}

// Delete removes a lesson.
func (r *LessonRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}
	return requireRowAffected(res, "delete lesson")
}
