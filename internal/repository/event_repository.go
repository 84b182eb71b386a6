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

// EventRepository handles persistence for educational events.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new educational event.
func (r *EventRepository) Create(ctx context.Context, event *models.EducationalEvent) error {
	now := time.Now().UTC()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.CreatedAt = now
	event.UpdatedAt = now
	query := `INSERT INTO educational_events (id, student_id, teacher_id, event_type, description, severity, date, notified_to, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(ctx, query,
		event.ID, event.StudentID, event.TeacherID, event.EventType, event.Description,
		event.Severity, event.Date, event.NotifiedTo, event.CreatedAt, event.UpdatedAt); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// FindByID fetches a single event.
func (r *EventRepository) FindByID(ctx context.Context, id string) (*models.EducationalEvent, error) {
	query := `SELECT id, student_id, teacher_id, event_type, description, severity, date, notified_to, created_at, updated_at
FROM educational_events WHERE id = $1`
	var event models.EducationalEvent
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, fmt.Errorf("find event by id: %w", err)
	}
	return &event, nil
}

// List returns events matching the filter, newest first.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.EducationalEvent, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TeacherID != "" {
		where = append(where, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.EventType != nil {
		where = append(where, fmt.Sprintf("event_type = $%d", len(args)+1))
		args = append(args, *filter.EventType)
	}
	if filter.Severity != nil {
		where = append(where, fmt.Sprintf("severity = $%d", len(args)+1))
		args = append(args, *filter.Severity)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	query := fmt.Sprintf(`SELECT id, student_id, teacher_id, event_type, description, severity, date, notified_to, created_at, updated_at
FROM educational_events WHERE %s
ORDER BY date DESC`, strings.Join(where, " AND "))
	var rows []models.EducationalEvent
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return rows, nil
}

// CountByTeacher counts events recorded by the given teacher.
func (r *EventRepository) CountByTeacher(ctx context.Context, teacherID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM educational_events WHERE teacher_id = $1`, teacherID); err != nil {
		return 0, fmt.Errorf("count events by teacher: %w", err)
	}
	return count, nil
}

// CountHighSeveritySince counts a teacher's HIGH severity events dated on or
// after the cutoff.
func (r *EventRepository) CountHighSeveritySince(ctx context.Context, teacherID string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM educational_events
WHERE teacher_id = $1 AND severity = $2 AND date >= $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, teacherID, models.EventSeverityHigh, since); err != nil {
		return 0, fmt.Errorf("count high severity events: %w", err)
	}
	return count, nil
}

// Delete removes an event.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM educational_events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return requireRowAffected(res, "delete event")
}
