package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gradebook-io/school-admin-api/internal/models"
)

// ClassRepository handles persistence for classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns all classes ordered by grade level then name.
func (r *ClassRepository) List(ctx context.Context) ([]models.Class, error) {
	query := `SELECT id, name, grade_level, homeroom_teacher_id, created_at, updated_at
FROM classes ORDER BY grade_level ASC, name ASC`
	var rows []models.Class
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return rows, nil
}

// FindByID returns one class.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	query := `SELECT id, name, grade_level, homeroom_teacher_id, created_at, updated_at
FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, fmt.Errorf("find class: %w", err)
	}
	return &class, nil
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	now := time.Now().UTC()
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	class.CreatedAt = now
	class.UpdatedAt = now
	query := `INSERT INTO classes (id, name, grade_level, homeroom_teacher_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(ctx, query,
		class.ID, class.Name, class.GradeLevel, class.HomeroomTeacherID, class.CreatedAt, class.UpdatedAt); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update overwrites mutable class fields.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	query := `UPDATE classes SET name = $2, grade_level = $3, homeroom_teacher_id = $4, updated_at = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		class.ID, class.Name, class.GradeLevel, class.HomeroomTeacherID, class.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return requireRowAffected(res, "update class")
}

// Delete removes a class.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return requireRowAffected(res, "delete class")
}
