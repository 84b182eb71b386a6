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

// GradeRepository handles persistence for grades and comment templates.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// Create inserts a new grade.
func (r *GradeRepository) Create(ctx context.Context, grade *models.Grade) error {
	now := time.Now().UTC()
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	grade.CreatedAt = now
	grade.UpdatedAt = now
	query := `INSERT INTO grades (id, student_id, teacher_id, subject, grade_value, meets_expectations,
comment_template_ids, custom_comment, strength_note, improvement_note, date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	if _, err := r.db.ExecContext(ctx, query,
		grade.ID, grade.StudentID, grade.TeacherID, grade.Subject, grade.GradeValue, grade.MeetsExpectations,
		grade.CommentTemplateIDs, grade.CustomComment, grade.StrengthNote, grade.ImprovementNote,
		grade.Date, grade.CreatedAt, grade.UpdatedAt); err != nil {
		return fmt.Errorf("create grade: %w", err)
	}
	return nil
}

// List returns grades matching the filter ordered by date, newest first.
func (r *GradeRepository) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error) {
	base := `FROM grades g JOIN students s ON s.id = g.student_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("g.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		where = append(where, fmt.Sprintf("s.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Subject != "" {
		where = append(where, fmt.Sprintf("g.subject = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}
	if filter.TeacherID != "" {
		where = append(where, fmt.Sprintf("g.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	query := fmt.Sprintf(`SELECT g.id, g.student_id, g.teacher_id, g.subject, g.grade_value, g.meets_expectations,
g.comment_template_ids, g.custom_comment, g.strength_note, g.improvement_note, g.date, g.created_at, g.updated_at
%s WHERE %s
ORDER BY g.date DESC`, base, strings.Join(where, " AND "))
	var rows []models.Grade
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return rows, nil
}

// CountByTeacher counts grades recorded by the given teacher.
func (r *GradeRepository) CountByTeacher(ctx context.Context, teacherID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM grades WHERE teacher_id = $1`, teacherID); err != nil {
		return 0, fmt.Errorf("count grades by teacher: %w", err)
	}
	return count, nil
}

// CreateCommentTemplate inserts a reusable comment template.
func (r *GradeRepository) CreateCommentTemplate(ctx context.Context, template *models.CommentTemplate) error {
	now := time.Now().UTC()
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	template.CreatedAt = now
	template.UpdatedAt = now
	query := `INSERT INTO comment_templates (id, category, text, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query,
		template.ID, template.Category, template.Text, template.CreatedAt, template.UpdatedAt); err != nil {
		return fmt.Errorf("create comment template: %w", err)
	}
	return nil
}

// ListCommentTemplates returns all templates ordered by category then text.
func (r *GradeRepository) ListCommentTemplates(ctx context.Context) ([]models.CommentTemplate, error) {
	query := `SELECT id, category, text, created_at, updated_at
FROM comment_templates ORDER BY category ASC, text ASC`
	var rows []models.CommentTemplate
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list comment templates: %w", err)
	}
	return rows, nil
}

// FindCommentTemplate returns one template.
func (r *GradeRepository) FindCommentTemplate(ctx context.Context, id string) (*models.CommentTemplate, error) {
	query := `SELECT id, category, text, created_at, updated_at FROM comment_templates WHERE id = $1`
	var template models.CommentTemplate
	if err := r.db.GetContext(ctx, &template, query, id); err != nil {
		return nil, fmt.Errorf("find comment template: %w", err)
	}
	return &template, nil
}

// DeleteCommentTemplate removes a template.
func (r *GradeRepository) DeleteCommentTemplate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comment_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment template: %w", err)
	}
	return requireRowAffected(res, "delete comment template")
}
