package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gradebook-io/school-admin-api/internal/models"
	appErrors "github.com/gradebook-io/school-admin-api/pkg/errors"
)

type gradeRepository interface {
	Create(ctx context.Context, grade *models.Grade) error
	List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error)
	CreateCommentTemplate(ctx context.Context, template *models.CommentTemplate) error
	ListCommentTemplates(ctx context.Context) ([]models.CommentTemplate, error)
	FindCommentTemplate(ctx context.Context, id string) (*models.CommentTemplate, error)
	DeleteCommentTemplate(ctx context.Context, id string) error
}

type gradeStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// GradeService manages grades and reusable comment templates.
type GradeService struct {
	repo      gradeRepository
	students  gradeStudentRepository
	dashboard *DashboardService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs a GradeService instance.
func NewGradeService(repo gradeRepository, students gradeStudentRepository, dashboard *DashboardService, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{repo: repo, students: students, dashboard: dashboard, validator: validate, logger: logger}
}

// GradeRequest is the payload for recording a grade.
type GradeRequest struct {
	StudentID          string  `json:"student_id" validate:"required,uuid4"`
	Subject            string  `json:"subject" validate:"required"`
	GradeValue         float64 `json:"grade_value" validate:"required,min=1,max=6"`
	MeetsExpectations  *int    `json:"meets_expectations" validate:"omitempty,min=1,max=5"`
	CommentTemplateIDs *string `json:"comment_template_ids"`
	CustomComment      *string `json:"custom_comment"`
	StrengthNote       *string `json:"strength_note"`
	ImprovementNote    *string `json:"improvement_note"`
	Date               string  `json:"date" validate:"required,datetime=2006-01-02"`
}

// Create records a grade against a student on behalf of a teacher.
func (s *GradeService) Create(ctx context.Context, teacherID string, req GradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch student")
	}
	grade := &models.Grade{
		ID:                 uuid.NewString(),
		StudentID:          req.StudentID,
		TeacherID:          teacherID,
		Subject:            req.Subject,
		GradeValue:         req.GradeValue,
		MeetsExpectations:  req.MeetsExpectations,
		CommentTemplateIDs: req.CommentTemplateIDs,
		CustomComment:      req.CustomComment,
		StrengthNote:       req.StrengthNote,
		ImprovementNote:    req.ImprovementNote,
		Date:               date,
	}
	if err := s.repo.Create(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to create grade")
	}
	if s.dashboard != nil {
		s.dashboard.Invalidate(ctx, teacherID)
	}
	return grade, nil
}

// List returns grades matching the filter, newest first.
func (s *GradeService) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error) {
	grades, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to list grades")
	}
	return grades, nil
}

// CommentTemplateRequest is the payload for creating a comment template.
type CommentTemplateRequest struct {
	Category string `json:"category" validate:"required"`
	Text     string `json:"text" validate:"required"`
}

// CreateCommentTemplate stores a reusable grading comment.
func (s *GradeService) CreateCommentTemplate(ctx context.Context, req CommentTemplateRequest) (*models.CommentTemplate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment template payload")
	}
	category := models.CommentCategory(req.Category)
	if !category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid comment category")
	}
	template := &models.CommentTemplate{
		ID:       uuid.NewString(),
		Category: category,
		Text:     req.Text,
	}
	if err := s.repo.CreateCommentTemplate(ctx, template); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to create comment template")
	}
	return template, nil
}

// ListCommentTemplates returns all templates, grouped by category.
func (s *GradeService) ListCommentTemplates(ctx context.Context) ([]models.CommentTemplate, error) {
	templates, err := s.repo.ListCommentTemplates(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to list comment templates")
	}
	return templates, nil
}

// GetCommentTemplate returns one template by ID.
func (s *GradeService) GetCommentTemplate(ctx context.Context, id string) (*models.CommentTemplate, error) {
	template, err := s.repo.FindCommentTemplate(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "comment template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch comment template")
	}
	return template, nil
}

// DeleteCommentTemplate removes a template.
func (s *GradeService) DeleteCommentTemplate(ctx context.Context, id string) error {
	if err := s.repo.DeleteCommentTemplate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "comment template not found")
		}
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to delete comment template")
	}
	return nil
}
