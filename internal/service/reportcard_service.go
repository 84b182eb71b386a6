package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gradebook-io/school-admin-api/internal/models"
	"github.com/gradebook-io/school-admin-api/internal/repository"
	appErrors "github.com/gradebook-io/school-admin-api/pkg/errors"
)

type reportCardRepository interface {
	Create(ctx context.Context, card *models.ReportCard) error
	FindByID(ctx context.Context, id string) (*models.ReportCard, error)
	List(ctx context.Context, studentID string) ([]models.ReportCard, error)
	ListLines(ctx context.Context, reportCardID string) ([]models.ReportCardLine, error)
	AddLines(ctx context.Context, lines []models.ReportCardLine) error
	SetPublished(ctx context.Context, id string, publishedAt time.Time) error
	CreateExportJob(ctx context.Context, job *models.ReportExportJob) error
	FindExportJob(ctx context.Context, id string) (*models.ReportExportJob, error)
	UpdateExportJob(ctx context.Context, id string, params repository.UpdateExportJobParams) error
}

type reportCardGradeRepository interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error)
}

type reportCardStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// ReportCardService builds and publishes per-semester report cards.
type ReportCardService struct {
	repo      reportCardRepository
	grades    reportCardGradeRepository
	students  reportCardStudentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReportCardService constructs a ReportCardService instance.
func NewReportCardService(repo reportCardRepository, grades reportCardGradeRepository, students reportCardStudentRepository, validate *validator.Validate, logger *zap.Logger) *ReportCardService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportCardService{repo: repo, grades: grades, students: students, validator: validate, logger: logger}
}

// ReportCardRequest is the payload for generating a report card.
type ReportCardRequest struct {
	StudentID string `json:"student_id" validate:"required,uuid4"`
	Year      int    `json:"year" validate:"required,min=2000,max=2100"`
	Semester  int    `json:"semester" validate:"required,min=1,max=2"`
}

// Generate creates a draft report card for a student, deriving one line
// per subject from the subject's grade average.
func (s *ReportCardService) Generate(ctx context.Context, req ReportCardRequest) (*models.ReportCardDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report card payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch student")
	}

	grades, err := s.grades.List(ctx, models.GradeFilter{StudentID: req.StudentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch grades")
	}
	if len(grades) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student has no grades to summarize")
	}

	card := &models.ReportCard{
		ID:        uuid.NewString(),
		StudentID: req.StudentID,
		Year:      req.Year,
		Semester:  req.Semester,
		Status:    models.ReportCardStatusDraft,
	}
	if err := s.repo.Create(ctx, card); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Code == appErrors.ErrConflict.Code {
			return nil, appErrors.Clone(appErrors.ErrConflict, "report card already exists for this semester")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to create report card")
	}

	lines := summarizeBySubject(card.ID, grades)
	if err := s.repo.AddLines(ctx, lines); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to store report card lines")
	}
	return &models.ReportCardDetail{ReportCard: *card, Lines: lines}, nil
}

// summarizeBySubject averages grade values per subject, in stable
// subject order.
func summarizeBySubject(reportCardID string, grades []models.Grade) []models.ReportCardLine {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, g := range grades {
		sums[g.Subject] += g.GradeValue
		counts[g.Subject]++
	}
	subjects := make([]string, 0, len(sums))
	for subject := range sums {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)

	lines := make([]models.ReportCardLine, 0, len(subjects))
	for _, subject := range subjects {
		lines = append(lines, models.ReportCardLine{
			ID:           uuid.NewString(),
			ReportCardID: reportCardID,
			Subject:      subject,
			FinalGrade:   sums[subject] / float64(counts[subject]),
		})
	}
	return lines
}

// ReportCardLineRequest is one subject line supplied by a caller.
type ReportCardLineRequest struct {
	Subject    string  `json:"subject" validate:"required"`
	FinalGrade float64 `json:"final_grade" validate:"required,min=1,max=6"`
	Comments   *string `json:"comments"`
}

// AddLinesRequest is the payload for appending lines to a report card.
type AddLinesRequest struct {
	Lines []ReportCardLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// AddLines appends subject lines to an existing report card. Published
// cards are immutable and reject new lines.
func (s *ReportCardService) AddLines(ctx context.Context, id string, req AddLinesRequest) (*models.ReportCardDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report card lines payload")
	}
	card, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report card not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch report card")
	}
	if card.Status == models.ReportCardStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrConflict, "report card is already published")
	}

	lines := make([]models.ReportCardLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, models.ReportCardLine{
			ID:           uuid.NewString(),
			ReportCardID: card.ID,
			Subject:      line.Subject,
			FinalGrade:   line.FinalGrade,
			Comments:     line.Comments,
		})
	}
	if err := s.repo.AddLines(ctx, lines); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to store report card lines")
	}

	all, err := s.repo.ListLines(ctx, card.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch report card lines")
	}
	return &models.ReportCardDetail{ReportCard: *card, Lines: all}, nil
}

// Get returns a report card with its lines.
func (s *ReportCardService) Get(ctx context.Context, id string) (*models.ReportCardDetail, error) {
	card, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report card not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch report card")
	}
	lines, err := s.repo.ListLines(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch report card lines")
	}
	return &models.ReportCardDetail{ReportCard: *card, Lines: lines}, nil
}

// ListByStudent returns a student's report cards, newest first.
func (s *ReportCardService) ListByStudent(ctx context.Context, studentID string) ([]models.ReportCard, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch student")
	}
	cards, err := s.repo.List(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to list report cards")
	}
	return cards, nil
}

// Publish transitions a draft report card to published. Publishing twice
// is rejected so a published card stays immutable.
func (s *ReportCardService) Publish(ctx context.Context, id string) (*models.ReportCard, error) {
	card, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report card not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch report card")
	}
	if card.Status == models.ReportCardStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrConflict, "report card is already published")
	}
	now := time.Now().UTC()
	if err := s.repo.SetPublished(ctx, id, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to publish report card")
	}
	card.Status = models.ReportCardStatusPublished
	card.PublishedAt = &now
	return card, nil
}
