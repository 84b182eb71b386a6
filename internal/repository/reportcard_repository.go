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

// ReportCardRepository handles persistence for report cards, their lines and
// export jobs.
type ReportCardRepository struct {
	db *sqlx.DB
}

// NewReportCardRepository constructs the repository.
func NewReportCardRepository(db *sqlx.DB) *ReportCardRepository {
	return &ReportCardRepository{db: db}
}

// Create inserts a draft report card.
func (r *ReportCardRepository) Create(ctx context.Context, card *models.ReportCard) error {
	now := time.Now().UTC()
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	if card.Status == "" {
		card.Status = models.ReportCardStatusDraft
	}
	card.CreatedAt = now
	card.UpdatedAt = now
	query := `INSERT INTO report_cards (id, student_id, year, semester, status, published_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query,
		card.ID, card.StudentID, card.Year, card.Semester, card.Status, card.PublishedAt, card.CreatedAt, card.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return errConflict(err)
		}
		return fmt.Errorf("create report card: %w", err)
	}
	return nil
}

// FindByID returns one report card without lines.
func (r *ReportCardRepository) FindByID(ctx context.Context, id string) (*models.ReportCard, error) {
	query := `SELECT id, student_id, year, semester, status, published_at, created_at, updated_at
FROM report_cards WHERE id = $1`
	var card models.ReportCard
	if err := r.db.GetContext(ctx, &card, query, id); err != nil {
		return nil, fmt.Errorf("find report card: %w", err)
	}
	return &card, nil
}

// List returns report cards, optionally scoped to a student, newest first.
func (r *ReportCardRepository) List(ctx context.Context, studentID string) ([]models.ReportCard, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if studentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, studentID)
	}
	query := fmt.Sprintf(`SELECT id, student_id, year, semester, status, published_at, created_at, updated_at
FROM report_cards WHERE %s
ORDER BY year DESC, semester DESC`, strings.Join(where, " AND "))
	var rows []models.ReportCard
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list report cards: %w", err)
	}
	return rows, nil
}

// ListLines returns the subject lines of a report card.
func (r *ReportCardRepository) ListLines(ctx context.Context, reportCardID string) ([]models.ReportCardLine, error) {
	query := `SELECT id, report_card_id, subject, final_grade, comments, created_at, updated_at
FROM report_card_lines WHERE report_card_id = $1
ORDER BY subject ASC`
	var rows []models.ReportCardLine
	if err := r.db.SelectContext(ctx, &rows, query, reportCardID); err != nil {
		return nil, fmt.Errorf("list report card lines: %w", err)
	}
	return rows, nil
}

// AddLines inserts subject lines for a report card.
func (r *ReportCardRepository) AddLines(ctx context.Context, lines []models.ReportCardLine) error {
	if len(lines) == 0 {
		return nil
	}
	now := time.Now().UTC()
	query := `INSERT INTO report_card_lines (id, report_card_id, subject, final_grade, comments, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for i := range lines {
		line := &lines[i]
		if line.ID == "" {
			line.ID = uuid.NewString()
		}
		line.CreatedAt = now
		line.UpdatedAt = now
		if _, err := r.db.ExecContext(ctx, query,
			line.ID, line.ReportCardID, line.Subject, line.FinalGrade, line.Comments, line.CreatedAt, line.UpdatedAt); err != nil {
			return fmt.Errorf("add report card line: %w", err)
		}
	}
	return nil
}

// SetPublished marks a report card published.
func (r *ReportCardRepository) SetPublished(ctx context.Context, id string, publishedAt time.Time) error {
	query := `UPDATE report_cards SET status = $2, published_at = $3, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, models.ReportCardStatusPublished, publishedAt)
	if err != nil {
		return fmt.Errorf("publish report card: %w", err)
	}
	return requireRowAffected(res, "publish report card")
}

// CreateExportJob inserts a queued export job.
func (r *ReportCardRepository) CreateExportJob(ctx context.Context, job *models.ReportExportJob) error {
	now := time.Now().UTC()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ExportStatusQueued
	}
	job.CreatedAt = now
	job.UpdatedAt = now
	query := `INSERT INTO report_export_jobs (id, report_card_id, format, status, progress, result_path, error_message, created_by, created_at, updated_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := r.db.ExecContext(ctx, query,
		job.ID, job.ReportCardID, job.Format, job.Status, job.Progress, job.ResultPath,
		job.ErrorMessage, job.CreatedBy, job.CreatedAt, job.UpdatedAt, job.FinishedAt); err != nil {
		return fmt.Errorf("create export job: %w", err)
	}
	return nil
}

// FindExportJob returns one export job.
func (r *ReportCardRepository) FindExportJob(ctx context.Context, id string) (*models.ReportExportJob, error) {
	query := `SELECT id, report_card_id, format, status, progress, result_path, error_message, created_by, created_at, updated_at, finished_at
FROM report_export_jobs WHERE id = $1`
	var job models.ReportExportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, fmt.Errorf("find export job: %w", err)
	}
	return &job, nil
}

// UpdateExportJobParams carries partial export job updates.
type UpdateExportJobParams struct {
	Status       *models.ExportStatus
	Progress     *int
	ResultPath   *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// UpdateExportJob applies the provided partial update.
func (r *ReportCardRepository) UpdateExportJob(ctx context.Context, id string, params UpdateExportJobParams) error {
	set := []string{"updated_at = NOW()"}
	args := []interface{}{id}
	if params.Status != nil {
		set = append(set, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *params.Status)
	}
	if params.Progress != nil {
		set = append(set, fmt.Sprintf("progress = $%d", len(args)+1))
		args = append(args, *params.Progress)
	}
	if params.ResultPath != nil {
		set = append(set, fmt.Sprintf("result_path = $%d", len(args)+1))
		args = append(args, *params.ResultPath)
	}
	if params.ErrorMessage != nil {
		set = append(set, fmt.Sprintf("error_message = $%d", len(args)+1))
		args = append(args, *params.ErrorMessage)
	}
	if params.FinishedAt != nil {
		set = append(set, fmt.Sprintf("finished_at = $%d", len(args)+1))
		args = append(args, *params.FinishedAt)
	}
	query := fmt.Sprintf(`UPDATE report_export_jobs SET %s WHERE id = $1`, strings.Join(set, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update export job: %w", err)
	}
	return requireRowAffected(res, "update export job")
}
