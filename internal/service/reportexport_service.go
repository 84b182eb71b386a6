package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gradebook-io/school-admin-api/internal/models"
	"github.com/gradebook-io/school-admin-api/internal/repository"
	appErrors "github.com/gradebook-io/school-admin-api/pkg/errors"
	"github.com/gradebook-io/school-admin-api/pkg/export"
	"github.com/gradebook-io/school-admin-api/pkg/jobs"
	"github.com/gradebook-io/school-admin-api/pkg/storage"
)

const exportJobType = "report_card_export"

// ReportExportService runs report card exports on a background worker
// pool and hands out signed download URLs for finished files.
type ReportExportService struct {
	repo   reportCardRepository
	cards  *ReportCardService
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	store  *storage.LocalStorage
	signer *storage.SignedURLSigner
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewReportExportService constructs the export service and its queue.
// Call Start before enqueueing and Stop on shutdown.
func NewReportExportService(repo reportCardRepository, cards *ReportCardService, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger, workers, retries int) *ReportExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReportExportService{
		repo:   repo,
		cards:  cards,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		store:  store,
		signer: signer,
		logger: logger,
	}
	s.queue = jobs.NewQueue("report-exports", s.process, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: retries,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ReportExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ReportExportService) Stop() {
	s.queue.Stop()
}

// Enqueue records an export job and schedules it for processing.
func (s *ReportExportService) Enqueue(ctx context.Context, reportCardID string, format models.ExportFormat, requestedBy string) (*models.ReportExportJob, error) {
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	if _, err := s.repo.FindByID(ctx, reportCardID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report card not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch report card")
	}

	job := &models.ReportExportJob{
		ID:           uuid.NewString(),
		ReportCardID: reportCardID,
		Format:       format,
		Status:       models.ExportStatusQueued,
		CreatedBy:    requestedBy,
	}
	if err := s.repo.CreateExportJob(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: exportJobType, Payload: job.ID}); err != nil {
		s.failJob(ctx, job.ID, err)
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to schedule export job")
	}
	return job, nil
}

// ExportStatusResponse reports job progress, plus a signed download URL
// once the file is ready.
type ExportStatusResponse struct {
	Job         models.ReportExportJob `json:"job"`
	DownloadURL *string                `json:"download_url,omitempty"`
	ExpiresAt   *time.Time             `json:"expires_at,omitempty"`
}

// Status returns the state of an export job.
func (s *ReportExportService) Status(ctx context.Context, jobID string) (*ExportStatusResponse, error) {
	job, err := s.repo.FindExportJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch export job")
	}
	resp := &ExportStatusResponse{Job: *job}
	if job.Status == models.ExportStatusDone && job.ResultPath != nil {
		token, expires, err := s.signer.Generate(job.ID, *job.ResultPath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
		}
		url := fmt.Sprintf("/api/v1/report-cards/exports/%s/download?token=%s", job.ID, token)
		resp.DownloadURL = &url
		resp.ExpiresAt = &expires
	}
	return resp, nil
}

// Download validates a signed token and opens the exported file.
func (s *ReportExportService) Download(ctx context.Context, jobID, token string) (*os.File, *models.ReportExportJob, error) {
	tokenJobID, relPath, expiresAt, err := s.signer.Parse(token)
	if err != nil || tokenJobID != jobID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download token")
	}
	if time.Now().UTC().After(expiresAt) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
	}
	job, err := s.repo.FindExportJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch export job")
	}
	if job.Status != models.ExportStatusDone || job.ResultPath == nil || *job.ResultPath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export file not available")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return file, job, nil
}

// process is the queue handler for one export job.
func (s *ReportExportService) process(ctx context.Context, job jobs.Job) error {
	jobID, ok := job.Payload.(string)
	if !ok {
		s.logger.Error("export job has malformed payload", zap.String("job_id", job.ID))
		return nil
	}

	record, err := s.repo.FindExportJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load export job: %w", err)
	}
	if record.Status == models.ExportStatusDone {
		return nil
	}

	processing := models.ExportStatusProcessing
	progress := 10
	if err := s.repo.UpdateExportJob(ctx, jobID, repository.UpdateExportJobParams{Status: &processing, Progress: &progress}); err != nil {
		return fmt.Errorf("mark export processing: %w", err)
	}

	detail, err := s.cards.Get(ctx, record.ReportCardID)
	if err != nil {
		s.failJob(ctx, jobID, err)
		return nil
	}
	student, err := s.cards.students.FindByID(ctx, detail.StudentID)
	if err != nil {
		s.failJob(ctx, jobID, err)
		return nil
	}

	data := reportCardDataset(detail)
	var payload []byte
	switch record.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(data)
	case models.ExportFormatPDF:
		title := fmt.Sprintf("Report Card %d/S%d - %s", detail.Year, detail.Semester, student.FullName())
		payload, err = s.pdf.Render(data, title)
	default:
		err = fmt.Errorf("unsupported format %q", record.Format)
	}
	if err != nil {
		s.failJob(ctx, jobID, err)
		return nil
	}

	filename := fmt.Sprintf("report-card-%s-%s.%s", detail.StudentID, jobID, record.Format)
	relPath, err := s.store.Save(filename, payload)
	if err != nil {
		s.failJob(ctx, jobID, err)
		return nil
	}

	done := models.ExportStatusDone
	full := 100
	now := time.Now().UTC()
	if err := s.repo.UpdateExportJob(ctx, jobID, repository.UpdateExportJobParams{
		Status:     &done,
		Progress:   &full,
		ResultPath: &relPath,
		FinishedAt: &now,
	}); err != nil {
		return fmt.Errorf("mark export done: %w", err)
	}
	s.logger.Info("report card export finished",
		zap.String("export_job_id", jobID),
		zap.String("report_card_id", record.ReportCardID),
		zap.String("format", string(record.Format)))
	return nil
}

func (s *ReportExportService) failJob(ctx context.Context, jobID string, cause error) {
	failed := models.ExportStatusFailed
	msg := cause.Error()
	now := time.Now().UTC()
	if err := s.repo.UpdateExportJob(ctx, jobID, repository.UpdateExportJobParams{
		Status:       &failed,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Error("failed to mark export job failed", zap.String("export_job_id", jobID), zap.Error(err))
	}
}

func reportCardDataset(detail *models.ReportCardDetail) export.Dataset {
	rows := make([]map[string]string, 0, len(detail.Lines))
	for _, line := range detail.Lines {
		comment := ""
		if line.Comments != nil {
			comment = *line.Comments
		}
		rows = append(rows, map[string]string{
			"Subject":     line.Subject,
			"Final Grade": fmt.Sprintf("%.2f", line.FinalGrade),
			"Comments":    comment,
		})
	}
	return export.Dataset{
		Headers: []string{"Subject", "Final Grade", "Comments"},
		Rows:    rows,
	}
}
