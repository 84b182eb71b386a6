package models

import "time"

// ReportCardStatus tracks the publication lifecycle of a report card.
type ReportCardStatus string

const (
	ReportCardStatusDraft     ReportCardStatus = "DRAFT"
	ReportCardStatusPublished ReportCardStatus = "PUBLISHED"
)

// ReportCard is a per-student, per-semester grade summary.
type ReportCard struct {
	ID          string           `db:"id" json:"id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	Year        int              `db:"year" json:"year"`
	Semester    int              `db:"semester" json:"semester"`
	Status      ReportCardStatus `db:"status" json:"status"`
	PublishedAt *time.Time       `db:"published_at" json:"published_at,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// ReportCardLine is one subject row on a report card.
type ReportCardLine struct {
	ID           string    `db:"id" json:"id"`
	ReportCardID string    `db:"report_card_id" json:"report_card_id"`
	Subject      string    `db:"subject" json:"subject"`
	FinalGrade   float64   `db:"final_grade" json:"final_grade"`
	Comments     *string   `db:"comments" json:"comments,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ReportCardDetail bundles a report card with its lines.
type ReportCardDetail struct {
	ReportCard
	Lines []ReportCardLine `json:"lines"`
}

// ExportFormat enumerates supported report card export formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// Valid returns true when the format is a supported value.
func (f ExportFormat) Valid() bool {
	return f == ExportFormatCSV || f == ExportFormatPDF
}

// ExportStatus tracks the lifecycle of an export job.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "queued"
	ExportStatusProcessing ExportStatus = "processing"
	ExportStatusDone       ExportStatus = "done"
	ExportStatusFailed     ExportStatus = "failed"
)

// ReportExportJob tracks an asynchronous report card export.
type ReportExportJob struct {
	ID           string       `db:"id" json:"id"`
	ReportCardID string       `db:"report_card_id" json:"report_card_id"`
	Format       ExportFormat `db:"format" json:"format"`
	Status       ExportStatus `db:"status" json:"status"`
	Progress     int          `db:"progress" json:"progress"`
	ResultPath   *string      `db:"result_path" json:"-"`
	ErrorMessage *string      `db:"error_message" json:"error,omitempty"`
	CreatedBy    string       `db:"created_by" json:"created_by"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
	FinishedAt   *time.Time   `db:"finished_at" json:"finished_at,omitempty"`
}
