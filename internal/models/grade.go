package models

import "time"

// CommentCategory classifies reusable grading comment templates.
type CommentCategory string

const (
	CommentCategoryBehavior CommentCategory = "BEHAVIOR"
	CommentCategoryAcademic CommentCategory = "ACADEMIC"
	CommentCategoryGeneral  CommentCategory = "GENERAL"
)

// Valid returns true when the category is a supported value.
func (c CommentCategory) Valid() bool {
	switch c {
	case CommentCategoryBehavior, CommentCategoryAcademic, CommentCategoryGeneral:
		return true
	default:
		return false
	}
}

// Grade records a subject mark a teacher gave a student.
type Grade struct {
	ID                 string    `db:"id" json:"id"`
	StudentID          string    `db:"student_id" json:"student_id"`
	TeacherID          string    `db:"teacher_id" json:"teacher_id"`
	Subject            string    `db:"subject" json:"subject"`
	GradeValue         float64   `db:"grade_value" json:"grade_value"`
	MeetsExpectations  *int      `db:"meets_expectations" json:"meets_expectations,omitempty"`
	CommentTemplateIDs *string   `db:"comment_template_ids" json:"comment_template_ids,omitempty"`
	CustomComment      *string   `db:"custom_comment" json:"custom_comment,omitempty"`
	StrengthNote       *string   `db:"strength_note" json:"strength_note,omitempty"`
	ImprovementNote    *string   `db:"improvement_note" json:"improvement_note,omitempty"`
	Date               time.Time `db:"date" json:"date"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// GradeFilter scopes grade listing queries.
type GradeFilter struct {
	StudentID string
	ClassID   string
	Subject   string
	TeacherID string
}

// CommentTemplate is a reusable snippet teachers attach to grades.
type CommentTemplate struct {
	ID        string          `db:"id" json:"id"`
	Category  CommentCategory `db:"category" json:"category"`
	Text      string          `db:"text" json:"text"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}
