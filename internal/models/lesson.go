package models

import "time"

// Lesson is a scheduled teaching slot owned by a class. Its attendee set is
// defined transitively as all students currently in the lesson's class.
type Lesson struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	Subject   string    `db:"subject" json:"subject"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Date      time.Time `db:"date" json:"date"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// LessonFilter scopes lesson listing queries.
type LessonFilter struct {
	ClassID  string
	Date     *time.Time
	Page     int
	PageSize int
}
