package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent:
		return true
	default:
		return false
	}
}

// Attendance records one student's presence in one lesson. The
// (lesson_id, student_id) pair is unique at the storage layer; that
// constraint is what makes the full-day upsert idempotent under
// concurrent access.
type Attendance struct {
	ID          string           `db:"id" json:"id"`
	LessonID    string           `db:"lesson_id" json:"lesson_id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	Date        time.Time        `db:"date" json:"date"`
	Status      AttendanceStatus `db:"status" json:"status"`
	IsJustified bool             `db:"is_justified" json:"is_justified"`
	Comment     *string          `db:"comment" json:"comment,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceRecord extends the attendance row with lesson and student metadata.
type AttendanceRecord struct {
	Attendance
	Subject     string `db:"subject" json:"subject"`
	StudentName string `db:"student_name" json:"student_name"`
}

// AttendanceFilter defines query filters for listing attendance.
type AttendanceFilter struct {
	LessonID  string
	StudentID string
	Date      *time.Time
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}
