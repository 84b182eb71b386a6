package models

import "time"

// Student represents a pupil, optionally enrolled in a class.
type Student struct {
	ID        string    `db:"id" json:"id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	ClassID   *string   `db:"class_id" json:"class_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins the student's first and last names.
func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// StudentDetail extends the student row with class metadata.
type StudentDetail struct {
	Student
	ClassName *string `db:"class_name" json:"class_name,omitempty"`
}

// StudentFilter captures filtering criteria for listing students.
type StudentFilter struct {
	ClassID  string
	Search   string
	Page     int
	PageSize int
}
