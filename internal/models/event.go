package models

import "time"

// EventType classifies educational events.
type EventType string

const (
	EventTypeDailyNote EventType = "DAILY_NOTE"
	EventTypeBehavior  EventType = "BEHAVIOR"
	EventTypeOther     EventType = "OTHER"
)

// Valid returns true when the type is a supported value.
func (t EventType) Valid() bool {
	switch t {
	case EventTypeDailyNote, EventTypeBehavior, EventTypeOther:
		return true
	default:
		return false
	}
}

// EventSeverity grades the weight of an educational event.
type EventSeverity string

const (
	EventSeverityLow    EventSeverity = "LOW"
	EventSeverityMedium EventSeverity = "MEDIUM"
	EventSeverityHigh   EventSeverity = "HIGH"
)

// Valid returns true when the severity is a supported value.
func (s EventSeverity) Valid() bool {
	switch s {
	case EventSeverityLow, EventSeverityMedium, EventSeverityHigh:
		return true
	default:
		return false
	}
}

// EducationalEvent is a dated observation a teacher records about a student.
type EducationalEvent struct {
	ID          string        `db:"id" json:"id"`
	StudentID   string        `db:"student_id" json:"student_id"`
	TeacherID   string        `db:"teacher_id" json:"teacher_id"`
	EventType   EventType     `db:"event_type" json:"event_type"`
	Description string        `db:"description" json:"description"`
	Severity    EventSeverity `db:"severity" json:"severity"`
	Date        time.Time     `db:"date" json:"date"`
	NotifiedTo  *string       `db:"notified_to" json:"notified_to,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// EventFilter scopes event listing queries.
type EventFilter struct {
	StudentID string
	TeacherID string
	EventType *EventType
	Severity  *EventSeverity
	DateFrom  *time.Time
	DateTo    *time.Time
}
