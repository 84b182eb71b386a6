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

type eventRepository interface {
	Create(ctx context.Context, event *models.EducationalEvent) error
	FindByID(ctx context.Context, id string) (*models.EducationalEvent, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.EducationalEvent, error)
	Delete(ctx context.Context, id string) error
}

type eventStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// EventService manages educational events recorded against students.
type EventService struct {
	repo      eventRepository
	students  eventStudentRepository
	dashboard *DashboardService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEventService constructs an EventService instance.
func NewEventService(repo eventRepository, students eventStudentRepository, dashboard *DashboardService, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{repo: repo, students: students, dashboard: dashboard, validator: validate, logger: logger}
}

// EventRequest is the payload for recording an educational event.
type EventRequest struct {
	StudentID   string  `json:"student_id" validate:"required,uuid4"`
	EventType   string  `json:"event_type" validate:"required"`
	Description string  `json:"description" validate:"required"`
	Severity    string  `json:"severity" validate:"required"`
	Date        string  `json:"date" validate:"required,datetime=2006-01-02"`
	NotifiedTo  *string `json:"notified_to"`
}

// Create records an event against a student on behalf of a teacher.
func (s *EventService) Create(ctx context.Context, teacherID string, req EventRequest) (*models.EducationalEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	eventType := models.EventType(req.EventType)
	if !eventType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid event type")
	}
	severity := models.EventSeverity(req.Severity)
	if !severity.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid severity")
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
	event := &models.EducationalEvent{
		ID:          uuid.NewString(),
		StudentID:   req.StudentID,
		TeacherID:   teacherID,
		EventType:   eventType,
		Description: req.Description,
		Severity:    severity,
		Date:        date,
		NotifiedTo:  req.NotifiedTo,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to create event")
	}
	if s.dashboard != nil {
		s.dashboard.Invalidate(ctx, teacherID)
	}
	return event, nil
}

// Get returns a single event by id.
func (s *EventService) Get(ctx context.Context, id string) (*models.EducationalEvent, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch event")
	}
	return event, nil
}

// List returns events matching the filter, newest first.
func (s *EventService) List(ctx context.Context, filter models.EventFilter) ([]models.EducationalEvent, error) {
	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to list events")
	}
	return events, nil
}

// Delete removes an event.
func (s *EventService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to delete event")
	}
	return nil
}
