package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gradebook-io/school-admin-api/internal/models"
	"github.com/gradebook-io/school-admin-api/internal/service"
	appErrors "github.com/gradebook-io/school-admin-api/pkg/errors"
	"github.com/gradebook-io/school-admin-api/pkg/response"
)

type eventService interface {
	Create(ctx context.Context, teacherID string, req service.EventRequest) (*models.EducationalEvent, error)
	Get(ctx context.Context, id string) (*models.EducationalEvent, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.EducationalEvent, error)
	Delete(ctx context.Context, id string) error
}

// EventHandler exposes educational event endpoints.
type EventHandler struct {
	service eventService
}

// NewEventHandler constructs the handler.
func NewEventHandler(service eventService) *EventHandler {
	return &EventHandler{service: service}
}

// Create godoc
// @Summary Record an educational event
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.EventRequest true "Event details"
// @Success 201 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	event, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Get godoc
// @Summary Fetch an educational event
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// List godoc
// @Summary List educational events
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param studentId query string false "Student ID"
// @Param teacherId query string false "Teacher ID"
// @Param type query string false "Event type"
// @Param severity query string false "Severity"
// @Param dateFrom query string false "From date (YYYY-MM-DD)"
// @Param dateTo query string false "To date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	filter := models.EventFilter{
		StudentID: c.Query("studentId"),
		TeacherID: c.Query("teacherId"),
	}
	if raw := c.Query("type"); raw != "" {
		eventType := models.EventType(raw)
		if !eventType.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid event type"))
			return
		}
		filter.EventType = &eventType
	}
	if raw := c.Query("severity"); raw != "" {
		severity := models.EventSeverity(raw)
		if !severity.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid severity"))
			return
		}
		filter.Severity = &severity
	}
	from, err := parseDateParam(c.Query("dateFrom"))
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := parseDateParam(c.Query("dateTo"))
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.DateFrom = from
	filter.DateTo = to

	events, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Delete godoc
// @Summary Remove an educational event
// @Tags Events
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Success 204
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
