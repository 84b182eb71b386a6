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

type gradeService interface {
	Create(ctx context.Context, teacherID string, req service.GradeRequest) (*models.Grade, error)
	List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error)
	CreateCommentTemplate(ctx context.Context, req service.CommentTemplateRequest) (*models.CommentTemplate, error)
	ListCommentTemplates(ctx context.Context) ([]models.CommentTemplate, error)
	GetCommentTemplate(ctx context.Context, id string) (*models.CommentTemplate, error)
	DeleteCommentTemplate(ctx context.Context, id string) error
}

// GradeHandler exposes grading endpoints.
type GradeHandler struct {
	service gradeService
}

// NewGradeHandler constructs the handler.
func NewGradeHandler(service gradeService) *GradeHandler {
	return &GradeHandler{service: service}
}

// Create godoc
// @Summary Record a grade
// @Tags Grades
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.GradeRequest true "Grade details"
// @Success 201 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	grade, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grade)
}

// List godoc
// @Summary List grades
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Param studentId query string false "Student ID"
// @Param classId query string false "Class ID"
// @Param subject query string false "Subject"
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	filter := models.GradeFilter{
		StudentID: c.Query("studentId"),
		ClassID:   c.Query("classId"),
		Subject:   c.Query("subject"),
	}
	grades, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}

// CreateCommentTemplate godoc
// @Summary Create a reusable grading comment
// @Tags Grades
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CommentTemplateRequest true "Template details"
// @Success 201 {object} response.Envelope
// @Router /grades/comment-templates [post]
func (h *GradeHandler) CreateCommentTemplate(c *gin.Context) {
	var req service.CommentTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	template, err := h.service.CreateCommentTemplate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, template)
}

// ListCommentTemplates godoc
// @Summary List grading comment templates
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /grades/comment-templates [get]
func (h *GradeHandler) ListCommentTemplates(c *gin.Context) {
	templates, err := h.service.ListCommentTemplates(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates, nil)
}

// GetCommentTemplate godoc
// @Summary Fetch one grading comment template
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope
// @Router /grades/comment-templates/{id} [get]
func (h *GradeHandler) GetCommentTemplate(c *gin.Context) {
	template, err := h.service.GetCommentTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, template, nil)
}

// DeleteCommentTemplate godoc
// @Summary Remove a grading comment template
// @Tags Grades
// @Security BearerAuth
// @Param id path string true "Template ID"
// @Success 204
// @Router /grades/comment-templates/{id} [delete]
func (h *GradeHandler) DeleteCommentTemplate(c *gin.Context) {
	if err := h.service.DeleteCommentTemplate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
