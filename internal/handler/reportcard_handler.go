package handler

import (
	"context"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/gradebook-io/school-admin-api/internal/models"
	"github.com/gradebook-io/school-admin-api/internal/service"
	appErrors "github.com/gradebook-io/school-admin-api/pkg/errors"
	"github.com/gradebook-io/school-admin-api/pkg/response"
)

type reportCardService interface {
	Generate(ctx context.Context, req service.ReportCardRequest) (*models.ReportCardDetail, error)
	AddLines(ctx context.Context, id string, req service.AddLinesRequest) (*models.ReportCardDetail, error)
	Get(ctx context.Context, id string) (*models.ReportCardDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.ReportCard, error)
	Publish(ctx context.Context, id string) (*models.ReportCard, error)
}

type reportExportService interface {
	Enqueue(ctx context.Context, reportCardID string, format models.ExportFormat, requestedBy string) (*models.ReportExportJob, error)
	Status(ctx context.Context, jobID string) (*service.ExportStatusResponse, error)
	Download(ctx context.Context, jobID, token string) (*os.File, *models.ReportExportJob, error)
}

// ReportCardHandler exposes report card generation, publication, and export.
type ReportCardHandler struct {
	service reportCardService
	exports reportExportService
}

// NewReportCardHandler constructs the handler.
func NewReportCardHandler(service reportCardService, exports reportExportService) *ReportCardHandler {
	return &ReportCardHandler{service: service, exports: exports}
}

// Generate godoc
// @Summary Generate a draft report card from a student's grades
// @Tags ReportCards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.ReportCardRequest true "Report card details"
// @Success 201 {object} response.Envelope
// @Router /report-cards [post]
func (h *ReportCardHandler) Generate(c *gin.Context) {
	var req service.ReportCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	detail, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// AddLines godoc
// @Summary Append subject lines to a draft report card
// @Tags ReportCards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report card ID"
// @Param payload body service.AddLinesRequest true "Lines to append"
// @Success 201 {object} response.Envelope
// @Router /report-cards/{id}/lines [post]
func (h *ReportCardHandler) AddLines(c *gin.Context) {
	var req service.AddLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	detail, err := h.service.AddLines(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Get godoc
// @Summary Fetch one report card with its lines
// @Tags ReportCards
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report card ID"
// @Success 200 {object} response.Envelope
// @Router /report-cards/{id} [get]
func (h *ReportCardHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// ListByStudent godoc
// @Summary List a student's report cards
// @Tags ReportCards
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/report-cards [get]
func (h *ReportCardHandler) ListByStudent(c *gin.Context) {
	cards, err := h.service.ListByStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cards, nil)
}

// Publish godoc
// @Summary Publish a draft report card
// @Tags ReportCards
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report card ID"
// @Success 200 {object} response.Envelope
// @Router /report-cards/{id}/publish [post]
func (h *ReportCardHandler) Publish(c *gin.Context) {
	card, err := h.service.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, card, nil)
}

type exportRequest struct {
	Format string `json:"format" binding:"required"`
}

// Export godoc
// @Summary Queue an asynchronous report card export
// @Tags ReportCards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report card ID"
// @Param payload body exportRequest true "Export format (csv or pdf)"
// @Success 202 {object} response.Envelope
// @Router /report-cards/{id}/export [post]
func (h *ReportCardHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	job, err := h.exports.Enqueue(c.Request.Context(), c.Param("id"), models.ExportFormat(req.Format), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// ExportStatus godoc
// @Summary Check the state of an export job
// @Tags ReportCards
// @Produce json
// @Security BearerAuth
// @Param jobId path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Router /report-cards/exports/{jobId} [get]
func (h *ReportCardHandler) ExportStatus(c *gin.Context) {
	status, err := h.exports.Status(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// ExportDownload godoc
// @Summary Download a finished export with a signed token
// @Tags ReportCards
// @Produce octet-stream
// @Param jobId path string true "Export job ID"
// @Param token query string true "Signed download token"
// @Success 200
// @Router /report-cards/exports/{jobId}/download [get]
func (h *ReportCardHandler) ExportDownload(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "missing token"))
		return
	}
	file, job, err := h.exports.Download(c.Request.Context(), c.Param("jobId"), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	contentType := "text/csv"
	if job.Format == models.ExportFormatPDF {
		contentType = "application/pdf"
	}
	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+info.Name())
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
