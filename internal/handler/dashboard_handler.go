package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gradebook-io/school-admin-api/internal/service"
	appErrors "github.com/gradebook-io/school-admin-api/pkg/errors"
	"github.com/gradebook-io/school-admin-api/pkg/response"
)

type dashboardService interface {
	TeacherSnapshot(ctx context.Context, teacherID string) (*service.TeacherDashboard, bool, error)
}

// DashboardHandler exposes the teacher landing page counters.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Teacher godoc
// @Summary Dashboard counters for the authenticated teacher
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /dashboard/teacher [get]
func (h *DashboardHandler) Teacher(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	start := time.Now()
	snapshot, cacheHit, err := h.service.TeacherSnapshot(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{
		"cache_hit":          cacheHit,
		"processing_time_ms": time.Since(start).Milliseconds(),
	}
	response.JSON(c, http.StatusOK, snapshot, nil, meta)
}
