package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lpkmns/nihongo-exam/internal/catalog"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/response"
	"github.com/lpkmns/nihongo-exam/internal/service"
)

// DashboardHandler handles admin dashboard endpoints.
type DashboardHandler struct {
	dashboardService *service.DashboardService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboardService *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// GetDashboardData godoc
// GET /api/v1/admin/dashboard
// Returns headline counts, result and token stats, per-category aggregates and recent completions.
func (h *DashboardHandler) GetDashboardData(c *gin.Context) {
	data, err := h.dashboardService.GetDashboardData(c.Request.Context())
	if err != nil {
		fail(c, err, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, data)
}

// ListCategories godoc
// GET /api/v1/public/categories
// GET /api/v1/admin/categories
// Returns the static exam catalogue, optionally narrowed by ?type=.
func ListCategories(c *gin.Context) {
	categories := catalog.All()
	if raw := c.Query("type"); raw != "" {
		t, err := model.ParseExamType(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrValidation)
			return
		}
		categories = catalog.ByType(t)
	}

	response.Success(c, http.StatusOK, gin.H{"categories": categories})
}
