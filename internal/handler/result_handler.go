package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lpkmns/nihongo-exam/internal/export"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/response"
	"github.com/lpkmns/nihongo-exam/internal/service"
)

// ResultHandler handles admin result endpoints.
type ResultHandler struct {
	resultService *service.ResultService
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(resultService *service.ResultService) *ResultHandler {
	return &ResultHandler{resultService: resultService}
}

func resultFilter(c *gin.Context) (model.ResultFilter, bool) {
	t, ok := examTypeQuery(c, "type")
	if !ok {
		return model.ResultFilter{}, false
	}
	return model.ResultFilter{
		ExamType:     t,
		ExamCategory: c.Query("category"),
		Search:       c.Query("search"),
	}, true
}

// ListResults godoc
// GET /api/v1/admin/results?type=&category=&search=&page=&per_page=
func (h *ResultHandler) ListResults(c *gin.Context) {
	f, ok := resultFilter(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}

	page, perPage := pageQuery(c)
	results, pagination, err := h.resultService.List(c.Request.Context(), f, page, perPage)
	if err != nil {
		fail(c, err, response.ErrResultNotFound)
		return
	}

	if results == nil {
		results = []model.ExamResult{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, pagination)
}

// DeleteResult godoc
// DELETE /api/v1/admin/results/:id
func (h *ResultHandler) DeleteResult(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.resultService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err, response.ErrResultNotFound)
		return
	}

	response.Success(c, http.StatusOK, nil)
}

// ExportResults godoc
// GET /api/v1/admin/results/export?format=summary|detailed|xlsx
// Downloads every matching result as a file.
func (h *ResultHandler) ExportResults(c *gin.Context) {
	kind, err := export.ParseKind(c.Query("format"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrExportFormat)
		return
	}
	f, ok := resultFilter(c)
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}

	// Buffered so a failed query still gets a JSON error instead of a truncated file.
	var buf bytes.Buffer
	filename, err := h.resultService.Export(c.Request.Context(), &buf, kind, f)
	if err != nil {
		fail(c, err, response.ErrResultNotFound)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, kind.ContentType(), buf.Bytes())
}
