package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/response"
	"github.com/lpkmns/nihongo-exam/internal/service"
	"github.com/lpkmns/nihongo-exam/internal/validator"
)

// TokenHandler handles admin token management endpoints.
type TokenHandler struct {
	tokenService *service.TokenService
}

// NewTokenHandler creates a new TokenHandler.
func NewTokenHandler(tokenService *service.TokenService) *TokenHandler {
	return &TokenHandler{tokenService: tokenService}
}

// ListTokens godoc
// GET /api/v1/admin/tokens?used=&type=&page=&per_page=
// Lists tokens, newest first.
func (h *TokenHandler) ListTokens(c *gin.Context) {
	var f model.TokenFilter
	if raw := c.Query("used"); raw != "" {
		used, err := strconv.ParseBool(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrValidation)
			return
		}
		f.Used = &used
	}
	t, ok := examTypeQuery(c, "type")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}
	f.ExamType = t

	page, perPage := pageQuery(c)
	tokens, pagination, err := h.tokenService.List(c.Request.Context(), f, page, perPage)
	if err != nil {
		fail(c, err, response.ErrExamTokenNotFound)
		return
	}
	if tokens == nil {
		tokens = []model.Token{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"tokens": tokens}, pagination)
}

// GenerateTokens godoc
// POST /api/v1/admin/tokens
// Generates a batch of single-use tokens for one category.
func (h *TokenHandler) GenerateTokens(c *gin.Context) {
	var req model.GenerateTokensRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	tokens, err := h.tokenService.Generate(c.Request.Context(), req)
	if err != nil {
		fail(c, err, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"tokens": tokens})
}

// GetStats godoc
// GET /api/v1/admin/tokens/stats
func (h *TokenHandler) GetStats(c *gin.Context) {
	stats, err := h.tokenService.Stats(c.Request.Context())
	if err != nil {
		fail(c, err, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// DisableToken godoc
// POST /api/v1/admin/tokens/:code/disable
// Marks an unused token as used so it can no longer be redeemed.
func (h *TokenHandler) DisableToken(c *gin.Context) {
	if err := h.tokenService.Disable(c.Request.Context(), c.Param("code")); err != nil {
		fail(c, err, response.ErrExamTokenNotFound)
		return
	}

	response.Success(c, http.StatusOK, nil)
}

// DeleteToken godoc
// DELETE /api/v1/admin/tokens/:code
func (h *TokenHandler) DeleteToken(c *gin.Context) {
	if err := h.tokenService.Delete(c.Request.Context(), c.Param("code")); err != nil {
		fail(c, err, response.ErrExamTokenNotFound)
		return
	}

	response.Success(c, http.StatusOK, nil)
}
