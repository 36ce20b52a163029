package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/response"
	"github.com/lpkmns/nihongo-exam/internal/service"
	"github.com/lpkmns/nihongo-exam/internal/validator"
)

// QuestionHandler handles question bank endpoints.
type QuestionHandler struct {
	questionService *service.QuestionService
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

// ListQuestions godoc
// GET /api/v1/admin/questions?type=&category=&search=
// Lists stored questions. Built-in questions appear once seeded.
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	t, ok := examTypeQuery(c, "type")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}

	questions, err := h.questionService.List(c.Request.Context(), model.QuestionFilter{
		Type:     t,
		Category: c.Query("category"),
		Search:   c.Query("search"),
	})
	if err != nil {
		fail(c, err, response.ErrQuestionNotFound)
		return
	}

	if questions == nil {
		questions = []model.Question{}
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// CreateQuestion godoc
// POST /api/v1/admin/questions
// Adds a custom question to the bank.
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	var req model.QuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err, response.ErrQuestionNotFound)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question": question})
}

// GetStats godoc
// GET /api/v1/admin/questions/stats
func (h *QuestionHandler) GetStats(c *gin.Context) {
	stats, err := h.questionService.Stats(c.Request.Context())
	if err != nil {
		fail(c, err, response.ErrQuestionNotFound)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// UpdateQuestion godoc
// PUT /api/v1/admin/questions/:id
// Replaces a custom question. Built-in questions are read-only.
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	var req model.QuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		fail(c, err, response.ErrQuestionNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question": question})
}

// DeleteQuestion godoc
// DELETE /api/v1/admin/questions/:id
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	if err := h.questionService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err, response.ErrQuestionNotFound)
		return
	}

	response.Success(c, http.StatusOK, nil)
}
