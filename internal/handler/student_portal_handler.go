package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lpkmns/nihongo-exam/internal/middleware"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/response"
	"github.com/lpkmns/nihongo-exam/internal/service"
	"github.com/lpkmns/nihongo-exam/internal/validator"
)

// HeaderDeviceID identifies the browser a student takes the exam in.
const HeaderDeviceID = "X-Device-ID"

// StudentPortalHandler handles student-facing endpoints (token entry, exam start, resume).
type StudentPortalHandler struct {
	tokenService   *service.TokenService
	sessionService *service.ExamSessionService
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	tokenService *service.TokenService,
	sessionService *service.ExamSessionService,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		tokenService:   tokenService,
		sessionService: sessionService,
	}
}

// ValidateToken godoc
// POST /api/v1/student/token/validate
// Consumes a single-use token. Unknown and used tokens answer {valid: false}.
func (h *StudentPortalHandler) ValidateToken(c *gin.Context) {
	var req model.ValidateTokenRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	v, err := h.tokenService.Validate(c.Request.Context(), req.Token)
	if err != nil {
		fail(c, err, response.ErrExamTokenNotFound)
		return
	}

	response.Success(c, http.StatusOK, v)
}

// StartExam godoc
// POST /api/v1/student/exams/start
// Turns a validated token into a running exam and returns the student JWT.
func (h *StudentPortalHandler) StartExam(c *gin.Context) {
	var req model.StartExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	started, err := h.sessionService.StartExam(c.Request.Context(), req.Token, req.Name, c.GetHeader(HeaderDeviceID))
	if err != nil {
		fail(c, err, response.ErrExamTokenNotFound)
		return
	}

	response.Success(c, http.StatusCreated, started)
}

// Resume godoc
// GET /api/v1/student/resume
// Re-attaches this device to the exam it was taking, if any.
func (h *StudentPortalHandler) Resume(c *gin.Context) {
	started, err := h.sessionService.Resume(c.Request.Context(), c.GetHeader(HeaderDeviceID))
	if err != nil {
		fail(c, err, response.ErrNoResume)
		return
	}

	response.Success(c, http.StatusOK, started)
}

// GetSession godoc
// GET /api/v1/student/session
// Returns the current snapshot of the student's exam. Covers page reloads.
func (h *StudentPortalHandler) GetSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	view, err := h.sessionService.Current(c.Request.Context(), claims.StudentID)
	if err != nil {
		fail(c, err, response.ErrStudentNotFound)
		return
	}

	response.Success(c, http.StatusOK, view)
}
