package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/response"
	"github.com/lpkmns/nihongo-exam/internal/service"
	"github.com/lpkmns/nihongo-exam/internal/validator"
)

// StudentManagementHandler handles admin student endpoints.
type StudentManagementHandler struct {
	studentService *service.StudentService
	sessionService *service.ExamSessionService
	monitorService *service.MonitorService
}

// NewStudentManagementHandler creates a new StudentManagementHandler.
func NewStudentManagementHandler(
	studentService *service.StudentService,
	sessionService *service.ExamSessionService,
	monitorService *service.MonitorService,
) *StudentManagementHandler {
	return &StudentManagementHandler{
		studentService: studentService,
		sessionService: sessionService,
		monitorService: monitorService,
	}
}

type updateStatusRequest struct {
	Status model.StudentStatus `json:"status" binding:"required"`
}

// ListStudents godoc
// GET /api/v1/admin/students?status=&type=&search=&page=&per_page=
func (h *StudentManagementHandler) ListStudents(c *gin.Context) {
	t, ok := examTypeQuery(c, "type")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}

	page, perPage := pageQuery(c)
	students, pagination, err := h.studentService.List(c.Request.Context(), model.StudentFilter{
		Status:   model.StudentStatus(c.Query("status")),
		ExamType: t,
		Search:   c.Query("search"),
	}, page, perPage)
	if err != nil {
		fail(c, err, response.ErrStudentNotFound)
		return
	}

	if students == nil {
		students = []model.Student{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"students": students}, pagination)
}

// GetStudent godoc
// GET /api/v1/admin/students/:id
// Returns one student with their recorded violations.
func (h *StudentManagementHandler) GetStudent(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	student, err := h.studentService.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err, response.ErrStudentNotFound)
		return
	}

	violations, err := h.monitorService.StudentViolations(c.Request.Context(), id)
	if err != nil {
		fail(c, err, response.ErrStudentNotFound)
		return
	}
	if violations == nil {
		violations = []model.Violation{}
	}

	response.Success(c, http.StatusOK, gin.H{"student": student, "violations": violations})
}

// DeleteStudent godoc
// DELETE /api/v1/admin/students/:id
// Stops any live exam and removes the student with their session and results.
func (h *StudentManagementHandler) DeleteStudent(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.studentService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err, response.ErrStudentNotFound)
		return
	}

	response.Success(c, http.StatusOK, nil)
}

// DisconnectStudent godoc
// POST /api/v1/admin/students/:id/disconnect
// Force-ends an active attempt without scoring it.
func (h *StudentManagementHandler) DisconnectStudent(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.sessionService.Disconnect(c.Request.Context(), id); err != nil {
		fail(c, err, response.ErrStudentNotFound)
		return
	}

	response.Success(c, http.StatusOK, nil)
}

// UpdateStatus godoc
// PATCH /api/v1/admin/students/:id/status
func (h *StudentManagementHandler) UpdateStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req updateStatusRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.studentService.SetStatus(c.Request.Context(), id, req.Status); err != nil {
		fail(c, err, response.ErrStudentNotFound)
		return
	}

	response.Success(c, http.StatusOK, nil)
}
