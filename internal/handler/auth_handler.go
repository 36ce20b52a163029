package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lpkmns/nihongo-exam/internal/middleware"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/response"
	"github.com/lpkmns/nihongo-exam/internal/service"
	"github.com/lpkmns/nihongo-exam/internal/validator"
)

// AuthHandler handles admin authentication endpoints.
type AuthHandler struct {
	authService  *service.AuthService
	adminService *service.AdminService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, adminService *service.AdminService) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		adminService: adminService,
	}
}

// AdminLogin godoc
// POST /api/v1/auth/admin/login
// Validates username + password, returns JWT. Earlier tokens of the same admin stop working.
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req model.AdminLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	token, admin, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		fail(c, err, response.ErrInvalidCredentials)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"admin": admin,
	})
}

// GetAdminProfile godoc
// GET /api/v1/auth/admin/me
// Returns the profile of the currently authenticated admin.
func (h *AuthHandler) GetAdminProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	admin, err := h.adminService.GetByID(c.Request.Context(), claims.AdminID)
	if err != nil {
		fail(c, err, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"admin": admin})
}

// ChangePassword godoc
// POST /api/v1/auth/admin/password
// Rotates the admin password and ends every session of that admin.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.ChangePasswordRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.adminService.ChangePassword(c.Request.Context(), claims.AdminID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Fail(c, http.StatusBadRequest, response.ErrWrongPassword)
			return
		}
		fail(c, err, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"relogin_required": true})
}
