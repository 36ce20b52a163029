package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lpkmns/nihongo-exam/internal/repository"
	"github.com/lpkmns/nihongo-exam/internal/response"
	"github.com/lpkmns/nihongo-exam/internal/service"
)

// ActiveChecker reports whether a student may keep using their exam token.
type ActiveChecker interface {
	IsActive(ctx context.Context, studentID uuid.UUID) error
}

// CheckActiveStudent rejects student tokens once the attempt is completed
// or an admin has disconnected the student.
func CheckActiveStudent(checker ActiveChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		err := checker.IsActive(c.Request.Context(), claims.StudentID)
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, service.ErrStudentInactive):
			response.AbortFail(c, http.StatusForbidden, response.ErrStudentInactive)
		case errors.Is(err, repository.ErrNotFound):
			response.AbortFail(c, http.StatusUnauthorized, response.ErrStudentNotFound)
		default:
			response.AbortFail(c, http.StatusServiceUnavailable, response.ErrConnection)
		}
	}
}
