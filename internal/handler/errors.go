package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lpkmns/nihongo-exam/internal/engine"
	"github.com/lpkmns/nihongo-exam/internal/repository"
	"github.com/lpkmns/nihongo-exam/internal/response"
	"github.com/lpkmns/nihongo-exam/internal/service"
)

// translateError maps an error from the service layer to the HTTP status
// and error code shown to the client. notFound is the code used for a
// missing resource on this route.
func translateError(err error, notFound response.ErrCode) (int, response.ErrCode) {
	switch {
	case errors.Is(err, engine.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, notFound

	// ─── Auth ──────────────────────────────────────────────────────────
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, response.ErrInvalidCredentials
	case errors.Is(err, service.ErrWeakPassword):
		return http.StatusBadRequest, response.ErrWeakPassword
	case errors.Is(err, service.ErrSessionInvalidated):
		return http.StatusUnauthorized, response.ErrSessionInvalidated
	case errors.Is(err, repository.ErrDuplicateUsername):
		return http.StatusConflict, response.ErrConflict

	// ─── Tokens ────────────────────────────────────────────────────────
	case errors.Is(err, repository.ErrTokenUsed):
		return http.StatusBadRequest, response.ErrExamTokenInvalid
	case errors.Is(err, service.ErrAdmissionExpired):
		return http.StatusBadRequest, response.ErrAdmissionExpired
	case errors.Is(err, service.ErrUnknownCategory):
		return http.StatusBadRequest, response.ErrUnknownCategory
	case errors.Is(err, service.ErrCategoryMismatch):
		return http.StatusBadRequest, response.ErrCategoryMismatch
	case errors.Is(err, service.ErrTokenGenerate):
		return http.StatusConflict, response.ErrTokenGenerate

	// ─── Exam sessions ─────────────────────────────────────────────────
	case errors.Is(err, service.ErrDeviceRequired):
		return http.StatusBadRequest, response.ErrDeviceRequired
	case errors.Is(err, service.ErrNoResume):
		return http.StatusNotFound, response.ErrNoResume
	case errors.Is(err, service.ErrStudentInactive), errors.Is(err, engine.ErrNotActive):
		return http.StatusConflict, response.ErrStudentInactive
	case errors.Is(err, service.ErrInvalidStatus):
		return http.StatusBadRequest, response.ErrValidation
	case errors.Is(err, engine.ErrInvalidName):
		return http.StatusBadRequest, response.ErrValidation
	case errors.Is(err, engine.ErrSubmitInProgress):
		return http.StatusConflict, response.ErrSubmitInProgress
	case errors.Is(err, engine.ErrCompletionFailed):
		return http.StatusServiceUnavailable, response.ErrSubmitFailed
	case errors.Is(err, engine.ErrUnknownQuestion), errors.Is(err, engine.ErrInvalidOption):
		return http.StatusBadRequest, response.ErrInvalidAnswer
	case errors.Is(err, engine.ErrInvalidQuestionIndex):
		return http.StatusBadRequest, response.ErrInvalidNavigation
	case errors.Is(err, engine.ErrSessionClosed):
		return http.StatusConflict, response.ErrExamNotActive

	// ─── Questions ─────────────────────────────────────────────────────
	case errors.Is(err, service.ErrBuiltinQuestion):
		return http.StatusForbidden, response.ErrBuiltinQuestion

	// ─── Infrastructure ────────────────────────────────────────────────
	case errors.Is(err, context.DeadlineExceeded), isConnectionError(err):
		return http.StatusServiceUnavailable, response.ErrConnection
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// isConnectionError reports failures to reach Postgres, as opposed to a
// query the server rejected.
func isConnectionError(err error) bool {
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}

// fail translates err and writes the error envelope. The raw error is
// attached to the gin context for the access log only.
func fail(c *gin.Context, err error, notFound response.ErrCode) {
	_ = c.Error(err)
	status, code := translateError(err, notFound)
	response.Fail(c, status, code)
}
