package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/logger"
)

// ErrorHandler renders the first error attached to the gin context as the
// canonical JSON error body. Handlers call c.Error(err) and return; the
// status code comes from the sentinel the error is marked with.
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors[0].Err
		status := statusFromError(err)

		if status >= http.StatusInternalServerError {
			log.Errorw("request failed",
				"status", status,
				"path", c.Request.URL.Path,
				"error", err,
			)
		}

		c.JSON(status, ierr.NewErrorResponse(err))
	}
}

func statusFromError(err error) int {
	switch {
	case ierr.IsValidation(err):
		return http.StatusBadRequest
	case ierr.IsSignature(err):
		return http.StatusBadRequest
	case ierr.IsPermissionDenied(err):
		return http.StatusForbidden
	case ierr.IsNotFound(err):
		return http.StatusNotFound
	case ierr.IsAlreadyExists(err):
		return http.StatusConflict
	case ierr.Is(err, ierr.ErrInvalidOperation):
		return http.StatusUnprocessableEntity
	case ierr.IsRateLimit(err):
		return http.StatusTooManyRequests
	case ierr.Is(err, ierr.ErrHTTPClient):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
