package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/psiflow/psiflow/internal/auth"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/logger"
	"github.com/psiflow/psiflow/internal/types"
)

// AuthenticateMiddleware validates the bearer token and stores the caller's
// identity in the request context. Routes behind it can rely on
// types.GetUserID and types.GetUserRole being set.
func AuthenticateMiddleware(authService auth.Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			abortWithError(c, ierr.NewError("missing or malformed authorization header").
				WithHint("Provide a Bearer token").
				Mark(ierr.ErrPermissionDenied))
			return
		}

		claims, err := authService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			log.Debugw("token validation failed", "error", err)
			abortWithError(c, err)
			return
		}

		ctx := types.WithUserID(c.Request.Context(), claims.UserID)
		ctx = types.WithUserRole(ctx, claims.Role)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// AdminOnlyMiddleware rejects callers without the admin role. Must run after
// AuthenticateMiddleware.
func AdminOnlyMiddleware(c *gin.Context) {
	if !types.IsAdmin(c.Request.Context()) {
		abortWithError(c, ierr.NewError("admin role required").
			Mark(ierr.ErrPermissionDenied))
		return
	}
	c.Next()
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
