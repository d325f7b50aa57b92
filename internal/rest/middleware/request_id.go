package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/psiflow/psiflow/internal/types"
)

// RequestIDMiddleware attaches a request ID to the request context, honoring
// one supplied by the caller so IDs propagate across services.
func RequestIDMiddleware(c *gin.Context) {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REQUEST)
	}

	ctx := types.WithRequestID(c.Request.Context(), requestID)
	c.Request = c.Request.WithContext(ctx)
	c.Writer.Header().Set("X-Request-ID", requestID)

	c.Next()
}
