package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const ContextRequestIDKey = "request_id"

// RequestID tags every request with a unique id, honoring one supplied by
// the caller.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Header("X-Request-ID", requestID)
		c.Set(ContextRequestIDKey, requestID)
		c.Next()
	}
}

// GetRequestID gets the request id from the gin context.
func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextRequestIDKey)
}
