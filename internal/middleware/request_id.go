package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ContextRequestIDKey = "request_id"
	HeaderRequestID     = "X-Request-Id"
	maxRequestIDLength  = 128
)

// RequestID reuses the caller's X-Request-Id or generates one and echoes it
// in the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" || len(reqID) > maxRequestIDLength {
			reqID = uuid.NewString()
		}
		c.Writer.Header().Set(HeaderRequestID, reqID)
		c.Set(ContextRequestIDKey, reqID)
		c.Next()
	}
}

func RequestIDFromContext(c *gin.Context) string {
	return c.GetString(ContextRequestIDKey)
}
