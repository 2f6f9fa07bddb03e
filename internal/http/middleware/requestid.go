package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is the gin context key for the request correlation ID.
const RequestIDKey = "requestID"

// requestIDHeader carries the correlation ID on responses.
const requestIDHeader = "X-Request-ID"

// RequestID stamps every request with a correlation ID, reusing the inbound
// header when a proxy already assigned one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestIDFrom returns the correlation ID stamped on the context.
func RequestIDFrom(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(RequestIDKey)
}
