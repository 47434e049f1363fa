package middleware

import (
	"github.com/gin-gonic/gin"

	"nursemate/internal/pkg/ctxutil"
	"nursemate/internal/pkg/id"
)

const (
	// RequestIDHeader 请求 ID 头
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey gin context 中的 key
	RequestIDKey = "request_id"
)

// RequestID 生成或透传请求 ID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if !id.IsValidExternal(rid) {
			rid = id.New()
		}
		c.Set(RequestIDKey, rid)
		c.Header(RequestIDHeader, rid)
		c.Request = c.Request.WithContext(ctxutil.WithRequestID(c.Request.Context(), rid))
		c.Next()
	}
}
