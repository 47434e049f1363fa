package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	httpx "nursemate/internal/pkg/http"
	"nursemate/internal/pkg/metrics"
)

// Recovery 异常恢复中间件
// 响应已开始写入（例如 SSE）时只记录日志，不再写 JSON
func Recovery(m *metrics.ChatMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Interface("error", err).
					Str("path", c.Request.URL.Path).
					Str("method", c.Request.Method).
					Str("request_id", c.GetString(RequestIDKey)).
					Msg("panic recovered")
				m.Error(metrics.ErrorPanic)

				if c.Writer.Written() {
					c.Abort()
					return
				}
				httpx.AbortWithError(c, http.StatusInternalServerError, httpx.CodeInternal, "Internal server error")
			}
		}()
		c.Next()
	}
}
