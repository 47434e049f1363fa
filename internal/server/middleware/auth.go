package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"nursemate/internal/pkg/ctxutil"
	httpx "nursemate/internal/pkg/http"
	"nursemate/internal/pkg/jwt"
)

// TokenValidator 校验 token 并返回 Claims
type TokenValidator interface {
	Validate(tokenString string) (*jwt.Claims, error)
}

// Auth JWT 认证中间件
// 优先从 Authorization header 中提取 Bearer token；allowQuery 为 true 时
// 允许 ?token= 参数（EventSource 无法设置 header）。验证后注入 user_id 到 context
func Auth(validator TokenValidator, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := extractToken(c, allowQuery)
		if !ok {
			httpx.AbortWithError(c, http.StatusUnauthorized, httpx.CodeUnauthorized, "Unauthorized")
			return
		}

		// 验证 Token
		claims, err := validator.Validate(tokenString)
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, jwt.ErrExpiredToken) {
				msg = "Token expired"
			}
			log.Debug().Err(err).Str("request_id", ctxutil.GetRequestID(c.Request.Context())).Msg("token rejected")
			httpx.AbortWithError(c, http.StatusUnauthorized, httpx.CodeTokenInvalid, msg)
			return
		}

		userID := claims.Identity()
		if userID == "" {
			httpx.AbortWithError(c, http.StatusUnauthorized, httpx.CodeTokenInvalid, "Invalid token")
			return
		}

		// 将 user_id 注入到 context
		ctx := ctxutil.WithUserID(c.Request.Context(), userID)
		c.Request = c.Request.WithContext(ctx)
		c.Set("user_id", userID)

		c.Next()
	}
}

func extractToken(c *gin.Context, allowQuery bool) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		// Bearer {token}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	if allowQuery {
		if token := strings.TrimSpace(c.Query("token")); token != "" {
			return token, true
		}
	}
	return "", false
}
