package ctxutil

import "context"

// 私有类型避免与其他 context key 冲突
type (
	userIDKeyType    struct{}
	requestIDKeyType struct{}
)

var (
	userIDKey    = userIDKeyType{}
	requestIDKey = requestIDKeyType{}
)

// WithUserID 将已认证的 userID 注入 context，由认证中间件调用
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID 从 context 中解析 userID
func GetUserID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(userIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// WithRequestID 注入请求 ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID 获取请求 ID，不存在时返回空串
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
