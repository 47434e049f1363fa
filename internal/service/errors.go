package service

import "errors"

var (
	// ErrMissingFields 必填字段缺失
	ErrMissingFields = errors.New("question, conversationId and userId are required")
	// ErrInvalidConversationID conversationId 格式不合法
	ErrInvalidConversationID = errors.New("invalid conversationId")
	// ErrConversationNotFound 对话不存在或不属于调用者
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrContextUnavailable 上下文缓存未启用
	ErrContextUnavailable = errors.New("context cache unavailable")
)

// IsValidationError 是否为请求校验错误（流开始前返回）
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingFields) || errors.Is(err, ErrInvalidConversationID)
}
