package model

import "time"

// ConversationItem 对话列表项
type ConversationItem struct {
	ConversationID string    `json:"conversationId"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MessageItem 消息列表项
type MessageItem struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ContextResponse 用户上下文（滚动摘要 + 最近轮次）
type ContextResponse struct {
	Summary   string     `json:"summary"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	Recent    []Turn     `json:"recent"`
}

// NewConversationItems 转换对话列表
func NewConversationItems(convs []*Conversation) []ConversationItem {
	items := make([]ConversationItem, 0, len(convs))
	for _, c := range convs {
		items = append(items, ConversationItem{
			ConversationID: c.ConversationID,
			Title:          c.Title,
			CreatedAt:      c.CreatedAt,
		})
	}
	return items
}

// NewMessageItems 转换消息列表
func NewMessageItems(msgs []*Message) []MessageItem {
	items := make([]MessageItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, MessageItem{Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	return items
}
