package model

// AskRequest 提问请求
// GET 使用 query 参数，POST 使用 JSON body
type AskRequest struct {
	Question       string `form:"question" json:"question"`
	ConversationID string `form:"conversationId" json:"conversation_id"`
}

// ListMessagesQuery 旧版消息查询参数
type ListMessagesQuery struct {
	ConversationID string `form:"conversationId" binding:"required"`
}

// ListConversationsQuery 对话列表分页参数
type ListConversationsQuery struct {
	Limit  int64 `form:"limit"`
	Offset int64 `form:"offset"`
}
