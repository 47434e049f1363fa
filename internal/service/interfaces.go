package service

import (
	"context"

	"nursemate/internal/ai/chain"
	"nursemate/internal/model"
	"nursemate/internal/pkg/taskqueue"
)

// ConversationStore 对话持久化
type ConversationStore interface {
	FindOrCreate(ctx context.Context, conversationID, userID, title string) (*model.Conversation, error)
	FindByConversationID(ctx context.Context, conversationID string) (*model.Conversation, error)
	UpdateTitle(ctx context.Context, conversationID, title string) error
	ListByUserID(ctx context.Context, userID string, limit, offset int64) ([]*model.Conversation, error)
}

// MessageStore 消息持久化
type MessageStore interface {
	Create(ctx context.Context, msg *model.Message) error
	ListRecent(ctx context.Context, conversationID string, limit int64) ([]*model.Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]*model.Message, error)
}

// ContextCache 用户级上下文缓存
type ContextCache interface {
	PushTurn(ctx context.Context, userID string, turn model.Turn) error
	RecentTurns(ctx context.Context, userID string) ([]model.Turn, error)
	GetSummary(ctx context.Context, userID string) (*model.RollingSummary, error)
	SetSummary(ctx context.Context, userID, summary string) error
}

// Retriever 知识库检索
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]string, error)
}

// AnswerGenerator 答案生成
type AnswerGenerator interface {
	Generate(ctx context.Context, req *chain.AnswerRequest, onToken func(string)) (string, error)
}

// Summarizer 滚动摘要
type Summarizer interface {
	Summarize(ctx context.Context, previous string, turns []model.Turn) (string, error)
}

// TaskSubmitter 后台任务提交
type TaskSubmitter interface {
	Submit(t taskqueue.Task) bool
}

// Emitter 流式事件输出
// Finish 写出终止事件，同一请求只有第一次生效
type Emitter interface {
	Emit(v any) error
	Finish(v any) error
}
