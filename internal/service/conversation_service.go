package service

import (
	"context"
	"errors"
	"fmt"

	"nursemate/internal/model"
	"nursemate/internal/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ConversationService 对话查询服务
type ConversationService struct {
	conversations ConversationStore
	messages      MessageStore
	cache         ContextCache
}

// NewConversationService 创建对话查询服务
func NewConversationService(conversations ConversationStore, messages MessageStore, cache ContextCache) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		cache:         cache,
	}
}

// List 列出用户的对话，按创建时间倒序
func (s *ConversationService) List(ctx context.Context, userID string, limit, offset int64) ([]model.ConversationItem, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	convs, err := s.conversations.ListByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return model.NewConversationItems(convs), nil
}

// Messages 返回对话的全部消息，按时间正序
// 对话不存在或不属于调用者时统一返回 ErrConversationNotFound
func (s *ConversationService) Messages(ctx context.Context, userID, conversationID string) ([]model.MessageItem, error) {
	conv, err := s.conversations.FindByConversationID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if conv.UserID != userID {
		return nil, ErrConversationNotFound
	}

	msgs, err := s.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return model.NewMessageItems(msgs), nil
}

// Context 返回用户的滚动摘要与最近轮次
func (s *ConversationService) Context(ctx context.Context, userID string) (*model.ContextResponse, error) {
	summary, err := s.cache.GetSummary(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrCacheUnavailable) {
			return nil, ErrContextUnavailable
		}
		return nil, fmt.Errorf("get summary: %w", err)
	}
	turns, err := s.cache.RecentTurns(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}

	resp := &model.ContextResponse{Recent: turns}
	if resp.Recent == nil {
		resp.Recent = []model.Turn{}
	}
	if summary != nil {
		resp.Summary = summary.Summary
		updatedAt := summary.UpdatedAt
		resp.UpdatedAt = &updatedAt
	}
	return resp, nil
}
