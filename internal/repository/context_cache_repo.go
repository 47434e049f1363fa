package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"nursemate/internal/model"
	"nursemate/internal/pkg/cache"
)

// ErrCacheUnavailable 未配置 Redis
var ErrCacheUnavailable = errors.New("context cache unavailable")

// DefaultRecentTurns 最近轮次上限
const DefaultRecentTurns = 5

// ContextCacheRepo 用户级上下文缓存：最近轮次 + 滚动摘要
type ContextCacheRepo struct {
	cache       *cache.RedisCache
	recentTurns int64
}

// NewContextCacheRepo 创建上下文缓存仓库，redisCache 可以为 nil
func NewContextCacheRepo(redisCache *cache.RedisCache, recentTurns int64) *ContextCacheRepo {
	if recentTurns <= 0 {
		recentTurns = DefaultRecentTurns
	}
	return &ContextCacheRepo{cache: redisCache, recentTurns: recentTurns}
}

// PushTurn 追加一轮对话，只保留最近 N 条
func (r *ContextCacheRepo) PushTurn(ctx context.Context, userID string, turn model.Turn) error {
	if r.cache == nil {
		return ErrCacheUnavailable
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	return r.cache.PushCapped(ctx, cache.ChatHistoryKey(userID), r.recentTurns, turn)
}

// RecentTurns 读取最近轮次，按写入顺序
func (r *ContextCacheRepo) RecentTurns(ctx context.Context, userID string) ([]model.Turn, error) {
	if r.cache == nil {
		return nil, ErrCacheUnavailable
	}
	turns := make([]model.Turn, 0, r.recentTurns)
	err := r.cache.RangeJSON(ctx, cache.ChatHistoryKey(userID), func(raw []byte) error {
		var t model.Turn
		if err := json.Unmarshal(raw, &t); err != nil {
			return err
		}
		turns = append(turns, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return turns, nil
}

// GetSummary 读取滚动摘要，不存在时返回 nil, nil
func (r *ContextCacheRepo) GetSummary(ctx context.Context, userID string) (*model.RollingSummary, error) {
	if r.cache == nil {
		return nil, ErrCacheUnavailable
	}
	var s model.RollingSummary
	err := r.cache.GetJSON(ctx, cache.ChatSummaryKey(userID), &s)
	if errors.Is(err, cache.ErrMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SetSummary 整体替换滚动摘要
func (r *ContextCacheRepo) SetSummary(ctx context.Context, userID, summary string) error {
	if r.cache == nil {
		return ErrCacheUnavailable
	}
	return r.cache.SetJSON(ctx, cache.ChatSummaryKey(userID), model.RollingSummary{
		Summary:   summary,
		UpdatedAt: time.Now().UTC(),
	}, 0)
}
