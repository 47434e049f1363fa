package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"nursemate/internal/config"
)

// ErrMiss key 不存在
var ErrMiss = errors.New("cache: key not found")

// RedisCache Redis 缓存封装
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache 创建 Redis 缓存客户端
func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisCache{client: client}, nil
}

// NewWithClient 使用已有客户端构造（测试注入 miniredis）
func NewWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// SetJSON 以 JSON 形式写入
func (c *RedisCache) SetJSON(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, expiration).Err()
}

// GetJSON 读取 JSON，key 不存在时返回 ErrMiss
func (c *RedisCache) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

// PushCapped 追加到列表尾部并只保留最后 max 个元素
// RPUSH 与 LTRIM 在同一个事务中执行
func (c *RedisCache) PushCapped(ctx context.Context, key string, max int64, values ...any) error {
	if len(values) == 0 {
		return nil
	}
	encoded := make([]any, 0, len(values))
	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		encoded = append(encoded, data)
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, encoded...)
		if max > 0 {
			pipe.LTrim(ctx, key, -max, -1)
		}
		return nil
	})
	return err
}

// RangeJSON 读取列表全部元素并逐个解码
// decode 对每个元素调用一次，返回错误时中止
func (c *RedisCache) RangeJSON(ctx context.Context, key string, decode func(raw []byte) error) error {
	items, err := c.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := decode([]byte(item)); err != nil {
			return err
		}
	}
	return nil
}

// Ping 健康检查
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close 关闭连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// key 模式
const (
	ChatHistoryKeyPrefix = "chat:history:"
	ChatSummaryKeyPrefix = "chat:summary:"
)

// ChatHistoryKey 用户最近轮次列表 key
func ChatHistoryKey(userID string) string {
	return ChatHistoryKeyPrefix + userID
}

// ChatSummaryKey 用户滚动摘要 key
func ChatSummaryKey(userID string) string {
	return ChatSummaryKeyPrefix + userID
}
