package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog/log"

	"nursemate/internal/ai/chain"
	"nursemate/internal/ai/component"
	"nursemate/internal/ai/retrieval"
	"nursemate/internal/config"
	"nursemate/internal/pkg/embedding"
	"nursemate/internal/pkg/pinecone"
)

// Client AI 能力层客户端
// 进程启动时构造一次，持有 ChatModel、向量化客户端和向量索引
type Client struct {
	chatModel model.BaseChatModel
	answer    *chain.AnswerChain
	summary   *chain.SummaryChain
	embedder  *embedding.Embedder
	index     *pinecone.Index
	retriever *retrieval.Retriever
}

// NewClient 创建 AI 客户端
// 未配置 vector.api_key 时检索不可用，Retriever 返回 nil
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	if cfg.AI.APIKey == "" {
		log.Warn().Str("provider", cfg.AI.Provider).Msg("AI API key not configured, generation requests will fail")
	}

	chatModel, err := component.NewChatModel(ctx, &cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return newClient(ctx, chatModel, cfg)
}

// NewClientWithModel 使用外部 ChatModel 构造（测试注入）
func NewClientWithModel(ctx context.Context, chatModel model.BaseChatModel, cfg *config.Config) (*Client, error) {
	return newClient(ctx, chatModel, cfg)
}

func newClient(ctx context.Context, chatModel model.BaseChatModel, cfg *config.Config) (*Client, error) {
	c := &Client{
		chatModel: chatModel,
		answer:    chain.NewAnswerChain(chatModel),
		summary:   chain.NewSummaryChain(chatModel),
		embedder:  embedding.New(&cfg.Embedding),
	}

	if cfg.Vector.APIKey == "" {
		log.Warn().Msg("vector.api_key not configured, retrieval disabled")
		return c, nil
	}

	pc, err := pinecone.New(&cfg.Vector)
	if err != nil {
		return nil, fmt.Errorf("create pinecone client: %w", err)
	}
	index, err := pinecone.OpenIndex(ctx, pc, cfg.Vector.IndexName, cfg.Vector.IndexHost, cfg.Vector.Namespace)
	if err != nil {
		return nil, err
	}
	c.index = index
	c.retriever = retrieval.New(c.embedder, index)
	return c, nil
}

// Answer 答案生成链
func (c *Client) Answer() *chain.AnswerChain {
	return c.answer
}

// Summary 摘要链
func (c *Client) Summary() *chain.SummaryChain {
	return c.summary
}

// Retriever 检索器，检索未启用时为 nil
func (c *Client) Retriever() *retrieval.Retriever {
	return c.retriever
}

// Embedder 向量化客户端
func (c *Client) Embedder() *embedding.Embedder {
	return c.embedder
}

// Index 向量索引，检索未启用时为 nil
func (c *Client) Index() *pinecone.Index {
	return c.index
}

// Close 关闭客户端
// 当前各组件只持有 http.Client，没有需要释放的长连接
func (c *Client) Close() error {
	return nil
}
