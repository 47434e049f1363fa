// Package retrieval 知识库检索
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nursemate/internal/pkg/pinecone"
)

// DefaultTopK 默认检索片段数
const DefaultTopK = 5

// ErrEmptyQuery 查询为空
var ErrEmptyQuery = errors.New("retrieval: empty query")

// Error 检索失败（传输或鉴权）
type Error struct {
	Stage string // embed, query
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("retrieval %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Embedder 文本向量化
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex 向量相似度查询
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, topK int) ([]pinecone.QueryMatch, error)
}

// Retriever 检索网关：向量化问题，查询索引，返回片段文本
type Retriever struct {
	embedder Embedder
	index    VectorIndex
}

// New 创建检索器
func New(embedder Embedder, index VectorIndex) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

// Retrieve 返回最相关的 topK 个片段文本，保持相关度顺序
// 没有 metadata.text 的命中被跳过；无命中返回空切片
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, &Error{Stage: "embed", Err: err}
	}

	matches, err := r.index.Query(ctx, vector, topK)
	if err != nil {
		return nil, &Error{Stage: "query", Err: err}
	}

	snippets := make([]string, 0, len(matches))
	for _, m := range matches {
		text, ok := m.Metadata["text"].(string)
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		snippets = append(snippets, text)
	}
	return snippets, nil
}
