package pinecone

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Index 绑定 host 与 namespace 的索引句柄
type Index struct {
	client    *Client
	host      string
	namespace string
}

// OpenIndex 打开索引；host 为空时通过 describe_index 解析
func OpenIndex(ctx context.Context, c *Client, name, host, namespace string) (*Index, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		desc, err := c.DescribeIndex(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("resolve index host: %w", err)
		}
		host = desc.Host
		log.Warn().
			Str("index_name", name).
			Str("index_host", host).
			Msg("vector.index_host not set, resolved via describe_index")
	}
	return &Index{client: c, host: host, namespace: namespace}, nil
}

// Query 相似度查询并返回元数据
func (i *Index) Query(ctx context.Context, vector []float32, topK int) ([]QueryMatch, error) {
	resp, err := i.client.Query(ctx, i.host, QueryRequest{
		Namespace:       i.namespace,
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

// Upsert 写入向量
func (i *Index) Upsert(ctx context.Context, vectors []Vector) (int64, error) {
	resp, err := i.client.UpsertVectors(ctx, i.host, UpsertRequest{
		Namespace: i.namespace,
		Vectors:   vectors,
	})
	if err != nil {
		return 0, err
	}
	return resp.UpsertedCount, nil
}
