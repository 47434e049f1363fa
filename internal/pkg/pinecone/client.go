package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nursemate/internal/config"
)

const (
	defaultAPIVersion = "2025-04"
	defaultControlURL = "https://api.pinecone.io"
	defaultTopK       = 5
)

// APIError 非 2xx 响应
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pinecone %s http %d: %s", e.Op, e.StatusCode, e.Body)
}

// IsAuth 鉴权失败
func (e *APIError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Client Pinecone REST 客户端
type Client struct {
	apiKey     string
	apiVersion string
	controlURL string
	http       *http.Client
}

// New 创建客户端
func New(cfg *config.VectorConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("missing pinecone api key")
	}
	c := &Client{
		apiKey:     cfg.APIKey,
		apiVersion: cfg.APIVersion,
		controlURL: cfg.ControlURL,
		http:       &http.Client{Timeout: cfg.Timeout},
	}
	if c.apiVersion == "" {
		c.apiVersion = defaultAPIVersion
	}
	if c.controlURL == "" {
		c.controlURL = defaultControlURL
	}
	if cfg.Timeout <= 0 {
		c.http.Timeout = 30 * time.Second
	}
	return c, nil
}

// IndexDescription describe_index 响应
type IndexDescription struct {
	Name      string `json:"name"`
	Host      string `json:"host"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

// DescribeIndex 通过控制面查询索引信息
func (c *Client) DescribeIndex(ctx context.Context, indexName string) (*IndexDescription, error) {
	indexName = strings.TrimSpace(indexName)
	if indexName == "" {
		return nil, errors.New("index name required")
	}

	u := strings.TrimRight(c.controlURL, "/") + "/indexes/" + indexName
	out, err := doJSON[IndexDescription](ctx, c, "describe_index", http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Host) == "" {
		return nil, errors.New("pinecone describe_index returned empty host")
	}
	return out, nil
}

// Vector 向量记录
type Vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// UpsertRequest 写入请求
type UpsertRequest struct {
	Vectors   []Vector `json:"vectors"`
	Namespace string   `json:"namespace,omitempty"`
}

// UpsertResponse 写入响应
type UpsertResponse struct {
	UpsertedCount int64 `json:"upsertedCount"`
}

// UpsertVectors 写入向量
func (c *Client) UpsertVectors(ctx context.Context, host string, req UpsertRequest) (*UpsertResponse, error) {
	if len(req.Vectors) == 0 {
		return &UpsertResponse{}, nil
	}
	u, err := dataURL(host, "/vectors/upsert")
	if err != nil {
		return nil, err
	}
	return doJSON[UpsertResponse](ctx, c, "upsert", http.MethodPost, u, req)
}

// QueryRequest 相似度查询
type QueryRequest struct {
	Namespace       string         `json:"namespace,omitempty"`
	Vector          []float32      `json:"vector"`
	TopK            int            `json:"topK"`
	Filter          map[string]any `json:"filter,omitempty"`
	IncludeValues   bool           `json:"includeValues"`
	IncludeMetadata bool           `json:"includeMetadata"`
}

// QueryMatch 查询命中
type QueryMatch struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// QueryResponse 查询响应，matches 按相关度降序
type QueryResponse struct {
	Matches   []QueryMatch `json:"matches"`
	Namespace string       `json:"namespace"`
}

// Query 相似度查询
func (c *Client) Query(ctx context.Context, host string, req QueryRequest) (*QueryResponse, error) {
	if len(req.Vector) == 0 {
		return nil, errors.New("query vector required")
	}
	if req.TopK <= 0 {
		req.TopK = defaultTopK
	}
	u, err := dataURL(host, "/query")
	if err != nil {
		return nil, err
	}
	return doJSON[QueryResponse](ctx, c, "query", http.MethodPost, u, req)
}

// dataURL 数据面地址；host 不带 scheme 时补 https
func dataURL(host, path string) (string, error) {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return "", errors.New("index host required")
	}
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return host + path, nil
}

func doJSON[T any](ctx context.Context, c *Client, op, method, url string, body any) (*T, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Pinecone-Api-Version", c.apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pinecone %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("pinecone %s decode: %w", op, err)
	}
	return &out, nil
}
