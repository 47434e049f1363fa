// Package ingest 将学习资料切片、向量化后写入知识库索引
package ingest

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"nursemate/internal/pkg/pinecone"
)

const (
	DefaultBatchSize = 32
	DefaultMaxRunes  = 1200
)

// Embedder 批量向量化
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Upserter 向量写入
type Upserter interface {
	Upsert(ctx context.Context, vectors []pinecone.Vector) (int64, error)
}

// Ingester 知识库导入
type Ingester struct {
	embedder  Embedder
	index     Upserter
	batchSize int
	maxRunes  int
}

// New 创建导入器，batchSize/maxRunes <= 0 时使用默认值
func New(embedder Embedder, index Upserter, batchSize, maxRunes int) *Ingester {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}
	return &Ingester{embedder: embedder, index: index, batchSize: batchSize, maxRunes: maxRunes}
}

// Run 导入一份文档，返回写入的向量数
// 向量 ID 由 source 和片段序号确定，重复导入同一文档会覆盖而不是追加
func (i *Ingester) Run(ctx context.Context, source, text string) (int64, error) {
	chunks := Chunk(text, i.maxRunes)
	if len(chunks) == 0 {
		return 0, nil
	}

	var total int64
	for start := 0; start < len(chunks); start += i.batchSize {
		end := min(start+i.batchSize, len(chunks))
		batch := chunks[start:end]

		vectors, err := i.embedder.Embed(ctx, batch)
		if err != nil {
			return total, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}

		items := make([]pinecone.Vector, 0, len(batch))
		for j, chunk := range batch {
			n := start + j
			items = append(items, pinecone.Vector{
				ID:     ChunkID(source, n),
				Values: vectors[j],
				Metadata: map[string]any{
					"text":   chunk,
					"source": source,
					"chunk":  n,
				},
			})
		}

		upserted, err := i.index.Upsert(ctx, items)
		if err != nil {
			return total, fmt.Errorf("upsert chunks %d-%d: %w", start, end, err)
		}
		total += upserted
		log.Debug().Str("source", source).Int("from", start).Int("to", end).Msg("chunks ingested")
	}
	return total, nil
}

// ChunkID 片段的确定性 ID
func ChunkID(source string, n int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", source, n))).String()
}

// Chunk 按空行切分段落，合并相邻短段落，单段超过 maxRunes 时按行再切
func Chunk(text string, maxRunes int) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var (
		chunks []string
		cur    strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if utf8.RuneCountInString(para) > maxRunes {
			flush()
			chunks = append(chunks, splitLong(para, maxRunes)...)
			continue
		}
		if cur.Len() > 0 && utf8.RuneCountInString(cur.String())+2+utf8.RuneCountInString(para) > maxRunes {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	flush()
	return chunks
}

func splitLong(para string, maxRunes int) []string {
	var (
		out []string
		cur []rune
	)
	for _, line := range strings.Split(para, "\n") {
		r := []rune(strings.TrimSpace(line))
		for len(r) > 0 {
			room := maxRunes - len(cur)
			if len(cur) > 0 {
				room--
			}
			if room <= 0 {
				out = append(out, string(cur))
				cur = nil
				continue
			}
			take := min(room, len(r))
			if len(cur) > 0 {
				cur = append(cur, '\n')
			}
			cur = append(cur, r[:take]...)
			r = r[take:]
		}
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}
