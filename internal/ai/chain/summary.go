package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	entity "nursemate/internal/model"
)

// SummaryChain 滚动摘要链
type SummaryChain struct {
	chatModel model.BaseChatModel
	template  *prompt.DefaultChatTemplate
}

// NewSummaryChain 创建摘要链
func NewSummaryChain(chatModel model.BaseChatModel) *SummaryChain {
	return &SummaryChain{
		chatModel: chatModel,
		template: prompt.FromMessages(schema.FString,
			schema.SystemMessage(summarySystemTemplate),
			schema.UserMessage(summaryUserTemplate),
		),
	}
}

// Summarize 将旧摘要与新消息合并为新摘要
// 没有新消息时直接返回旧摘要，不调用模型
func (c *SummaryChain) Summarize(ctx context.Context, previous string, turns []entity.Turn) (string, error) {
	if len(turns) == 0 {
		return previous, nil
	}

	prev := strings.TrimSpace(previous)
	if prev == "" {
		prev = "None"
	}

	messages, err := c.template.Format(ctx, map[string]any{
		"previous": prev,
		"messages": FormatTurns(turns),
	})
	if err != nil {
		return "", &GenerationError{Op: "prompt", Err: err}
	}

	resp, err := c.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", &GenerationError{Op: "generate", Err: err}
	}
	return strings.TrimSpace(resp.Content), nil
}

// FormatTurns 每轮一行 "role: content"
func FormatTurns(turns []entity.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("%s: %s", t.Role, t.Content))
	}
	return strings.Join(lines, "\n")
}
