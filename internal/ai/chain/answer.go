package chain

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"nursemate/internal/ai/mode"
)

const noKnowledge = "No relevant knowledge base entries were found."

// AnswerRequest 答案生成输入
type AnswerRequest struct {
	Question    string
	Snippets    []string
	ChatContext string
	Mode        mode.Mode
}

// AnswerChain 答案生成链
// 工作流: 片段 + 对话上下文 + 问题 -> Prompt模板 -> ChatModel -> 答案
type AnswerChain struct {
	chatModel model.BaseChatModel
	template  *prompt.DefaultChatTemplate
}

// NewAnswerChain 创建答案生成链
func NewAnswerChain(chatModel model.BaseChatModel) *AnswerChain {
	return &AnswerChain{
		chatModel: chatModel,
		template: prompt.FromMessages(schema.FString,
			schema.SystemMessage(answerSystemTemplate),
			schema.UserMessage(answerUserTemplate),
		),
	}
}

// Generate 生成答案
// onToken 非 nil 时使用流式调用，每个非空片段按顺序回调一次；返回完整文本。
// 流式中途失败时返回已生成的部分文本和 GenerationError。
func (c *AnswerChain) Generate(ctx context.Context, req *AnswerRequest, onToken func(string)) (string, error) {
	messages, err := c.template.Format(ctx, answerVariables(req))
	if err != nil {
		return "", &GenerationError{Op: "prompt", Err: err}
	}

	if onToken == nil {
		resp, err := c.chatModel.Generate(ctx, messages)
		if err != nil {
			return "", &GenerationError{Op: "generate", Err: err}
		}
		return resp.Content, nil
	}

	stream, err := c.chatModel.Stream(ctx, messages)
	if err != nil {
		return "", &GenerationError{Op: "stream", Err: err}
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sb.String(), &GenerationError{Op: "stream", Err: err}
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		sb.WriteString(chunk.Content)
		onToken(chunk.Content)
	}
	return sb.String(), nil
}

func answerVariables(req *AnswerRequest) map[string]any {
	knowledge := strings.Join(req.Snippets, "\n\n")
	if strings.TrimSpace(knowledge) == "" {
		knowledge = noKnowledge
	}
	m := req.Mode
	if m == "" {
		m = mode.General
	}
	return map[string]any{
		"mode":             string(m),
		"mode_instruction": m.Instruction(),
		"knowledge":        knowledge,
		"chat_context":     req.ChatContext,
		"question":         req.Question,
	}
}
