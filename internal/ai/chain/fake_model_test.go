package chain

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// fakeChatModel 可编排的 ChatModel
type fakeChatModel struct {
	mu sync.Mutex

	chunks    []string
	full      string
	err       error // Generate / Stream 直接返回的错误
	streamErr error // 发送完 chunks 后在流中返回的错误

	inputs         [][]*schema.Message
	generateCalls  int
	streamingCalls int
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateCalls++
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.full, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.mu.Lock()
	f.streamingCalls++
	f.inputs = append(f.inputs, input)
	chunks, streamErr, err := f.chunks, f.streamErr, f.err
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}

	sr, sw := schema.Pipe[*schema.Message](len(chunks) + 1)
	go func() {
		defer sw.Close()
		for _, c := range chunks {
			if closed := sw.Send(schema.AssistantMessage(c, nil), nil); closed {
				return
			}
		}
		if streamErr != nil {
			sw.Send(nil, streamErr)
		}
	}()
	return sr, nil
}

func (f *fakeChatModel) lastInput() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return nil
	}
	return f.inputs[len(f.inputs)-1]
}
