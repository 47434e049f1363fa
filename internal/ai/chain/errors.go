package chain

import "fmt"

// GenerationError 模型调用失败（包括流式中途失败）
type GenerationError struct {
	Op  string // prompt, generate, stream
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation %s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
