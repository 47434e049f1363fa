package model

// 流式事件，序列化后作为 SSE data 行发送

// Stream status values
const (
	StatusConnected    = "connected"
	StatusProcessing   = "processing"
	StatusContextReady = "context_ready"
)

// Delta types
const (
	DeltaToken    = "token"
	DeltaComplete = "complete"
	DeltaError    = "error"
)

// StatusEvent 进度事件
type StatusEvent struct {
	Status string `json:"status"`
}

// ContextReadyEvent 上下文准备完成
type ContextReadyEvent struct {
	Status         string `json:"status"`
	Mode           string `json:"mode"`
	ContextSources int    `json:"contextSources"`
}

// DeltaEvent 答案片段
type DeltaEvent struct {
	Delta string `json:"delta"`
	Type  string `json:"type"`
}

// DoneEvent 正常结束（终止事件）
type DoneEvent struct {
	Done           bool   `json:"done"`
	FinalLength    int    `json:"finalLength"`
	Mode           string `json:"mode"`
	ContextSources int    `json:"contextSources"`
}

// ErrorEvent 内部错误（终止事件）
type ErrorEvent struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

// InternalErrorEvent 固定的内部错误事件
func InternalErrorEvent() ErrorEvent {
	return ErrorEvent{Error: "Internal server error", Type: "error"}
}
