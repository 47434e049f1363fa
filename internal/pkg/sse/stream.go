package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

var (
	// ErrFinished 终止事件已写出，后续写入被丢弃
	ErrFinished = errors.New("sse: stream already finished")
	// ErrBroken 之前的写入失败（通常是客户端断开）
	ErrBroken = errors.New("sse: stream broken")
)

// SetHeaders 设置 SSE 响应头，必须在首次写入前调用
func SetHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// Stream data-only SSE 写入器
// 每个事件序列化为一行 "data: {json}\n\n" 并立即 flush。
// 至多写出一个终止事件，之后的写入全部丢弃。并发安全。
type Stream struct {
	mu       sync.Mutex
	w        http.ResponseWriter
	flusher  http.Flusher
	finished bool
	broken   bool
	events   int
}

// NewStream 创建写入器，ResponseWriter 必须支持 http.Flusher
func NewStream(w http.ResponseWriter) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("sse: ResponseWriter does not support http.Flusher")
	}
	return &Stream{w: w, flusher: flusher}, nil
}

// Emit 写出非终止事件
func (s *Stream) Emit(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(v)
}

// Finish 写出终止事件，只有第一次调用生效
func (s *Stream) Finish(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(v); err != nil {
		if errors.Is(err, ErrFinished) {
			return err
		}
		s.finished = true
		return err
	}
	s.finished = true
	return nil
}

// Finished 是否已写出终止事件
func (s *Stream) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Events 已成功写出的事件数
func (s *Stream) Events() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events
}

// KeepAlive 写出注释行，保持代理连接
func (s *Stream) KeepAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return ErrFinished
	}
	if s.broken {
		return ErrBroken
	}
	if _, err := fmt.Fprint(s.w, ": keep-alive\n\n"); err != nil {
		s.broken = true
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *Stream) write(v any) error {
	if s.finished {
		return ErrFinished
	}
	if s.broken {
		return ErrBroken
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sse: marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		s.broken = true
		return err
	}
	s.flusher.Flush()
	s.events++
	return nil
}
