package taskqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"nursemate/internal/config"
	"nursemate/internal/pkg/metrics"
)

// Task 后台任务
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// TaskError 任务失败记录
type TaskError struct {
	Task     string
	Err      error
	Duration time.Duration
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s: %v", e.Task, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// Option 队列选项
type Option func(*Queue)

// WithMetrics 记录任务结果指标
func WithMetrics(m *metrics.ChatMetrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// WithErrorHandler 在记录日志之后额外处理失败
func WithErrorHandler(fn func(*TaskError)) Option {
	return func(q *Queue) { q.onError = fn }
}

// Queue 有界后台任务队列
// Submit 永不阻塞：缓冲区满或已关闭时丢弃任务。
// 失败发送到错误通道，由单独的 goroutine 记录日志。
type Queue struct {
	tasks   chan Task
	errs    chan *TaskError
	timeout time.Duration
	metrics *metrics.ChatMetrics
	onError func(*TaskError)

	mu     sync.RWMutex
	closed bool

	workers   sync.WaitGroup
	closeErrs sync.Once
	drained   chan struct{}
}

// New 创建并启动队列
func New(cfg *config.QueueConfig, opts ...Option) *Queue {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 64
	}

	q := &Queue{
		tasks:   make(chan Task, buffer),
		errs:    make(chan *TaskError, buffer),
		timeout: cfg.TaskTimeout,
		drained: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}

	go q.logErrors()
	for i := 0; i < workers; i++ {
		q.workers.Add(1)
		go q.work(i)
	}
	return q
}

// Submit 提交任务，返回是否被接受
func (q *Queue) Submit(t Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		log.Warn().Str("task", t.Name).Msg("task queue closed, dropping task")
		q.metrics.Task("dropped")
		return false
	}

	select {
	case q.tasks <- t:
		return true
	default:
		log.Warn().Str("task", t.Name).Int("buffer", cap(q.tasks)).Msg("task queue full, dropping task")
		q.metrics.Task("dropped")
		return false
	}
}

// Shutdown 停止接收任务并等待已排队任务执行完毕
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	q.closeErrs.Do(func() { close(q.errs) })
	select {
	case <-q.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) work(id int) {
	defer q.workers.Done()
	for t := range q.tasks {
		start := time.Now()
		err := q.run(t)
		if err != nil {
			q.metrics.Task("error")
			q.errs <- &TaskError{Task: t.Name, Err: err, Duration: time.Since(start)}
			continue
		}
		q.metrics.Task("ok")
		log.Debug().Int("worker", id).Str("task", t.Name).Dur("duration", time.Since(start)).Msg("task completed")
	}
}

func (q *Queue) run(t Task) (err error) {
	ctx := context.Background()
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.Run(ctx)
}

func (q *Queue) logErrors() {
	defer close(q.drained)
	for e := range q.errs {
		log.Error().Err(e.Err).Str("task", e.Task).Dur("duration", e.Duration).Msg("background task failed")
		if q.onError != nil {
			q.onError(e)
		}
	}
}
