package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nursemate"

// ErrorKind 错误分类标签
type ErrorKind string

const (
	ErrorRetrieval  ErrorKind = "retrieval"
	ErrorGeneration ErrorKind = "generation"
	ErrorDurable    ErrorKind = "durable_write"
	ErrorOwnership  ErrorKind = "ownership_conflict"
	ErrorAdvisory   ErrorKind = "advisory"
	ErrorBackground ErrorKind = "background"
	ErrorPanic      ErrorKind = "panic"
)

// ChatMetrics 流式问答指标
// 所有方法对 nil 接收者安全，未启用指标时可直接传 nil
type ChatMetrics struct {
	requestsTotal      *prometheus.CounterVec
	streamDuration     *prometheus.HistogramVec
	timeToFirstToken   prometheus.Histogram
	activeStreams      prometheus.Gauge
	tokensTotal        prometheus.Counter
	errorsTotal        *prometheus.CounterVec
	retrievedSnippets  prometheus.Histogram
	backgroundTasks    *prometheus.CounterVec
	clientDisconnected prometheus.Counter
}

// New 在给定 registry 上注册指标
func New(reg prometheus.Registerer) *ChatMetrics {
	f := promauto.With(reg)
	return &ChatMetrics{
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Accepted chat stream requests by terminal status.",
		}, []string{"status"}),
		streamDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "stream_duration_seconds",
			Help:      "Wall time from accepting the request to the terminal event.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"status"}),
		timeToFirstToken: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "time_to_first_token_seconds",
			Help:      "Latency until the first answer token is written.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		activeStreams: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "active_streams",
			Help:      "Currently open chat streams.",
		}),
		tokensTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "tokens_streamed_total",
			Help:      "Answer fragments streamed to clients.",
		}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "errors_total",
			Help:      "Pipeline failures by kind.",
		}, []string{"kind"}),
		retrievedSnippets: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "snippets",
			Help:      "Snippets returned per retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 10},
		}),
		backgroundTasks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "tasks_total",
			Help:      "Background tasks by result (ok, error, dropped).",
		}, []string{"result"}),
		clientDisconnected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "client_disconnects_total",
			Help:      "Streams abandoned by the client before the terminal event.",
		}),
	}
}

// StreamStarted 记录流开始，返回结束回调
func (m *ChatMetrics) StreamStarted() func(status string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	m.activeStreams.Inc()
	return func(status string) {
		m.activeStreams.Dec()
		m.requestsTotal.WithLabelValues(status).Inc()
		m.streamDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
}

// FirstToken 记录首 token 延迟
func (m *ChatMetrics) FirstToken(d time.Duration) {
	if m == nil {
		return
	}
	m.timeToFirstToken.Observe(d.Seconds())
}

// Token 记录一个流式片段
func (m *ChatMetrics) Token() {
	if m == nil {
		return
	}
	m.tokensTotal.Inc()
}

// Error 记录一次失败
func (m *ChatMetrics) Error(kind ErrorKind) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(string(kind)).Inc()
}

// Snippets 记录检索片段数
func (m *ChatMetrics) Snippets(n int) {
	if m == nil {
		return
	}
	m.retrievedSnippets.Observe(float64(n))
}

// Task 记录后台任务结果
func (m *ChatMetrics) Task(result string) {
	if m == nil {
		return
	}
	m.backgroundTasks.WithLabelValues(result).Inc()
}

// ClientDisconnect 记录客户端中途断开
func (m *ChatMetrics) ClientDisconnect() {
	if m == nil {
		return
	}
	m.clientDisconnected.Inc()
}
