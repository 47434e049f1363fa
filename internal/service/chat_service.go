package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"nursemate/internal/ai/chain"
	"nursemate/internal/ai/mode"
	"nursemate/internal/config"
	"nursemate/internal/model"
	"nursemate/internal/pkg/ctxutil"
	"nursemate/internal/pkg/id"
	"nursemate/internal/pkg/metrics"
	"nursemate/internal/pkg/taskqueue"
	"nursemate/internal/pkg/tracing"
	"nursemate/internal/repository"
)

const (
	// ApologyAnswer 生成失败时的固定回答
	ApologyAnswer = "I apologize, but I'm having trouble processing your request right now. Please try again."
	// FallbackAnswer 模型返回空白时的回答
	FallbackAnswer = "I don't know."
	// DefaultTitle 问题为空时的标题
	DefaultTitle = "New Chat"

	defaultHistoryLimit   = 20
	defaultTitleMaxLength = 40
	defaultTokenBuffer    = 64
	defaultSummaryTimeout = 60 * time.Second
)

// ChatDeps 对话服务依赖
// Retriever 与 Tasks 可以为 nil：分别表示检索关闭和不做后台摘要
type ChatDeps struct {
	Conversations ConversationStore
	Messages      MessageStore
	Cache         ContextCache
	Retriever     Retriever
	Answer        AnswerGenerator
	Summarizer    Summarizer
	Tasks         TaskSubmitter
	Metrics       *metrics.ChatMetrics
}

// ChatService 对话服务 - 业务逻辑层
// 职责: 编排检索、生成、持久化和后台摘要，本身不持有状态
type ChatService struct {
	deps ChatDeps

	topK           int
	historyLimit   int64
	titleMaxLength int
	tokenBuffer    int
	summaryTimeout time.Duration
}

// NewChatService 创建对话服务
func NewChatService(deps ChatDeps, cfg *config.ChatConfig) *ChatService {
	s := &ChatService{
		deps:           deps,
		topK:           cfg.TopK,
		historyLimit:   cfg.HistoryLimit,
		titleMaxLength: cfg.TitleMaxLength,
		tokenBuffer:    cfg.TokenBuffer,
		summaryTimeout: cfg.SummaryTimeout,
	}
	if s.historyLimit <= 0 {
		s.historyLimit = defaultHistoryLimit
	}
	if s.titleMaxLength <= 0 {
		s.titleMaxLength = defaultTitleMaxLength
	}
	if s.tokenBuffer <= 0 {
		s.tokenBuffer = defaultTokenBuffer
	}
	if s.summaryTimeout <= 0 {
		s.summaryTimeout = defaultSummaryTimeout
	}
	return s
}

// AskInput 提问输入
type AskInput struct {
	UserID         string
	Question       string
	ConversationID string
}

// AskResult 一次问答的结果
type AskResult struct {
	ConversationID string
	Answer         string
	Mode           mode.Mode
	ContextSources int
	FinalLength    int
}

// Validate 校验并规范化输入
func (in *AskInput) Validate() error {
	in.UserID = strings.TrimSpace(in.UserID)
	in.Question = strings.TrimSpace(in.Question)
	in.ConversationID = strings.TrimSpace(in.ConversationID)
	if in.UserID == "" || in.Question == "" || in.ConversationID == "" {
		return ErrMissingFields
	}
	if !id.IsValidExternal(in.ConversationID) {
		return ErrInvalidConversationID
	}
	return nil
}

// Ask 处理一次提问并把事件写入 em
// 校验失败时不写任何事件直接返回；校验通过后保证恰好写出一个终止事件，
// 客户端中途断开的情况除外（此时返回 context 错误，不落库部分答案）。
// 业务流程:
//  1. connected -> 2. 缓存用户轮次 -> 3. find-or-create 对话并保存用户消息
//  4. 读取最近窗口 -> 5. 读取摘要 -> 6. 并行分类与检索 -> 7. context_ready
//  8. 流式生成 -> 9. 保存回答 -> 10. 首轮更新标题 -> 11. 缓存回答轮次
//  12. done -> 13. 后台更新摘要
func (s *ChatService) Ask(ctx context.Context, in AskInput, em Emitter) (*AskResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracing.Tracer().Start(ctx, "chat.ask", trace.WithAttributes(
		attribute.String("conversation.id", in.ConversationID),
	))
	defer span.End()

	logger := log.With().
		Str("request_id", ctxutil.GetRequestID(ctx)).
		Str("user_id", in.UserID).
		Str("conversation_id", in.ConversationID).
		Logger()

	start := time.Now()
	status := "error"
	finished := s.deps.Metrics.StreamStarted()
	defer func() { finished(status) }()

	fail := func(stage string, kind metrics.ErrorKind, err error) error {
		logger.Error().Err(err).Str("stage", stage).Msg("chat pipeline failed")
		s.deps.Metrics.Error(kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		_ = em.Finish(model.InternalErrorEvent())
		return fmt.Errorf("%s: %w", stage, err)
	}

	// 1. 连接确认
	_ = em.Emit(model.StatusEvent{Status: model.StatusConnected})

	// 2. 缓存用户轮次（可失败）
	s.pushTurn(ctx, logger, in.UserID, model.RoleUser, in.Question)

	// 3. 对话与用户消息（必须成功）
	title := TitleFromQuestion(in.Question, s.titleMaxLength)
	if _, err := s.deps.Conversations.FindOrCreate(ctx, in.ConversationID, in.UserID, title); err != nil {
		if errors.Is(err, repository.ErrNotOwner) {
			return nil, fail("find or create conversation", metrics.ErrorOwnership, err)
		}
		return nil, fail("find or create conversation", metrics.ErrorDurable, err)
	}
	userMsg := &model.Message{ConversationID: in.ConversationID, Role: model.RoleUser, Content: in.Question}
	if err := s.deps.Messages.Create(ctx, userMsg); err != nil {
		return nil, fail("persist user message", metrics.ErrorDurable, err)
	}

	// 4. 最近窗口
	window, err := s.deps.Messages.ListRecent(ctx, in.ConversationID, s.historyLimit)
	if err != nil {
		return nil, fail("load recent messages", metrics.ErrorDurable, err)
	}
	_ = em.Emit(model.StatusEvent{Status: model.StatusProcessing})

	// 5. 滚动摘要（缺失或失败视为空）
	previousSummary := s.loadSummary(ctx, logger, in.UserID)

	// 6. 分类与检索
	answerMode, snippets := s.classifyAndRetrieve(ctx, logger, in.Question)
	span.SetAttributes(
		attribute.String("chat.mode", string(answerMode)),
		attribute.Int("chat.context_sources", len(snippets)),
	)

	// 7. 上下文就绪
	_ = em.Emit(model.ContextReadyEvent{
		Status:         model.StatusContextReady,
		Mode:           string(answerMode),
		ContextSources: len(snippets),
	})

	// 8. 生成
	answer, genErr := s.stream(ctx, em, start, &chain.AnswerRequest{
		Question:    in.Question,
		Snippets:    snippets,
		ChatContext: BuildChatContext(previousSummary, window),
		Mode:        answerMode,
	})
	if ctx.Err() != nil {
		// 客户端已断开，不保存部分答案
		status = "disconnected"
		s.deps.Metrics.ClientDisconnect()
		logger.Info().Msg("client disconnected during generation, answer discarded")
		return nil, ctx.Err()
	}
	if genErr != nil {
		logger.Error().Err(genErr).Msg("answer generation failed")
		s.deps.Metrics.Error(metrics.ErrorGeneration)
		span.RecordError(genErr)
		answer = ApologyAnswer
		_ = em.Emit(model.DeltaEvent{Delta: ApologyAnswer, Type: model.DeltaError})
	}

	// 9. 保存回答
	final := strings.TrimSpace(answer)
	if final == "" {
		final = FallbackAnswer
	}
	assistantMsg := &model.Message{ConversationID: in.ConversationID, Role: model.RoleAssistant, Content: final}
	if err := s.deps.Messages.Create(ctx, assistantMsg); err != nil {
		return nil, fail("persist assistant message", metrics.ErrorDurable, err)
	}

	// 10. 首轮对话更新标题（可失败）
	if len(window) <= 1 {
		if err := s.deps.Conversations.UpdateTitle(ctx, in.ConversationID, title); err != nil {
			logger.Warn().Err(err).Msg("failed to update conversation title")
			s.deps.Metrics.Error(metrics.ErrorAdvisory)
		}
	}

	// 11. 缓存回答轮次（可失败）
	s.pushTurn(ctx, logger, in.UserID, model.RoleAssistant, final)

	// 12. 终止事件
	result := &AskResult{
		ConversationID: in.ConversationID,
		Answer:         final,
		Mode:           answerMode,
		ContextSources: len(snippets),
		FinalLength:    utf8.RuneCountInString(final),
	}
	_ = em.Finish(model.DoneEvent{
		Done:           true,
		FinalLength:    result.FinalLength,
		Mode:           string(result.Mode),
		ContextSources: result.ContextSources,
	})
	status = "done"

	// 13. 后台摘要
	turns := make([]model.Turn, 0, len(window)+1)
	for _, m := range window {
		turns = append(turns, model.TurnFromMessage(m))
	}
	turns = append(turns, model.TurnFromMessage(assistantMsg))
	s.scheduleSummary(logger, in.UserID, previousSummary, turns)

	logger.Info().
		Str("mode", string(answerMode)).
		Int("context_sources", len(snippets)).
		Int("final_length", result.FinalLength).
		Dur("duration", time.Since(start)).
		Msg("chat completed")
	return result, nil
}

// stream 生产者/消费者：生成 goroutine 把 token 写入有界通道，
// 当前 goroutine 负责写 SSE，保证写入顺序与生成顺序一致
func (s *ChatService) stream(ctx context.Context, em Emitter, start time.Time, req *chain.AnswerRequest) (string, error) {
	ctx, span := tracing.Tracer().Start(ctx, "chat.generate")
	defer span.End()

	type result struct {
		text string
		err  error
	}
	tokens := make(chan string, s.tokenBuffer)
	done := make(chan result, 1)

	go func() {
		defer close(tokens)
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("answer generator panic: %v", r)}
			}
		}()
		text, err := s.deps.Answer.Generate(ctx, req, func(tok string) {
			select {
			case tokens <- tok:
			case <-ctx.Done():
			}
		})
		done <- result{text: text, err: err}
	}()

	var acc strings.Builder
	streamed := 0
	for tok := range tokens {
		if streamed == 0 {
			s.deps.Metrics.FirstToken(time.Since(start))
		}
		streamed++
		acc.WriteString(tok)
		s.deps.Metrics.Token()
		_ = em.Emit(model.DeltaEvent{Delta: tok, Type: model.DeltaToken})
	}
	res := <-done
	span.SetAttributes(attribute.Int("chat.tokens", streamed))

	if res.err != nil {
		span.RecordError(res.err)
		return acc.String(), res.err
	}
	if streamed == 0 && strings.TrimSpace(res.text) != "" {
		_ = em.Emit(model.DeltaEvent{Delta: res.text, Type: model.DeltaComplete})
		return res.text, nil
	}
	return acc.String(), nil
}

func (s *ChatService) classifyAndRetrieve(ctx context.Context, logger zerolog.Logger, question string) (mode.Mode, []string) {
	var (
		g          errgroup.Group
		answerMode mode.Mode
		snippets   = []string{}
	)

	g.Go(func() error {
		answerMode = mode.Classify(question)
		return nil
	})
	g.Go(func() error {
		if s.deps.Retriever == nil {
			return nil
		}
		rctx, span := tracing.Tracer().Start(ctx, "chat.retrieve")
		defer span.End()

		found, err := s.deps.Retriever.Retrieve(rctx, question, s.topK)
		if err != nil {
			// 检索失败不影响回答
			logger.Warn().Err(err).Msg("retrieval failed, answering without knowledge base")
			s.deps.Metrics.Error(metrics.ErrorRetrieval)
			span.RecordError(err)
			return nil
		}
		snippets = found
		return nil
	})
	_ = g.Wait()

	s.deps.Metrics.Snippets(len(snippets))
	return answerMode, snippets
}

func (s *ChatService) loadSummary(ctx context.Context, logger zerolog.Logger, userID string) string {
	summary, err := s.deps.Cache.GetSummary(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrCacheUnavailable) {
			logger.Warn().Err(err).Msg("failed to load rolling summary")
			s.deps.Metrics.Error(metrics.ErrorAdvisory)
		}
		return ""
	}
	if summary == nil {
		return ""
	}
	return summary.Summary
}

func (s *ChatService) pushTurn(ctx context.Context, logger zerolog.Logger, userID string, role model.Role, content string) {
	err := s.deps.Cache.PushTurn(ctx, userID, model.Turn{Role: role, Content: content, Timestamp: time.Now().UTC()})
	if err != nil && !errors.Is(err, repository.ErrCacheUnavailable) {
		logger.Warn().Err(err).Str("role", string(role)).Msg("failed to cache recent turn")
		s.deps.Metrics.Error(metrics.ErrorAdvisory)
	}
}

// scheduleSummary 提交后台摘要任务，与请求生命周期无关
func (s *ChatService) scheduleSummary(logger zerolog.Logger, userID, previous string, turns []model.Turn) {
	if s.deps.Tasks == nil || s.deps.Summarizer == nil {
		return
	}
	taskLogger := logger.With().Str("task", "rolling_summary").Logger()

	s.deps.Tasks.Submit(taskqueue.Task{
		Name: "rolling_summary:" + userID,
		Run: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, s.summaryTimeout)
			defer cancel()

			summary, err := s.deps.Summarizer.Summarize(ctx, previous, turns)
			if err != nil {
				s.deps.Metrics.Error(metrics.ErrorBackground)
				return fmt.Errorf("summarize: %w", err)
			}
			if err := s.deps.Cache.SetSummary(ctx, userID, summary); err != nil {
				if errors.Is(err, repository.ErrCacheUnavailable) {
					return nil
				}
				s.deps.Metrics.Error(metrics.ErrorBackground)
				return fmt.Errorf("store summary: %w", err)
			}
			taskLogger.Debug().Int("summary_length", utf8.RuneCountInString(summary)).Msg("rolling summary updated")
			return nil
		},
	})
}

// TitleFromQuestion 取问题前 maxRunes 个字符作为标题，为空时返回默认标题
func TitleFromQuestion(question string, maxRunes int) string {
	q := strings.TrimSpace(question)
	if maxRunes > 0 && utf8.RuneCountInString(q) > maxRunes {
		q = strings.TrimSpace(string([]rune(q)[:maxRunes]))
	}
	if q == "" {
		return DefaultTitle
	}
	return q
}

// BuildChatContext 拼接滚动摘要与最近消息
func BuildChatContext(summary string, window []*model.Message) string {
	if strings.TrimSpace(summary) == "" {
		summary = "No summary yet"
	}
	lines := make([]string, 0, len(window))
	for _, m := range window {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	return "Summary of older chats:\n" + summary + "\n\nRecent conversation:\n" + strings.Join(lines, "\n")
}
