package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"nursemate/internal/model"
	"nursemate/internal/pkg/ctxutil"
	httpx "nursemate/internal/pkg/http"
	"nursemate/internal/pkg/metrics"
	"nursemate/internal/pkg/sse"
	"nursemate/internal/service"
)

// Asker 流式问答
type Asker interface {
	Ask(ctx context.Context, in service.AskInput, em service.Emitter) (*service.AskResult, error)
}

// ChatHandler 对话处理器
type ChatHandler struct {
	chat      Asker
	metrics   *metrics.ChatMetrics
	keepAlive time.Duration
}

// NewChatHandler 创建对话处理器
// keepAlive > 0 时在问答期间按该间隔写出 SSE 注释行
func NewChatHandler(chat Asker, m *metrics.ChatMetrics, keepAlive time.Duration) *ChatHandler {
	return &ChatHandler{chat: chat, metrics: m, keepAlive: keepAlive}
}

// StreamGet 流式问答 (SSE, EventSource)
// @Summary      流式问答
// @Description  以 SSE 返回进度、答案片段和一个终止事件。EventSource 无法设置 header 时可以用 token 参数传递凭证
// @Tags         对话
// @Produce      text/event-stream
// @Param        question        query     string  true   "问题"
// @Param        conversationId  query     string  true   "对话ID（客户端生成）"
// @Param        token           query     string  false  "Bearer token"
// @Success      200             {string}  string  "data: {json}"
// @Failure      400             {object}  httpx.ErrorResponse  "缺少必填字段或 conversationId 不合法"
// @Failure      401             {object}  httpx.ErrorResponse  "未认证"
// @Security     BearerAuth
// @Router       /chat/stream [get]
func (h *ChatHandler) StreamGet(c *gin.Context) {
	var req model.AskRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpx.AbortWithError(c, http.StatusBadRequest, httpx.CodeMissingFields, "Invalid query parameters", err.Error())
		return
	}
	h.stream(c, &req)
}

// StreamPost 流式问答 (SSE, fetch)
// @Summary      流式问答 (POST)
// @Tags         对话
// @Accept       json
// @Produce      text/event-stream
// @Param        request  body      model.AskRequest  true  "问题与对话ID"
// @Success      200      {string}  string  "data: {json}"
// @Failure      400      {object}  httpx.ErrorResponse  "缺少必填字段或 conversationId 不合法"
// @Failure      401      {object}  httpx.ErrorResponse  "未认证"
// @Security     BearerAuth
// @Router       /chat/stream [post]
func (h *ChatHandler) StreamPost(c *gin.Context) {
	var req model.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.AbortWithError(c, http.StatusBadRequest, httpx.CodeMissingFields, "Invalid request body", err.Error())
		return
	}
	h.stream(c, &req)
}

func (h *ChatHandler) stream(c *gin.Context, req *model.AskRequest) {
	ctx := c.Request.Context()
	userID, _ := ctxutil.GetUserID(ctx)

	in := service.AskInput{
		UserID:         userID,
		Question:       req.Question,
		ConversationID: req.ConversationID,
	}
	// 校验在写响应头之前完成
	if err := in.Validate(); err != nil {
		if errors.Is(err, service.ErrInvalidConversationID) {
			httpx.AbortWithError(c, http.StatusBadRequest, httpx.CodeInvalidParam, "Invalid conversationId", err.Error())
			return
		}
		httpx.AbortWithError(c, http.StatusBadRequest, httpx.CodeMissingFields, "Missing required fields", err.Error())
		return
	}

	sse.SetHeaders(c.Writer)
	c.Status(http.StatusOK)
	stream, err := sse.NewStream(c.Writer)
	if err != nil {
		httpx.AbortWithError(c, http.StatusInternalServerError, httpx.CodeInternal, "Streaming not supported")
		return
	}

	logger := log.With().
		Str("request_id", ctxutil.GetRequestID(ctx)).
		Str("conversation_id", in.ConversationID).
		Logger()

	// 响应头已发送，panic 只能尽力写出终止事件
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("chat stream panic recovered")
			h.metrics.Error(metrics.ErrorPanic)
			if !stream.Finished() {
				_ = stream.Finish(model.InternalErrorEvent())
			}
		}
	}()

	stop := h.heartbeat(stream)
	defer stop()

	if _, err := h.chat.Ask(ctx, in, stream); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Debug().Err(err).Msg("chat stream ended by client")
		}
		if !stream.Finished() {
			_ = stream.Finish(model.InternalErrorEvent())
		}
	}
	logger.Debug().Int("events", stream.Events()).Msg("chat stream closed")
}

// heartbeat 问答期间定时写出 SSE 注释行
// 返回的 stop 会等待心跳 goroutine 退出
func (h *ChatHandler) heartbeat(stream *sse.Stream) (stop func()) {
	if h.keepAlive <= 0 {
		return func() {}
	}
	quit := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(h.keepAlive)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				if err := stream.KeepAlive(); err != nil {
					return
				}
			}
		}
	}()
	return func() {
		close(quit)
		<-exited
	}
}
