package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"nursemate/internal/model"
	"nursemate/internal/pkg/ctxutil"
	httpx "nursemate/internal/pkg/http"
	"nursemate/internal/service"
)

// ConversationReader 对话查询
type ConversationReader interface {
	List(ctx context.Context, userID string, limit, offset int64) ([]model.ConversationItem, error)
	Messages(ctx context.Context, userID, conversationID string) ([]model.MessageItem, error)
	Context(ctx context.Context, userID string) (*model.ContextResponse, error)
}

// ConversationHandler 对话管理处理器
type ConversationHandler struct {
	svc ConversationReader
}

// NewConversationHandler 创建对话管理处理器
func NewConversationHandler(svc ConversationReader) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// List 对话列表
// @Summary      对话列表
// @Description  返回当前用户的对话，按创建时间倒序
// @Tags         对话
// @Produce      json
// @Param        limit   query     int  false  "每页数量（默认50，最大200）"
// @Param        offset  query     int  false  "偏移量"
// @Success      200     {array}   model.ConversationItem
// @Failure      401     {object}  httpx.ErrorResponse  "未认证"
// @Failure      500     {object}  httpx.ErrorResponse  "服务器内部错误"
// @Security     BearerAuth
// @Router       /chat/conversations [get]
func (h *ConversationHandler) List(c *gin.Context) {
	var q model.ListConversationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpx.AbortWithError(c, http.StatusBadRequest, httpx.CodeMissingFields, "Invalid query parameters", err.Error())
		return
	}
	userID, _ := ctxutil.GetUserID(c.Request.Context())

	items, err := h.svc.List(c.Request.Context(), userID, q.Limit, q.Offset)
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// Messages 对话消息
// @Summary      对话消息
// @Description  返回对话的全部消息，按时间正序；只能读取自己的对话
// @Tags         对话
// @Produce      json
// @Param        conversationId  path      string  true  "对话ID"
// @Success      200             {array}   model.MessageItem
// @Failure      401             {object}  httpx.ErrorResponse  "未认证"
// @Failure      404             {object}  httpx.ErrorResponse  "对话不存在"
// @Security     BearerAuth
// @Router       /chat/conversations/{conversationId}/messages [get]
func (h *ConversationHandler) Messages(c *gin.Context) {
	h.messages(c, c.Param("conversationId"))
}

// MessagesByQuery 对话消息（旧版查询参数形式）
// @Summary      对话消息 (legacy)
// @Tags         对话
// @Produce      json
// @Param        conversationId  query     string  true  "对话ID"
// @Success      200             {array}   model.MessageItem
// @Failure      400             {object}  httpx.ErrorResponse  "缺少 conversationId"
// @Failure      404             {object}  httpx.ErrorResponse  "对话不存在"
// @Security     BearerAuth
// @Router       /chat/messages [get]
func (h *ConversationHandler) MessagesByQuery(c *gin.Context) {
	var q model.ListMessagesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpx.AbortWithError(c, http.StatusBadRequest, httpx.CodeMissingFields, "conversationId is required", err.Error())
		return
	}
	h.messages(c, q.ConversationID)
}

func (h *ConversationHandler) messages(c *gin.Context, conversationID string) {
	userID, _ := ctxutil.GetUserID(c.Request.Context())

	items, err := h.svc.Messages(c.Request.Context(), userID, conversationID)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			httpx.AbortWithError(c, http.StatusNotFound, httpx.CodeNotFound, "Conversation not found")
			return
		}
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// Context 用户上下文
// @Summary      用户上下文
// @Description  返回当前用户的滚动摘要和最近轮次
// @Tags         对话
// @Produce      json
// @Success      200  {object}  model.ContextResponse
// @Failure      401  {object}  httpx.ErrorResponse  "未认证"
// @Failure      503  {object}  httpx.ErrorResponse  "缓存未启用"
// @Security     BearerAuth
// @Router       /chat/context [get]
func (h *ConversationHandler) Context(c *gin.Context) {
	userID, _ := ctxutil.GetUserID(c.Request.Context())

	resp, err := h.svc.Context(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrContextUnavailable) {
			httpx.AbortWithError(c, http.StatusServiceUnavailable, httpx.CodeUnavailable, "Context cache not available")
			return
		}
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ConversationHandler) internalError(c *gin.Context, err error) {
	log.Error().Err(err).
		Str("request_id", ctxutil.GetRequestID(c.Request.Context())).
		Str("path", c.FullPath()).
		Msg("conversation query failed")
	httpx.AbortWithError(c, http.StatusInternalServerError, httpx.CodeInternal, "Internal server error")
}
