package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/smartystreets/goconvey/convey"

	"nursemate/internal/model"
	"nursemate/internal/pkg/ctxutil"
	"nursemate/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAsker struct {
	calls int
	in    service.AskInput
	run   func(em service.Emitter) error
}

func (f *fakeAsker) Ask(_ context.Context, in service.AskInput, em service.Emitter) (*service.AskResult, error) {
	f.calls++
	f.in = in
	if f.run != nil {
		if err := f.run(em); err != nil {
			return nil, err
		}
	}
	return &service.AskResult{}, nil
}

type fakeReader struct {
	items    []model.ConversationItem
	messages []model.MessageItem
	ctxResp  *model.ContextResponse
	err      error
	userID   string
}

func (f *fakeReader) List(_ context.Context, userID string, _, _ int64) ([]model.ConversationItem, error) {
	f.userID = userID
	return f.items, f.err
}

func (f *fakeReader) Messages(_ context.Context, userID, _ string) ([]model.MessageItem, error) {
	f.userID = userID
	return f.messages, f.err
}

func (f *fakeReader) Context(_ context.Context, userID string) (*model.ContextResponse, error) {
	f.userID = userID
	return f.ctxResp, f.err
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

// withUser 模拟认证中间件
func withUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(ctxutil.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// parseEvents 解析 data-only SSE 响应
func parseEvents(body string) []map[string]any {
	var out []map[string]any
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if !strings.HasPrefix(block, "data: ") {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(block, "data: ")), &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

func TestChatHandler(t *testing.T) {
	Convey("ChatHandler", t, func() {
		asker := &fakeAsker{}
		h := NewChatHandler(asker, nil, 0)
		r := gin.New()
		r.Use(withUser("u1"))
		r.GET("/stream", h.StreamGet)
		r.POST("/stream", h.StreamPost)

		Convey("GET 输出 SSE 事件", func() {
			asker.run = func(em service.Emitter) error {
				_ = em.Emit(model.StatusEvent{Status: model.StatusConnected})
				_ = em.Emit(model.DeltaEvent{Delta: "Hi", Type: model.DeltaToken})
				return em.Finish(model.DoneEvent{Done: true, FinalLength: 2, Mode: "general"})
			}
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/stream?question=Hello&conversationId=c1", nil)
			r.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "text/event-stream")
			So(asker.in.UserID, ShouldEqual, "u1")
			So(asker.in.Question, ShouldEqual, "Hello")
			So(asker.in.ConversationID, ShouldEqual, "c1")

			events := parseEvents(w.Body.String())
			So(len(events), ShouldEqual, 3)
			So(events[0]["status"], ShouldEqual, "connected")
			So(events[2]["done"], ShouldEqual, true)
		})

		Convey("POST 使用 JSON body", func() {
			asker.run = func(em service.Emitter) error {
				return em.Finish(model.DoneEvent{Done: true})
			}
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/stream",
				strings.NewReader(`{"question":"Q","conversation_id":"c9"}`))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusOK)
			So(asker.in.ConversationID, ShouldEqual, "c9")
		})

		Convey("缺少字段返回 400 且不进入流", func() {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/stream?question=%20%20&conversationId=c1", nil)
			r.ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			So(w.Body.String(), ShouldContainSubstring, `"code":40001`)
			So(asker.calls, ShouldEqual, 0)
		})

		Convey("conversationId 不合法返回 40002", func() {
			w := httptest.NewRecorder()
			long := strings.Repeat("x", 200)
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream?question=Q&conversationId="+long, nil))

			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, `"code":40002`)
			So(w.Body.String(), ShouldContainSubstring, "Invalid conversationId")
			So(asker.calls, ShouldEqual, 0)
		})

		Convey("服务返回错误且未结束时补发内部错误", func() {
			asker.run = func(em service.Emitter) error {
				_ = em.Emit(model.StatusEvent{Status: model.StatusConnected})
				return errors.New("boom")
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream?question=Q&conversationId=c1", nil))

			events := parseEvents(w.Body.String())
			So(len(events), ShouldEqual, 2)
			So(events[1]["error"], ShouldEqual, "Internal server error")
			So(events[1]["type"], ShouldEqual, "error")
		})

		Convey("panic 时写出终止错误事件", func() {
			asker.run = func(em service.Emitter) error {
				_ = em.Emit(model.StatusEvent{Status: model.StatusConnected})
				panic("unexpected")
			}
			w := httptest.NewRecorder()
			So(func() {
				r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream?question=Q&conversationId=c1", nil))
			}, ShouldNotPanic)

			events := parseEvents(w.Body.String())
			So(events[len(events)-1]["error"], ShouldEqual, "Internal server error")
		})

		Convey("已结束的流不会写第二个终止事件", func() {
			asker.run = func(em service.Emitter) error {
				_ = em.Finish(model.InternalErrorEvent())
				return errors.New("persist failed")
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream?question=Q&conversationId=c1", nil))
			So(len(parseEvents(w.Body.String())), ShouldEqual, 1)
		})
	})
}

func TestChatHandlerKeepAlive(t *testing.T) {
	Convey("问答期间写出心跳", t, func() {
		asker := &fakeAsker{run: func(em service.Emitter) error {
			_ = em.Emit(model.StatusEvent{Status: model.StatusConnected})
			time.Sleep(60 * time.Millisecond)
			return em.Finish(model.DoneEvent{Done: true})
		}}
		r := gin.New()
		r.Use(withUser("u1"))
		r.GET("/stream", NewChatHandler(asker, nil, 10*time.Millisecond).StreamGet)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream?question=Q&conversationId=c1", nil))

		body := w.Body.String()
		So(body, ShouldContainSubstring, ": keep-alive\n\n")
		events := parseEvents(body)
		So(len(events), ShouldEqual, 2)
		So(events[1]["done"], ShouldEqual, true)
		So(strings.HasSuffix(body, ": keep-alive\n\n"), ShouldBeFalse)
	})

	Convey("间隔为 0 时不写心跳", t, func() {
		asker := &fakeAsker{run: func(em service.Emitter) error {
			time.Sleep(20 * time.Millisecond)
			return em.Finish(model.DoneEvent{Done: true})
		}}
		r := gin.New()
		r.Use(withUser("u1"))
		r.GET("/stream", NewChatHandler(asker, nil, 0).StreamGet)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream?question=Q&conversationId=c1", nil))
		So(w.Body.String(), ShouldNotContainSubstring, "keep-alive")
	})
}

func TestConversationHandler(t *testing.T) {
	Convey("ConversationHandler", t, func() {
		reader := &fakeReader{}
		h := NewConversationHandler(reader)
		r := gin.New()
		r.Use(withUser("u1"))
		r.GET("/conversations", h.List)
		r.GET("/conversations/:conversationId/messages", h.Messages)
		r.GET("/messages", h.MessagesByQuery)
		r.GET("/context", h.Context)

		Convey("列表", func() {
			reader.items = []model.ConversationItem{{ConversationID: "c1", Title: "t", CreatedAt: time.Unix(0, 0).UTC()}}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conversations", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"conversationId":"c1"`)
			So(reader.userID, ShouldEqual, "u1")
		})

		Convey("消息 path 与 query 两种形式", func() {
			reader.messages = []model.MessageItem{{Role: model.RoleUser, Content: "q"}}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conversations/c1/messages", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"role":"user"`)

			w = httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/messages?conversationId=c1", nil))
			So(w.Code, ShouldEqual, http.StatusOK)

			w = httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/messages", nil))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("不存在的对话返回 404", func() {
			reader.err = service.ErrConversationNotFound
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conversations/c1/messages", nil))
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(w.Body.String(), ShouldContainSubstring, `"code":40401`)
		})

		Convey("上下文缓存不可用返回 503", func() {
			reader.err = service.ErrContextUnavailable
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/context", nil))
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("其他错误返回 500", func() {
			reader.err = errors.New("mongo down")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conversations", nil))
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(w.Body.String(), ShouldNotContainSubstring, "mongo down")
		})
	})
}

func TestHealthHandler(t *testing.T) {
	Convey("HealthHandler", t, func() {
		Convey("依赖全部可用", func() {
			h := NewHealthHandler(map[string]Pinger{"mongo": fakePinger{}, "redis": nil})
			r := gin.New()
			r.GET("/ready", h.Ready)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"redis":"disabled"`)
		})

		Convey("依赖失败返回 503", func() {
			h := NewHealthHandler(map[string]Pinger{"mongo": fakePinger{err: errors.New("no primary")}})
			r := gin.New()
			r.GET("/ready", h.Ready)
			r.GET("/health", h.Health)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)

			w = httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
		})
	})
}
