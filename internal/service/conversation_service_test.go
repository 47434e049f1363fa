package service

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"nursemate/internal/model"
)

func TestConversationService(t *testing.T) {
	Convey("ConversationService", t, func() {
		ctx := context.Background()
		store := newMemStore()
		cache := newMemCache()
		svc := NewConversationService(store, store, cache)

		_, _ = store.FindOrCreate(ctx, "c1", "u1", "first")
		time.Sleep(time.Millisecond)
		_, _ = store.FindOrCreate(ctx, "c2", "u1", "second")
		_, _ = store.FindOrCreate(ctx, "c3", "u2", "other")
		_ = store.Create(ctx, &model.Message{ConversationID: "c1", Role: model.RoleUser, Content: "q"})
		_ = store.Create(ctx, &model.Message{ConversationID: "c1", Role: model.RoleAssistant, Content: "a"})

		Convey("List 只返回自己的对话，最新在前", func() {
			items, err := svc.List(ctx, "u1", 0, 0)
			So(err, ShouldBeNil)
			So(len(items), ShouldEqual, 2)
			So(items[0].ConversationID, ShouldEqual, "c2")
			So(items[1].Title, ShouldEqual, "first")

			items, err = svc.List(ctx, "u1", 1, 1)
			So(err, ShouldBeNil)
			So(len(items), ShouldEqual, 1)
			So(items[0].ConversationID, ShouldEqual, "c1")
		})

		Convey("Messages 按时间正序", func() {
			items, err := svc.Messages(ctx, "u1", "c1")
			So(err, ShouldBeNil)
			So(len(items), ShouldEqual, 2)
			So(items[0].Role, ShouldEqual, model.RoleUser)
			So(items[1].Content, ShouldEqual, "a")
		})

		Convey("Messages 对他人或不存在的对话返回 not found", func() {
			_, err := svc.Messages(ctx, "u2", "c1")
			So(err, ShouldEqual, ErrConversationNotFound)
			_, err = svc.Messages(ctx, "u1", "missing")
			So(err, ShouldEqual, ErrConversationNotFound)
		})

		Convey("Context 返回摘要和最近轮次", func() {
			resp, err := svc.Context(ctx, "u1")
			So(err, ShouldBeNil)
			So(resp.Summary, ShouldBeEmpty)
			So(resp.UpdatedAt, ShouldBeNil)
			So(resp.Recent, ShouldNotBeNil)
			So(len(resp.Recent), ShouldEqual, 0)

			_ = cache.SetSummary(ctx, "u1", "summary")
			_ = cache.PushTurn(ctx, "u1", model.Turn{Role: model.RoleUser, Content: "q"})
			resp, err = svc.Context(ctx, "u1")
			So(err, ShouldBeNil)
			So(resp.Summary, ShouldEqual, "summary")
			So(resp.UpdatedAt, ShouldNotBeNil)
			So(len(resp.Recent), ShouldEqual, 1)
		})

		Convey("缓存未启用时返回 ErrContextUnavailable", func() {
			cache.unavailable = true
			_, err := svc.Context(ctx, "u1")
			So(err, ShouldEqual, ErrContextUnavailable)
		})
	})
}
