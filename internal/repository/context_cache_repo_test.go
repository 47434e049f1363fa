package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	"nursemate/internal/model"
	"nursemate/internal/pkg/cache"
)

func TestContextCacheRepo(t *testing.T) {
	Convey("ContextCacheRepo", t, func() {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()
		repo := NewContextCacheRepo(cache.NewWithClient(client), 5)
		ctx := context.Background()

		Convey("最近轮次只保留 5 条", func() {
			for i := 0; i < 7; i++ {
				So(repo.PushTurn(ctx, "u1", model.Turn{Role: model.RoleUser, Content: fmt.Sprintf("q%d", i)}), ShouldBeNil)
			}
			turns, err := repo.RecentTurns(ctx, "u1")
			So(err, ShouldBeNil)
			So(len(turns), ShouldEqual, 5)
			So(turns[0].Content, ShouldEqual, "q2")
			So(turns[4].Content, ShouldEqual, "q6")
			So(turns[4].Timestamp.IsZero(), ShouldBeFalse)
		})

		Convey("摘要不存在时返回 nil", func() {
			s, err := repo.GetSummary(ctx, "u1")
			So(err, ShouldBeNil)
			So(s, ShouldBeNil)
		})

		Convey("摘要整体替换", func() {
			So(repo.SetSummary(ctx, "u1", "first"), ShouldBeNil)
			So(repo.SetSummary(ctx, "u1", "second"), ShouldBeNil)

			s, err := repo.GetSummary(ctx, "u1")
			So(err, ShouldBeNil)
			So(s.Summary, ShouldEqual, "second")
			So(s.UpdatedAt.IsZero(), ShouldBeFalse)
		})

		Convey("不同用户互不影响", func() {
			So(repo.SetSummary(ctx, "u1", "mine"), ShouldBeNil)
			s, err := repo.GetSummary(ctx, "u2")
			So(err, ShouldBeNil)
			So(s, ShouldBeNil)
		})
	})

	Convey("未配置 Redis 时返回 ErrCacheUnavailable", t, func() {
		repo := NewContextCacheRepo(nil, 0)
		ctx := context.Background()

		So(repo.PushTurn(ctx, "u1", model.Turn{}), ShouldEqual, ErrCacheUnavailable)
		_, err := repo.GetSummary(ctx, "u1")
		So(err, ShouldEqual, ErrCacheUnavailable)
		_, err = repo.RecentTurns(ctx, "u1")
		So(err, ShouldEqual, ErrCacheUnavailable)
		So(repo.SetSummary(ctx, "u1", "x"), ShouldEqual, ErrCacheUnavailable)
	})
}
