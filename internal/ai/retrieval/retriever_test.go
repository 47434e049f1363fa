package retrieval

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"nursemate/internal/pkg/pinecone"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeIndex struct {
	matches []pinecone.QueryMatch
	err     error
	topK    int
}

func (f *fakeIndex) Query(ctx context.Context, vector []float32, topK int) ([]pinecone.QueryMatch, error) {
	f.topK = topK
	return f.matches, f.err
}

func TestRetrieve(t *testing.T) {
	Convey("Retrieve", t, func() {
		emb := &fakeEmbedder{}
		idx := &fakeIndex{}
		r := New(emb, idx)
		ctx := context.Background()

		Convey("保留有 text 的命中并保持顺序", func() {
			idx.matches = []pinecone.QueryMatch{
				{ID: "1", Metadata: map[string]any{"text": "Hypertension is high BP."}},
				{ID: "2", Metadata: map[string]any{"source": "no text"}},
				{ID: "3", Metadata: map[string]any{"text": "   "}},
				{ID: "4", Metadata: map[string]any{"text": 42}},
				{ID: "5", Metadata: map[string]any{"text": "Normal BP is 120/80."}},
			}
			got, err := r.Retrieve(ctx, "what is hypertension", 5)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, []string{"Hypertension is high BP.", "Normal BP is 120/80."})
			So(idx.topK, ShouldEqual, 5)
		})

		Convey("无命中返回空切片", func() {
			got, err := r.Retrieve(ctx, "unknown topic", 3)
			So(err, ShouldBeNil)
			So(got, ShouldNotBeNil)
			So(len(got), ShouldEqual, 0)
		})

		Convey("topK <= 0 使用默认值", func() {
			_, _ = r.Retrieve(ctx, "q", 0)
			So(idx.topK, ShouldEqual, DefaultTopK)
		})

		Convey("空查询不调用向量化", func() {
			_, err := r.Retrieve(ctx, "  \n", 5)
			So(err, ShouldEqual, ErrEmptyQuery)
			So(emb.calls, ShouldEqual, 0)
		})

		Convey("向量化失败包装为检索错误", func() {
			emb.err = errors.New("connection refused")
			_, err := r.Retrieve(ctx, "q", 5)
			var rerr *Error
			So(errors.As(err, &rerr), ShouldBeTrue)
			So(rerr.Stage, ShouldEqual, "embed")
		})

		Convey("查询失败包装为检索错误并保留原因", func() {
			cause := &pinecone.APIError{Op: "query", StatusCode: 401}
			idx.err = cause
			_, err := r.Retrieve(ctx, "q", 5)
			var apiErr *pinecone.APIError
			So(errors.As(err, &apiErr), ShouldBeTrue)
			So(apiErr.IsAuth(), ShouldBeTrue)
		})
	})
}
