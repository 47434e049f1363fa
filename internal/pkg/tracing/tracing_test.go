package tracing

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"nursemate/internal/config"
)

func TestInit(t *testing.T) {
	Convey("未启用时返回 noop shutdown", t, func() {
		shutdown, err := Init(context.Background(), &config.TracingConfig{})
		So(err, ShouldBeNil)
		So(shutdown(context.Background()), ShouldBeNil)
		So(Tracer(), ShouldNotBeNil)
	})

	Convey("采样率限制在 [0,1]", t, func() {
		So(clampRatio(-1), ShouldEqual, 0)
		So(clampRatio(0.25), ShouldEqual, 0.25)
		So(clampRatio(3), ShouldEqual, 1)
	})
}
