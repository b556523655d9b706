package ctxutil

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLocation(t *testing.T) {
	Convey("位置提示的注入与读取", t, func() {
		Convey("未注入时不存在", func() {
			_, ok := Location(context.Background())
			So(ok, ShouldBeFalse)
		})

		Convey("空字符串视为不存在", func() {
			_, ok := Location(WithLocation(context.Background(), ""))
			So(ok, ShouldBeFalse)
		})

		Convey("注入后可以读取", func() {
			loc, ok := Location(WithLocation(context.Background(), "/d/abc/cpu-usage"))
			So(ok, ShouldBeTrue)
			So(loc, ShouldEqual, "/d/abc/cpu-usage")
		})

		Convey("Static 使用默认值，context 中的值优先", func() {
			p := Static("/explore")
			So(p(context.Background()).LocationHint, ShouldEqual, "/explore")
			So(p(WithLocation(context.Background(), "/alerting")).LocationHint, ShouldEqual, "/alerting")
		})
	})
}
