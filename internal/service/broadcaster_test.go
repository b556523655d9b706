package service

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"copilot/internal/model"
)

func TestBroadcaster(t *testing.T) {
	Convey("快照广播", t, func() {
		b := newBroadcaster()
		ch, cancel := b.subscribe(model.Snapshot{ConversationID: "initial"})
		Reset(cancel)

		Convey("订阅后立即拿到初始快照", func() {
			So((<-ch).ConversationID, ShouldEqual, "initial")
		})

		Convey("未读时只保留最新快照", func() {
			for _, id := range []string{"a", "b", "c"} {
				b.publish(model.Snapshot{ConversationID: id})
			}
			So((<-ch).ConversationID, ShouldEqual, "c")
			So(len(ch), ShouldEqual, 0)
		})

		Convey("每个订阅者拿到独立的拷贝", func() {
			other, cancelOther := b.subscribe(model.Snapshot{})
			defer cancelOther()
			<-ch
			<-other

			b.publish(model.Snapshot{Messages: []model.Message{{Content: "x"}}})
			first := <-ch
			second := <-other
			first.Messages[0].Content = "changed"
			So(second.Messages[0].Content, ShouldEqual, "x")
		})

		Convey("取消后通道关闭，发布不再推送", func() {
			cancel()
			cancel()
			_, ok := <-ch
			So(ok, ShouldBeTrue)
			_, ok = <-ch
			So(ok, ShouldBeFalse)
			So(b.count(), ShouldEqual, 0)
			So(func() { b.publish(model.Snapshot{}) }, ShouldNotPanic)
		})
	})
}
