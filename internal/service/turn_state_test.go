package service

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"copilot/internal/model"
)

func TestTurnStateTransitions(t *testing.T) {
	Convey("状态转换", t, func() {
		now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		base := newTurnState("conv-1", now)
		user := model.Message{ID: "u1", Role: model.RoleUser, Content: "why is p99 latency high?"}
		assistant := model.Message{ID: "a1", Role: model.RoleAssistant}

		s := userSubmitted(base, user, assistant)

		Convey("userSubmitted 追加两条消息并进入 streaming", func() {
			So(len(s.messages), ShouldEqual, 2)
			So(s.streaming, ShouldBeTrue)
			So(s.assistantID, ShouldEqual, "a1")
			So(base.messages, ShouldBeEmpty)
			So(base.streaming, ShouldBeFalse)
		})

		Convey("contentDelta 只修改本轮 assistant 消息", func() {
			next := contentDelta(s, "Looking")
			So(next.messages[1].Content, ShouldEqual, "Looking")
			So(next.contentReceived, ShouldBeTrue)
			So(s.messages[1].Content, ShouldBeEmpty)

			blank := contentDelta(s, "  ")
			So(blank.contentReceived, ShouldBeFalse)
		})

		Convey("工具调用从 running 只转换一次为终态", func() {
			decls := []model.ToolCallDecl{{ID: "c1", Name: "query_prometheus", Arguments: "{}"}}
			running := model.ToolCallState{ID: "c1", Name: "query_prometheus", Running: true, StartedAt: now}
			next := toolStarted(toolsDeclared(s, decls), []model.ToolCallState{running})

			So(next.messages[1].ToolCalls, ShouldResemble, decls)
			So(len(next.toolCalls), ShouldEqual, 1)
			So(next.toolCalls[0].Running, ShouldBeTrue)

			d := int64(12)
			done := running
			done.Running = false
			done.DurationMs = &d
			done.Error = "boom"
			next = toolSettled(next, done)
			So(next.toolCalls[0].Settled(), ShouldBeTrue)
			So(next.toolCalls[0].Error, ShouldEqual, "boom")

			again := done
			again.Error = "second"
			next = toolSettled(next, again)
			So(next.toolCalls[0].Error, ShouldEqual, "boom")
		})

		Convey("settled 写入最终内容并退出 streaming", func() {
			next := settled(contentDelta(s, "done"), "final")
			So(next.streaming, ShouldBeFalse)
			So(next.assistantID, ShouldBeEmpty)
			So(next.messages[1].Content, ShouldEqual, "final")

			_, ok := next.assistant()
			So(ok, ShouldBeFalse)
		})

		Convey("下一轮清空上一轮的工具状态", func() {
			running := model.ToolCallState{ID: "c1", Running: true}
			prev := settled(toolStarted(s, []model.ToolCallState{running}), "ok")
			next := userSubmitted(prev, model.Message{ID: "u2", Role: model.RoleUser}, model.Message{ID: "a2", Role: model.RoleAssistant})
			So(next.toolCalls, ShouldBeEmpty)
			So(len(next.messages), ShouldEqual, 4)
		})

		Convey("快照为深拷贝且切片非 nil", func() {
			empty := base.snapshot()
			So(empty.Messages, ShouldNotBeNil)
			So(empty.ToolCalls, ShouldNotBeNil)

			snap := s.snapshot()
			snap.Messages[0].Content = "mutated"
			So(s.messages[0].Content, ShouldEqual, "why is p99 latency high?")
		})

		Convey("持久化的对话以第一条用户消息为标题", func() {
			later := now.Add(time.Minute)
			conv := s.conversation(10, later)
			So(conv.ID, ShouldEqual, "conv-1")
			So(conv.Title, ShouldEqual, "why is p99")
			So(conv.CreatedAt, ShouldEqual, now)
			So(conv.UpdatedAt, ShouldEqual, later)

			restored := stateFromConversation(conv)
			So(restored.streaming, ShouldBeFalse)
			So(len(restored.messages), ShouldEqual, 2)
		})
	})
}

func TestFinalContent(t *testing.T) {
	timeout := &TurnTimeoutError{Timeout: time.Minute}
	tests := []struct {
		name     string
		current  string
		received bool
		err      error
		want     string
	}{
		{name: "正常结束", current: "answer", received: true, want: "answer"},
		{name: "没有内容", current: "", received: false, want: FallbackContent},
		{name: "超时无内容", current: "", received: false, err: timeout, want: FallbackContent},
		{name: "超时有内容", current: "partial", received: true, err: timeout, want: "Error: Request timed out"},
		{name: "流错误", current: "partial", received: true, err: &StreamTransportError{Round: 1, Err: errString("connection reset")}, want: "Error: connection reset"},
		{name: "空错误信息", current: "", received: false, err: errString(""), want: FallbackContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := finalContent(tt.current, tt.received, tt.err); got != tt.want {
				t.Errorf("finalContent() = %q, want %q", got, tt.want)
			}
		})
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func TestRetryablePattern(t *testing.T) {
	Convey("可重试的回复", t, func() {
		So(retryablePattern.MatchString("Error: connection reset"), ShouldBeTrue)
		So(retryablePattern.MatchString(FallbackContent), ShouldBeTrue)
		So(retryablePattern.MatchString("Error: Request timed out"), ShouldBeTrue)
		So(retryablePattern.MatchString("CPU usage is normal."), ShouldBeFalse)
	})
}
