package service

import (
	"strings"
	"time"

	"copilot/internal/model"
)

// turnState 编排器持有的对话状态
// 所有修改都通过下面的纯函数完成：输入旧状态与事件，返回新状态，不修改入参
type turnState struct {
	conversationID  string
	createdAt       time.Time
	messages        []model.Message
	toolCalls       []model.ToolCallState // 按派发顺序
	streaming       bool
	assistantID     string // 本轮占位 assistant 消息
	contentReceived bool   // 本轮是否收到过非空内容
}

func newTurnState(conversationID string, now time.Time) turnState {
	return turnState{conversationID: conversationID, createdAt: now}
}

func stateFromConversation(c model.Conversation) turnState {
	return turnState{
		conversationID: c.ID,
		createdAt:      c.CreatedAt,
		messages:       model.CloneMessages(c.Messages),
	}
}

// userSubmitted 追加用户消息与空的 assistant 占位消息，清空工具调用状态
func userSubmitted(s turnState, user, assistant model.Message) turnState {
	next := s
	next.messages = append(model.CloneMessages(s.messages), user, assistant)
	next.toolCalls = nil
	next.streaming = true
	next.assistantID = assistant.ID
	next.contentReceived = false
	return next
}

// contentDelta 用本轮累计的内容替换 assistant 消息内容
func contentDelta(s turnState, content string) turnState {
	next := updateAssistant(s, func(m *model.Message) { m.Content = content })
	if strings.TrimSpace(content) != "" {
		next.contentReceived = true
	}
	return next
}

// toolsDeclared 在 assistant 消息上记录本轮声明的工具调用
func toolsDeclared(s turnState, decls []model.ToolCallDecl) turnState {
	return updateAssistant(s, func(m *model.Message) {
		m.ToolCalls = append(m.ToolCalls, decls...)
	})
}

// toolStarted 记录派发的工具调用（running=true）
func toolStarted(s turnState, started []model.ToolCallState) turnState {
	next := s
	next.toolCalls = make([]model.ToolCallState, 0, len(s.toolCalls)+len(started))
	next.toolCalls = append(next.toolCalls, s.toolCalls...)
	next.toolCalls = append(next.toolCalls, started...)
	return next
}

// toolSettled 将运行中的调用替换为终态，每个调用只转换一次
func toolSettled(s turnState, settled model.ToolCallState) turnState {
	next := s
	next.toolCalls = append([]model.ToolCallState(nil), s.toolCalls...)
	for i := range next.toolCalls {
		if next.toolCalls[i].ID == settled.ID && next.toolCalls[i].Running {
			next.toolCalls[i] = settled
			break
		}
	}
	return next
}

// toolMessageAppended 追加 tool 消息
func toolMessageAppended(s turnState, msg model.Message) turnState {
	next := s
	next.messages = append(model.CloneMessages(s.messages), msg)
	return next
}

// settled 写入最终内容并结束本轮
func settled(s turnState, content string) turnState {
	next := updateAssistant(s, func(m *model.Message) { m.Content = content })
	next.streaming = false
	next.assistantID = ""
	return next
}

// reset 开始新对话，不影响已持久化的对话
func reset(conversationID string, now time.Time) turnState {
	return newTurnState(conversationID, now)
}

func updateAssistant(s turnState, fn func(m *model.Message)) turnState {
	next := s
	next.messages = model.CloneMessages(s.messages)
	for i := len(next.messages) - 1; i >= 0; i-- {
		if next.messages[i].ID == s.assistantID && s.assistantID != "" {
			fn(&next.messages[i])
			break
		}
	}
	return next
}

// assistant 返回本轮的 assistant 消息
func (s turnState) assistant() (model.Message, bool) {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].ID == s.assistantID && s.assistantID != "" {
			return s.messages[i], true
		}
	}
	return model.Message{}, false
}

// snapshot 深拷贝当前状态
func (s turnState) snapshot() model.Snapshot {
	snap := model.Snapshot{
		ConversationID: s.conversationID,
		Messages:       s.messages,
		ToolCalls:      s.toolCalls,
		IsStreaming:    s.streaming,
	}.Clone()
	if snap.Messages == nil {
		snap.Messages = []model.Message{}
	}
	if snap.ToolCalls == nil {
		snap.ToolCalls = []model.ToolCallState{}
	}
	return snap
}

// conversation 生成用于持久化的对话
func (s turnState) conversation(titleMaxLen int, now time.Time) model.Conversation {
	return model.Conversation{
		ID:        s.conversationID,
		Title:     model.BuildConversationTitle(s.messages, titleMaxLen),
		Messages:  model.CloneMessages(s.messages),
		CreatedAt: s.createdAt,
		UpdatedAt: now,
	}
}
