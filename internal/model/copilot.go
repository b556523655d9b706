package model

import (
	"time"
)

// Role 消息角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message 对话中的一条消息
type Message struct {
	ID         string         `json:"id"`
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	Timestamp  time.Time      `json:"timestamp"`
	ToolCallID string         `json:"toolCallId,omitempty"` // 仅 tool 消息
	Name       string         `json:"name,omitempty"`       // 仅 tool 消息
	ToolCalls  []ToolCallDecl `json:"toolCalls,omitempty"`  // assistant 消息声明的工具调用
}

// ToolCallDecl 模型声明的一次完整工具调用
type ToolCallDecl struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCallState 工具调用的运行状态
// 创建时 Running=true，结束后只变更一次为终态（Response 与 Error 二选一）
type ToolCallState struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Arguments  string    `json:"arguments"`
	Running    bool      `json:"running"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMs *int64    `json:"durationMs,omitempty"`
	Response   any       `json:"response,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Settled 是否已结束
func (s ToolCallState) Settled() bool {
	return !s.Running && s.DurationMs != nil
}

// Conversation 持久化的对话
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot 提供给展示层的状态快照
type Snapshot struct {
	ConversationID string          `json:"conversationId"`
	Messages       []Message       `json:"messages"`
	ToolCalls      []ToolCallState `json:"toolCalls"`
	IsStreaming    bool            `json:"isStreaming"`
}

// HostContext 宿主应用提供的当前上下文
type HostContext struct {
	LocationHint string `json:"locationHint,omitempty"`
}

// DefaultConversationTitle 无用户消息时的标题
const DefaultConversationTitle = "Conversation"

// BuildConversationTitle 取第一条用户消息（截断）作为标题
func BuildConversationTitle(messages []Message, maxLen int) string {
	for _, m := range messages {
		if m.Role != RoleUser {
			continue
		}
		runes := []rune(m.Content)
		if maxLen > 0 && len(runes) > maxLen {
			runes = runes[:maxLen]
		}
		if len(runes) == 0 {
			return DefaultConversationTitle
		}
		return string(runes)
	}
	return DefaultConversationTitle
}

// CloneMessages 深拷贝消息列表
func CloneMessages(in []Message) []Message {
	if in == nil {
		return nil
	}
	out := make([]Message, len(in))
	for i, m := range in {
		out[i] = m
		if m.ToolCalls != nil {
			out[i].ToolCalls = append([]ToolCallDecl(nil), m.ToolCalls...)
		}
	}
	return out
}

// Clone 深拷贝快照（Response 视为不可变值，不复制）
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Messages = CloneMessages(s.Messages)
	if s.ToolCalls != nil {
		out.ToolCalls = make([]ToolCallState, len(s.ToolCalls))
		for i, tc := range s.ToolCalls {
			if tc.DurationMs != nil {
				d := *tc.DurationMs
				tc.DurationMs = &d
			}
			out.ToolCalls[i] = tc
		}
	}
	return out
}
