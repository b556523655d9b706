package tools

import (
	"context"
	"strings"
)

// Tool 外部工具描述
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"` // JSON Schema 对象
}

// Content 工具返回的一个内容片段
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Result 工具调用结果
type Result struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
	Raw     any       `json:"-"` // 原始协议响应
}

// Text 拼接所有 text 片段，其余类型丢弃
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	var sb strings.Builder
	for _, c := range r.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	return sb.String()
}

// Client 工具调用客户端
// 单次调用，不重试
type Client interface {
	// ListTools 列出可用工具
	ListTools(ctx context.Context) ([]Tool, error)

	// CallTool 调用工具
	CallTool(ctx context.Context, name string, args map[string]any) (*Result, error)
}
