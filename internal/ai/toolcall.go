package ai

import (
	"github.com/cloudwego/eino/schema"

	"copilot/internal/model"
	"copilot/internal/pkg/id"
)

// IsToolCallChunk 判断流式块是否为工具调用片段
func IsToolCallChunk(chunk *schema.Message) bool {
	return chunk != nil && len(chunk.ToolCalls) > 0
}

// partialCall 构建中的工具调用
type partialCall struct {
	index     *int
	id        string
	typ       string
	name      string
	arguments []byte
}

// ToolCallAccumulator 将流式的工具调用片段合并为完整的调用
// 优先按 Index 合并；没有 Index 时按 ID 合并；既无 Index 也无 ID 的片段追加到上一个调用
type ToolCallAccumulator struct {
	calls []*partialCall
}

// NewToolCallAccumulator 创建累加器
func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{}
}

// Add 合并一个块中的全部片段
func (a *ToolCallAccumulator) Add(chunk *schema.Message) {
	if chunk == nil {
		return
	}
	for _, tc := range chunk.ToolCalls {
		a.addFragment(tc)
	}
}

func (a *ToolCallAccumulator) addFragment(tc schema.ToolCall) {
	target := a.find(tc)
	if target == nil {
		target = &partialCall{index: tc.Index}
		a.calls = append(a.calls, target)
	}

	if tc.ID != "" {
		target.id = tc.ID
	}
	if tc.Type != "" {
		target.typ = tc.Type
	}
	if tc.Function.Name != "" {
		// 有的服务端在每个片段中重复完整名称，有的分段发送
		if target.name == "" || target.name == tc.Function.Name {
			target.name = tc.Function.Name
		} else {
			target.name += tc.Function.Name
		}
	}
	target.arguments = append(target.arguments, tc.Function.Arguments...)
}

func (a *ToolCallAccumulator) find(tc schema.ToolCall) *partialCall {
	if tc.Index != nil {
		for _, c := range a.calls {
			if c.index != nil && *c.index == *tc.Index {
				return c
			}
		}
		return nil
	}
	if tc.ID != "" {
		for _, c := range a.calls {
			if c.id == tc.ID {
				return c
			}
		}
		return nil
	}
	if len(a.calls) > 0 {
		return a.calls[len(a.calls)-1]
	}
	return nil
}

// Len 当前累计的调用数（含不完整的）
func (a *ToolCallAccumulator) Len() int {
	return len(a.calls)
}

// Calls 返回完整的函数调用，按首次出现的顺序
// 没有名称的调用被丢弃，缺少 ID 的调用会生成 ID
func (a *ToolCallAccumulator) Calls() []model.ToolCallDecl {
	out := make([]model.ToolCallDecl, 0, len(a.calls))
	for _, c := range a.calls {
		if c.name == "" {
			continue
		}
		if c.typ != "" && c.typ != "function" {
			continue
		}
		if c.id == "" {
			c.id = id.NewToolCallID()
		}
		out = append(out, model.ToolCallDecl{
			ID:        c.id,
			Name:      c.name,
			Arguments: string(c.arguments),
		})
	}
	return out
}
