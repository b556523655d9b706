package ai

import (
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"github.com/eino-contrib/jsonschema"

	"copilot/internal/model"
	"copilot/internal/tools"
)

// ToLLMMessage 将对话消息转换为模型消息
// tool 消息带上调用 ID 与工具名；声明过工具调用的 assistant 消息带上调用列表
func ToLLMMessage(msg model.Message) *schema.Message {
	switch msg.Role {
	case model.RoleTool:
		return &schema.Message{
			Role:       schema.Tool,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
			ToolName:   msg.Name,
		}
	case model.RoleAssistant:
		return schema.AssistantMessage(msg.Content, ToSchemaToolCalls(msg.ToolCalls))
	case model.RoleSystem:
		return schema.SystemMessage(msg.Content)
	default:
		return schema.UserMessage(msg.Content)
	}
}

// ToLLMMessages 批量转换
func ToLLMMessages(msgs []model.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ToLLMMessage(m))
	}
	return out
}

// ToLLMHistory 转换历史消息并修正协议一致性
// 只保留有对应 tool 结果的调用声明，丢弃没有声明的 tool 消息和空的 assistant 消息
func ToLLMHistory(msgs []model.Message) []*schema.Message {
	answered := make(map[string]struct{})
	declared := make(map[string]struct{})
	for _, m := range msgs {
		switch m.Role {
		case model.RoleTool:
			answered[m.ToolCallID] = struct{}{}
		case model.RoleAssistant:
			for _, d := range m.ToolCalls {
				declared[d.ID] = struct{}{}
			}
		}
	}

	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case model.RoleTool:
			if _, ok := declared[m.ToolCallID]; !ok {
				continue
			}
		case model.RoleAssistant:
			kept := m.ToolCalls[:0:0]
			for _, d := range m.ToolCalls {
				if _, ok := answered[d.ID]; ok {
					kept = append(kept, d)
				}
			}
			m.ToolCalls = kept
			if m.Content == "" && len(m.ToolCalls) == 0 {
				continue
			}
		}
		out = append(out, ToLLMMessage(m))
	}
	return out
}

// ToSchemaToolCalls 将工具调用声明转换为模型格式
func ToSchemaToolCalls(decls []model.ToolCallDecl) []schema.ToolCall {
	if len(decls) == 0 {
		return nil
	}
	out := make([]schema.ToolCall, 0, len(decls))
	for i, d := range decls {
		idx := i
		out = append(out, schema.ToolCall{
			Index: &idx,
			ID:    d.ID,
			Type:  "function",
			Function: schema.FunctionCall{
				Name:      d.Name,
				Arguments: d.Arguments,
			},
		})
	}
	return out
}

// ToToolInfo 将工具定义转换为模型可用的 ToolInfo
func ToToolInfo(t tools.Tool) (*schema.ToolInfo, error) {
	info := &schema.ToolInfo{
		Name: t.Name,
		Desc: t.Description,
	}
	if len(t.InputSchema) == 0 {
		return info, nil
	}

	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to encode input schema for %s: %w", t.Name, err)
	}
	js := &jsonschema.Schema{}
	if err := json.Unmarshal(raw, js); err != nil {
		return nil, fmt.Errorf("failed to decode input schema for %s: %w", t.Name, err)
	}
	info.ParamsOneOf = schema.NewParamsOneOfByJSONSchema(js)
	return info, nil
}

// ToToolInfos 批量转换，转换失败的工具被跳过
func ToToolInfos(list []tools.Tool) ([]*schema.ToolInfo, []error) {
	out := make([]*schema.ToolInfo, 0, len(list))
	var errs []error
	for _, t := range list {
		info, err := ToToolInfo(t)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, info)
	}
	return out, errs
}
