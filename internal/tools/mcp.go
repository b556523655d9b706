package tools

import (
	"context"
	"errors"

	mcpschema "github.com/viant/mcp-protocol/schema"
	mcpclient "github.com/viant/mcp/client"
)

// MCPCaller MCP 客户端中工具相关的方法，mcpclient.Interface 满足此接口
type MCPCaller interface {
	ListTools(ctx context.Context, cursor *string, options ...mcpclient.RequestOption) (*mcpschema.ListToolsResult, error)
	CallTool(ctx context.Context, params *mcpschema.CallToolRequestParams, options ...mcpclient.RequestOption) (*mcpschema.CallToolResult, error)
}

// MCPClient 基于 MCP 协议的工具客户端
type MCPClient struct {
	caller MCPCaller
}

// NewMCPClient 创建 MCP 工具客户端
func NewMCPClient(caller MCPCaller) *MCPClient {
	return &MCPClient{caller: caller}
}

// maxToolPages 分页上限，防止服务端游标不前进
const maxToolPages = 100

// ListTools 列出全部工具（按 NextCursor 翻页）
func (c *MCPClient) ListTools(ctx context.Context) ([]Tool, error) {
	if c == nil || c.caller == nil {
		return nil, errors.New("mcp client unavailable")
	}

	var (
		out    []Tool
		cursor *string
	)
	for page := 0; page < maxToolPages; page++ {
		result, err := c.caller.ListTools(ctx, cursor)
		if err != nil {
			return nil, err
		}
		if result == nil {
			break
		}
		for _, t := range result.Tools {
			out = append(out, toolFromMCP(t))
		}
		if result.NextCursor == nil || *result.NextCursor == "" {
			break
		}
		next := *result.NextCursor
		cursor = &next
	}
	return out, nil
}

// CallTool 调用工具
func (c *MCPClient) CallTool(ctx context.Context, name string, args map[string]any) (*Result, error) {
	if c == nil || c.caller == nil {
		return nil, errors.New("mcp client unavailable")
	}

	params := &mcpschema.CallToolRequestParams{
		Name:      name,
		Arguments: args,
	}
	resp, err := c.caller.CallTool(ctx, params)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &Result{}, nil
	}

	result := &Result{
		Content: make([]Content, 0, len(resp.Content)),
		IsError: resp.IsError != nil && *resp.IsError,
		Raw:     resp,
	}
	for _, elem := range resp.Content {
		result.Content = append(result.Content, contentFromMCP(elem))
	}
	return result, nil
}

// Close 停止底层客户端的后台任务
func (c *MCPClient) Close() {
	if c == nil || c.caller == nil {
		return
	}
	if closer, ok := c.caller.(interface{ Close() }); ok {
		closer.Close()
	}
}

// contentFromMCP 转换一个内容片段
// 网络传输解码后为 map；进程内服务端直接返回 TextContent
func contentFromMCP(elem mcpschema.CallToolResultContentElem) Content {
	switch v := elem.(type) {
	case map[string]any:
		typ, _ := v["type"].(string)
		text, _ := v["text"].(string)
		return Content{Type: typ, Text: text}
	case mcpschema.TextContent:
		return Content{Type: textType(v.Type), Text: v.Text}
	case *mcpschema.TextContent:
		if v == nil {
			return Content{}
		}
		return Content{Type: textType(v.Type), Text: v.Text}
	default:
		return Content{}
	}
}

func textType(t string) string {
	if t == "" {
		return "text"
	}
	return t
}

// toolFromMCP 转换 MCP 工具定义
func toolFromMCP(t mcpschema.Tool) Tool {
	props := make(map[string]any, len(t.InputSchema.Properties))
	for k, v := range t.InputSchema.Properties {
		props[k] = v
	}

	schemaType := t.InputSchema.Type
	if schemaType == "" {
		schemaType = "object"
	}
	inputSchema := map[string]any{
		"type":       schemaType,
		"properties": props,
	}
	if len(t.InputSchema.Required) > 0 {
		inputSchema["required"] = append([]string(nil), t.InputSchema.Required...)
	}

	tool := Tool{
		Name:        t.Name,
		InputSchema: inputSchema,
	}
	if t.Description != nil {
		tool.Description = *t.Description
	}
	return tool
}
