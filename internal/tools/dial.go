package tools

import (
	"fmt"
	"strings"

	"github.com/viant/mcp"

	"copilot/internal/config"
)

// ClientOptions 把工具服务配置转换为 MCP 客户端选项
func ClientOptions(cfg config.MCPConfig) *mcp.ClientOptions {
	opts := &mcp.ClientOptions{
		Name:                cfg.Name,
		Version:             cfg.Version,
		PingIntervalSeconds: cfg.PingInterval,
		Transport: mcp.ClientTransport{
			Type: strings.TrimSpace(cfg.Transport),
			ClientTransportStdio: mcp.ClientTransportStdio{
				Command:   cfg.Command,
				Arguments: append([]string(nil), cfg.Args...),
			},
			ClientTransportHTTP: mcp.ClientTransportHTTP{
				URL: cfg.URL,
			},
		},
	}
	opts.Init()
	return opts
}

// DialMCP 按配置建立 MCP 连接并完成初始化握手
func DialMCP(cfg config.MCPConfig) (*MCPClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		return nil, fmt.Errorf("mcp transport is not configured")
	}

	cli, err := mcp.NewClient(nil, ClientOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect mcp server: %w", err)
	}
	return NewMCPClient(cli), nil
}
