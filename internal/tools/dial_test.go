package tools

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"copilot/internal/config"
)

func TestClientOptions(t *testing.T) {
	Convey("ClientOptions 转换工具服务配置", t, func() {
		Convey("stdio 传输", func() {
			args := []string{"-t", "stdio"}
			opts := ClientOptions(config.MCPConfig{
				Transport:    " stdio ",
				Command:      "mcp-grafana",
				Args:         args,
				PingInterval: 30,
			})
			So(opts.Transport.Type, ShouldEqual, "stdio")
			So(opts.Transport.Command, ShouldEqual, "mcp-grafana")
			So(opts.Transport.Arguments, ShouldResemble, args)
			So(opts.PingIntervalSeconds, ShouldEqual, 30)

			args[0] = "changed"
			So(opts.Transport.Arguments[0], ShouldEqual, "-t")
		})

		Convey("未命名时使用默认客户端名", func() {
			opts := ClientOptions(config.MCPConfig{Transport: "sse", URL: "http://localhost:8000/sse"})
			So(opts.Name, ShouldNotBeEmpty)
			So(opts.Transport.URL, ShouldEqual, "http://localhost:8000/sse")
		})

		Convey("保留配置的客户端名", func() {
			opts := ClientOptions(config.MCPConfig{Name: "grafana-copilot", Version: "1.0", Transport: "streamable", URL: "http://x"})
			So(opts.Name, ShouldEqual, "grafana-copilot")
			So(opts.Version, ShouldEqual, "1.0")
		})
	})
}

func TestDialMCP(t *testing.T) {
	Convey("DialMCP 在连接前校验配置", t, func() {
		tests := []struct {
			name string
			cfg  config.MCPConfig
		}{
			{name: "未配置传输", cfg: config.MCPConfig{}},
			{name: "stdio 缺少命令", cfg: config.MCPConfig{Transport: "stdio"}},
			{name: "sse 缺少地址", cfg: config.MCPConfig{Transport: "sse"}},
			{name: "未知传输", cfg: config.MCPConfig{Transport: "websocket", URL: "ws://x"}},
		}
		for _, tt := range tests {
			Convey(tt.name, func() {
				client, err := DialMCP(tt.cfg)
				So(err, ShouldNotBeNil)
				So(client, ShouldBeNil)
			})
		}
	})
}
