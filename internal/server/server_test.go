package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"copilot/internal/config"
	"copilot/internal/tools"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Mode: "test"},
		Copilot: config.DefaultCopilotConfig(),
		Storage: config.StorageConfig{Type: "memory"},
	}
}

func TestServer(t *testing.T) {
	Convey("开发服务器", t, func() {
		ctx := context.Background()

		Convey("未配置模型时服务未启用，但接口可用", func() {
			srv, err := New(ctx, testConfig())
			So(err, ShouldBeNil)
			defer srv.Close(ctx)

			w := httptest.NewRecorder()
			srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			So(w.Code, ShouldEqual, http.StatusOK)

			w = httptest.NewRecorder()
			srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)

			w = httptest.NewRecorder()
			srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/copilot/state", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("X-Request-ID"), ShouldNotBeEmpty)
		})

		Convey("存储不可用时继续运行", func() {
			cfg := testConfig()
			cfg.Storage.Type = "unknown"
			svc, deps, err := NewCopilotService(ctx, cfg, nil)
			So(err, ShouldBeNil)
			So(deps.KV, ShouldBeNil)
			So(svc, ShouldNotBeNil)
			So(svc.Conversations(ctx), ShouldBeEmpty)
		})

		Convey("工具服务连接失败时不提供工具", func() {
			cfg := testConfig()
			cfg.Copilot.MCP = config.MCPConfig{Transport: "stdio"}
			svc, deps, err := NewCopilotService(ctx, cfg, nil)
			So(err, ShouldBeNil)
			defer deps.Close(ctx)
			So(svc, ShouldNotBeNil)
			So(deps.Tools, ShouldBeNil)
			So(deps.KV, ShouldNotBeNil)
		})

		Convey("注入工具客户端时不按配置连接", func() {
			cfg := testConfig()
			cfg.Copilot.MCP = config.MCPConfig{Transport: "sse", URL: "http://127.0.0.1:1/sse"}
			_, deps, err := NewCopilotService(ctx, cfg, tools.NewMCPClient(nil))
			So(err, ShouldBeNil)
			defer deps.Close(ctx)
			So(deps.Tools, ShouldBeNil)
		})

		Convey("模型配置错误时返回错误", func() {
			cfg := testConfig()
			cfg.AI = config.AIConfig{Provider: "unsupported", APIKey: "sk-test", Model: "m"}
			_, _, err := NewCopilotService(ctx, cfg, nil)
			So(err, ShouldNotBeNil)
		})
	})
}
