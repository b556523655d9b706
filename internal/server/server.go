package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"copilot/internal/ai"
	"copilot/internal/config"
	"copilot/internal/handler"
	copilotHandler "copilot/internal/handler/copilot"
	"copilot/internal/pkg/storage"
	"copilot/internal/pkg/storagefactory"
	"copilot/internal/repository"
	"copilot/internal/server/middleware"
	"copilot/internal/service"
	"copilot/internal/tools"
)

// Server HTTP 服务器（开发用宿主）
type Server struct {
	cfg     *config.Config
	engine  *gin.Engine
	deps    *Deps
	copilot *service.CopilotService
}

// Deps 编排服务持有的外部连接
type Deps struct {
	KV    storage.KV       // 对话存储，不可用时为 nil
	Tools *tools.MCPClient // 按配置建立的 MCP 连接，未配置或注入了客户端时为 nil
}

// Close 释放存储与工具连接
func (d *Deps) Close(ctx context.Context) {
	if d == nil {
		return
	}
	if d.Tools != nil {
		d.Tools.Close()
	}
	if d.KV == nil {
		return
	}
	if err := storagefactory.Close(ctx, d.KV); err != nil {
		log.Error().Err(err).Str("type", d.KV.GetStorageType()).Msg("failed to close storage")
	}
}

// Option 服务器可选项
type Option func(*options)

type options struct {
	toolClient tools.Client
}

// WithToolClient 注入工具客户端（例如已连接的 MCP 客户端）
func WithToolClient(client tools.Client) Option {
	return func(o *options) {
		o.toolClient = client
	}
}

// New 创建服务器实例
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	svc, deps, err := NewCopilotService(ctx, cfg, o.toolClient)
	if err != nil {
		return nil, err
	}

	srv := &Server{
		cfg:     cfg,
		engine:  gin.New(),
		deps:    deps,
		copilot: svc,
	}

	// 设置路由
	srv.setupRoutes()

	return srv, nil
}

// NewCopilotService 按配置组装存储、模型后端、工具客户端与编排服务
// 存储不可用时继续运行但不持久化；模型未配置时服务处于未启用状态；
// 没有注入工具客户端时按 copilot.mcp 建立连接，连接失败则不提供工具
func NewCopilotService(ctx context.Context, cfg *config.Config, toolClient tools.Client) (*service.CopilotService, *Deps, error) {
	deps := &Deps{}

	kv, err := storagefactory.NewStorage(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Str("type", cfg.Storage.Type).Msg("failed to init storage, conversations will not be persisted")
	} else {
		log.Info().Str("type", kv.GetStorageType()).Msg("storage initialized")
		deps.KV = kv
	}

	backend, err := ai.NewEinoBackend(ctx, &cfg.AI)
	if err != nil {
		deps.Close(ctx)
		return nil, nil, err
	}

	if toolClient == nil && cfg.Copilot.MCP.Enabled() {
		mcpClient, err := tools.DialMCP(cfg.Copilot.MCP)
		if err != nil {
			log.Warn().Err(err).Str("transport", cfg.Copilot.MCP.Transport).Msg("failed to connect tool server, running without tools")
		} else {
			log.Info().Str("transport", cfg.Copilot.MCP.Transport).Msg("tool server connected")
			deps.Tools = mcpClient
			toolClient = mcpClient
		}
	}

	var repo *repository.ConversationRepo
	if deps.KV != nil {
		repo = repository.NewConversationRepo(deps.KV, cfg.Copilot.StorageKey, cfg.Copilot.MaxConversations)
	}

	svc := service.NewCopilotService(ctx, service.Options{
		Backend:    backend,
		ToolClient: toolClient,
		Repo:       repo,
		Config:     cfg.Copilot,
	})
	return svc, deps, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// 全局中间件
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS())

	// 健康检查
	healthHandler := handler.NewHealthHandler(s.copilot)
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	// API v1
	v1 := s.engine.Group("/api/v1")
	copilotHandler.NewHandler(s.copilot).Register(v1)
}

// Run 启动服务器
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待关闭信号或错误
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")

		// 放弃进行中的对话
		s.copilot.ResetConversation()
		s.Close(context.Background())

		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Close 关闭存储与工具连接
func (s *Server) Close(ctx context.Context) {
	s.deps.Close(ctx)
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Copilot 获取编排服务
func (s *Server) Copilot() *service.CopilotService {
	return s.copilot
}
