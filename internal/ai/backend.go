package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"copilot/internal/ai/component"
	"copilot/internal/config"
)

// ErrBackendNotConfigured 未配置模型
var ErrBackendNotConfigured = errors.New("model backend not configured")

// Backend 流式模型后端
type Backend interface {
	// StreamCompletions 发起一轮流式补全，tools 为本轮提供给模型的工具
	// 返回的流每个元素是一个增量块：内容增量或工具调用片段
	StreamCompletions(ctx context.Context, messages []*schema.Message, tools []*schema.ToolInfo) (*schema.StreamReader[*schema.Message], error)

	// Enabled 后端是否可用
	Enabled(ctx context.Context) (bool, error)
}

// EinoBackend 基于 Eino ChatModel 的后端
type EinoBackend struct {
	chatModel model.ToolCallingChatModel
}

// NewEinoBackend 根据配置创建后端；未配置 API Key 时返回不可用的后端
func NewEinoBackend(ctx context.Context, cfg *config.AIConfig) (*EinoBackend, error) {
	if cfg.APIKey == "" {
		log.Warn().Msg("AI API key not configured, copilot disabled")
		return &EinoBackend{}, nil
	}

	cm, err := component.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	log.Info().Str("provider", cfg.Provider).Str("model", cfg.Model).Msg("chat model initialized")
	return NewEinoBackendWithModel(cm), nil
}

// NewEinoBackendWithModel 使用已有 ChatModel 创建后端
func NewEinoBackendWithModel(cm model.ToolCallingChatModel) *EinoBackend {
	return &EinoBackend{chatModel: cm}
}

// StreamCompletions 发起一轮流式补全
func (b *EinoBackend) StreamCompletions(ctx context.Context, messages []*schema.Message, tools []*schema.ToolInfo) (*schema.StreamReader[*schema.Message], error) {
	if b.chatModel == nil {
		return nil, ErrBackendNotConfigured
	}

	cm := b.chatModel
	if len(tools) > 0 {
		withTools, err := cm.WithTools(tools)
		if err != nil {
			return nil, fmt.Errorf("failed to bind tools: %w", err)
		}
		cm = withTools
	}

	return cm.Stream(ctx, messages)
}

// Enabled 后端是否可用
func (b *EinoBackend) Enabled(ctx context.Context) (bool, error) {
	return b.chatModel != nil, nil
}
