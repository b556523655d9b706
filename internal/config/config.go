package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config 应用配置根结构
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	AI      AIConfig      `mapstructure:"ai"`
	Log     LogConfig     `mapstructure:"log"`
	Copilot CopilotConfig `mapstructure:"copilot"`
	Storage StorageConfig `mapstructure:"storage"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// ServerConfig HTTP 服务器配置（开发用宿主）
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// AIConfig AI 服务配置
type AIConfig struct {
	Provider string          `mapstructure:"provider"`
	APIKey   string          `mapstructure:"api_key"`
	Model    string          `mapstructure:"model"`
	BaseURL  string          `mapstructure:"base_url"`
	Options  AIOptionsConfig `mapstructure:"options"`
}

// AIOptionsConfig AI 模型参数
type AIOptionsConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TopP        float64 `mapstructure:"top_p"`
}

// LogConfig 日志配置 (Zerolog)
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	TimeFormat string `mapstructure:"time_format"`
}

// CopilotConfig 对话编排配置
type CopilotConfig struct {
	TurnTimeout      time.Duration `mapstructure:"turn_timeout"`      // 单轮对话总超时
	ToolTimeout      time.Duration `mapstructure:"tool_timeout"`      // 单次工具调用超时
	MaxConversations int           `mapstructure:"max_conversations"` // 最多保留的对话数
	TitleMaxLen      int           `mapstructure:"title_max_len"`     // 标题截断长度
	StorageKey       string        `mapstructure:"storage_key"`       // 对话列表存储 key
	ToolAllowList    []string      `mapstructure:"tool_allow_list"`   // 允许提供给模型的工具
	LocationHint     string        `mapstructure:"location_hint"`     // 默认上下文提示
	MCP              MCPConfig     `mapstructure:"mcp"`               // 工具服务连接
}

// MCPConfig MCP 工具服务配置
// Transport 为空时不连接，对话不提供工具
type MCPConfig struct {
	Name         string   `mapstructure:"name"`
	Version      string   `mapstructure:"version"`
	Transport    string   `mapstructure:"transport"`     // stdio, sse, streamable
	Command      string   `mapstructure:"command"`       // stdio 启动命令
	Args         []string `mapstructure:"args"`          // stdio 命令参数
	URL          string   `mapstructure:"url"`           // sse / streamable 地址
	PingInterval int      `mapstructure:"ping_interval"` // 心跳间隔（秒）
}

// Enabled 是否配置了工具服务
func (c MCPConfig) Enabled() bool {
	return strings.TrimSpace(c.Transport) != ""
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type  string       `mapstructure:"type"` // local, memory, redis, mongo, oss
	Local *LocalConfig `mapstructure:"local,omitempty"`
	OSS   *OSSConfig   `mapstructure:"oss,omitempty"`
}

// LocalConfig 本地文件系统配置
type LocalConfig struct {
	BasePath string `mapstructure:"base_path"` // 基础路径
}

// OSSConfig 阿里云OSS配置
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`          // OSS端点
	Bucket          string `mapstructure:"bucket"`            // Bucket名称
	AccessKeyID     string `mapstructure:"access_key_id"`     // AccessKey ID
	AccessKeySecret string `mapstructure:"access_key_secret"` // AccessKey Secret
	Prefix          string `mapstructure:"prefix"`            // 对象 key 前缀
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
	MinPoolSize uint64 `mapstructure:"min_pool_size"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// DefaultCopilotConfig 默认编排配置
func DefaultCopilotConfig() CopilotConfig {
	return CopilotConfig{
		TurnTimeout:      60 * time.Second,
		ToolTimeout:      45 * time.Second,
		MaxConversations: 20,
		TitleMaxLen:      50,
		StorageKey:       "grafana-copilot-conversations",
		ToolAllowList:    append([]string(nil), CoreToolAllowList...),
	}
}

// CoreToolAllowList 默认提供给模型的工具（完整工具列表会导致严重延迟）
var CoreToolAllowList = []string{
	// Datasources
	"list_datasources",
	"get_datasource_by_name",
	"get_datasource_by_uid",
	// Dashboards
	"get_dashboard_by_uid",
	"get_dashboard_summary",
	"get_dashboard_property",
	// Prometheus
	"query_prometheus",
	"list_prometheus_label_names",
	"list_prometheus_label_values",
	"list_prometheus_metric_names",
	// Loki
	"query_loki_logs",
	"list_loki_label_names",
	"list_loki_label_values",
	// Alerts
	"list_alert_rules",
	"get_alert_rule_by_uid",
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	if c.Server.Mode != "" {
		validModes := map[string]bool{"debug": true, "release": true, "test": true}
		if !validModes[c.Server.Mode] {
			return errors.New("invalid server mode, must be debug/release/test")
		}
	}

	return c.Copilot.Validate()
}

// Validate 验证编排配置
func (c *CopilotConfig) Validate() error {
	if c.TurnTimeout <= 0 {
		return fmt.Errorf("copilot.turn_timeout must be positive, got %s", c.TurnTimeout)
	}
	if c.ToolTimeout <= 0 {
		return fmt.Errorf("copilot.tool_timeout must be positive, got %s", c.ToolTimeout)
	}
	if c.MaxConversations <= 0 {
		return errors.New("copilot.max_conversations must be positive")
	}
	if c.StorageKey == "" {
		return errors.New("copilot.storage_key is required")
	}
	return c.MCP.Validate()
}

// Validate 验证工具服务配置
func (c MCPConfig) Validate() error {
	switch strings.TrimSpace(c.Transport) {
	case "":
		return nil
	case "stdio":
		if c.Command == "" {
			return errors.New("copilot.mcp.command is required for stdio transport")
		}
	case "sse", "streamable":
		if c.URL == "" {
			return fmt.Errorf("copilot.mcp.url is required for %s transport", c.Transport)
		}
	default:
		return fmt.Errorf("unsupported copilot.mcp.transport: %s", c.Transport)
	}
	return nil
}
