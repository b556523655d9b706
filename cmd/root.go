package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"copilot/internal/config"
	"copilot/internal/pkg/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "copilot",
	Short: "Copilot - observability chat assistant",
	Long: `Copilot runs tool-calling chat turns against an LLM built with the Eino framework.
It streams answers, executes MCP tools concurrently and keeps recent conversations.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./configs/config.yaml)")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.copilot")
	}

	// 本地开发时从 .env 加载 COPILOT_* 变量，已存在的环境变量优先
	dotenvErr := godotenv.Load()

	// 环境变量设置
	viper.SetEnvPrefix("COPILOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 设置默认值
	setDefaults()

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			fmt.Fprintln(os.Stderr, "No config file found, using defaults and environment variables")
		} else {
			fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
			os.Exit(1)
		}
	}

	// 反序列化到结构体
	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to unmarshal config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	if dotenvErr != nil && !errors.Is(dotenvErr, os.ErrNotExist) {
		log.Warn().Err(dotenvErr).Msg("failed to load .env file")
	}
	log.Debug().Str("config_file", viper.ConfigFileUsed()).Msg("configuration loaded")
}

func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	// AI
	viper.SetDefault("ai.provider", "openai")
	viper.SetDefault("ai.model", "gpt-4o")
	viper.SetDefault("ai.options.temperature", 0.7)
	viper.SetDefault("ai.options.max_tokens", 4096)
	viper.SetDefault("ai.options.top_p", 1.0)

	// Log
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.time_format", "RFC3339")

	// Copilot
	copilot := config.DefaultCopilotConfig()
	viper.SetDefault("copilot.turn_timeout", copilot.TurnTimeout.String())
	viper.SetDefault("copilot.tool_timeout", copilot.ToolTimeout.String())
	viper.SetDefault("copilot.max_conversations", copilot.MaxConversations)
	viper.SetDefault("copilot.title_max_len", copilot.TitleMaxLen)
	viper.SetDefault("copilot.storage_key", copilot.StorageKey)
	viper.SetDefault("copilot.tool_allow_list", copilot.ToolAllowList)
	viper.SetDefault("copilot.mcp.name", "grafana-copilot")
	viper.SetDefault("copilot.mcp.version", "0.1")
	viper.SetDefault("copilot.mcp.transport", "")
	viper.SetDefault("copilot.mcp.command", "")
	viper.SetDefault("copilot.mcp.url", "")

	// Storage
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local.base_path", "./data")

	// MongoDB
	viper.SetDefault("mongo.database", "copilot")
	viper.SetDefault("mongo.max_pool_size", 100)
	viper.SetDefault("mongo.min_pool_size", 10)

	// Redis
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefix", "copilot:")
}

// GetConfig returns the global configuration
func GetConfig() *config.Config {
	return cfg
}

// addMCPFlags 注册工具服务参数
func addMCPFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("mcp-transport", "", "tool server transport (stdio/sse/streamable), empty disables tools")
	flags.String("mcp-command", "", "tool server command for stdio transport, e.g. mcp-grafana")
	flags.StringSlice("mcp-args", nil, "tool server command arguments")
	flags.String("mcp-url", "", "tool server URL for sse/streamable transport")
}

// applyMCPFlags 用显式传入的参数覆盖工具服务配置
func applyMCPFlags(cmd *cobra.Command, mcpCfg *config.MCPConfig) {
	flags := cmd.Flags()
	if flags.Changed("mcp-transport") {
		mcpCfg.Transport, _ = flags.GetString("mcp-transport")
	}
	if flags.Changed("mcp-command") {
		mcpCfg.Command, _ = flags.GetString("mcp-command")
	}
	if flags.Changed("mcp-args") {
		mcpCfg.Args, _ = flags.GetStringSlice("mcp-args")
	}
	if flags.Changed("mcp-url") {
		mcpCfg.URL, _ = flags.GetString("mcp-url")
	}
}
