package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"nursemate/internal/config"
	"nursemate/internal/pkg/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "nursemate",
	Short: "Nursemate - RAG tutoring chat API",
	Long: `Nursemate is a tutoring chat backend built with Eino.
It answers study questions with retrieval-augmented generation, streams the
answer over SSE and keeps a rolling summary of each learner's history.`,
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
		viper.AddConfigPath("$HOME/.nursemate")
	}

	// 环境变量设置
	viper.SetEnvPrefix("NURSEMATE")
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

	log.Debug().Str("config_file", viper.ConfigFileUsed()).Msg("configuration loaded")
}

func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "0s")

	// AI
	viper.SetDefault("ai.provider", "openai")
	viper.SetDefault("ai.model", "gpt-4o-mini")
	viper.SetDefault("ai.options.temperature", 0)
	viper.SetDefault("ai.options.max_tokens", 2048)
	viper.SetDefault("ai.options.top_p", 1.0)

	// Embedding
	viper.SetDefault("embedding.base_url", "http://localhost:11434/v1")
	viper.SetDefault("embedding.model", "nomic-embed-text")
	viper.SetDefault("embedding.timeout", "30s")

	// Vector
	viper.SetDefault("vector.api_version", "2025-04")
	viper.SetDefault("vector.control_url", "https://api.pinecone.io")
	viper.SetDefault("vector.timeout", "30s")

	// Chat
	viper.SetDefault("chat.top_k", 5)
	viper.SetDefault("chat.history_limit", 20)
	viper.SetDefault("chat.recent_turns", 5)
	viper.SetDefault("chat.title_max_length", 40)
	viper.SetDefault("chat.token_buffer", 64)
	viper.SetDefault("chat.summary_timeout", "60s")
	viper.SetDefault("chat.keep_alive", "15s")

	// Log
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.time_format", "RFC3339")

	// MongoDB
	viper.SetDefault("mongo.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongo.database", "nursemate")
	viper.SetDefault("mongo.max_pool_size", 100)
	viper.SetDefault("mongo.min_pool_size", 10)

	// Redis
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)

	// Auth
	viper.SetDefault("auth.allow_query_token", true)
	viper.SetDefault("auth.token_expiry", "24h")

	// CORS
	viper.SetDefault("cors.allow_origins", []string{"http://localhost:5173"})

	// Tracing
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.service_name", "nursemate")
	viper.SetDefault("tracing.sample_ratio", 0.1)

	// Queue
	viper.SetDefault("queue.workers", 2)
	viper.SetDefault("queue.buffer", 128)
	viper.SetDefault("queue.task_timeout", "90s")

	// Materials
	viper.SetDefault("materials.type", "local")
	viper.SetDefault("materials.local.base_path", "./materials")
}

// GetConfig returns the global configuration
func GetConfig() *config.Config {
	return cfg
}
