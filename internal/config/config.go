package config

import (
	"errors"
	"strings"
	"time"
)

// Config 应用配置根结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	AI        AIConfig        `mapstructure:"ai"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Log       LogConfig       `mapstructure:"log"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Materials StorageConfig   `mapstructure:"materials"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"` // 流式接口需要足够长，0 表示不限制
}

// AIConfig 生成模型配置
type AIConfig struct {
	Provider string          `mapstructure:"provider"` // openai, azure, ark
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

// EmbeddingConfig 向量化服务配置（OpenAI 兼容接口，默认指向本地 Ollama）
type EmbeddingConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// VectorConfig 向量索引配置 (Pinecone)
type VectorConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	APIVersion string        `mapstructure:"api_version"`
	ControlURL string        `mapstructure:"control_url"` // 控制面地址，用于 describe_index
	IndexName  string        `mapstructure:"index_name"`
	IndexHost  string        `mapstructure:"index_host"` // 数据面 host，为空时通过 describe_index 解析
	Namespace  string        `mapstructure:"namespace"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ChatConfig 对话编排参数
type ChatConfig struct {
	TopK           int           `mapstructure:"top_k"`            // 检索片段数
	HistoryLimit   int64         `mapstructure:"history_limit"`    // 上下文窗口消息数
	RecentTurns    int64         `mapstructure:"recent_turns"`     // 缓存最近轮次
	TitleMaxLength int           `mapstructure:"title_max_length"` // 标题截断长度
	TokenBuffer    int           `mapstructure:"token_buffer"`     // token 通道缓冲
	SummaryTimeout time.Duration `mapstructure:"summary_timeout"`  // 后台摘要超时
	KeepAlive      time.Duration `mapstructure:"keep_alive"`       // SSE 心跳间隔，0 表示关闭
}

// LogConfig 日志配置 (Zerolog)
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	TimeFormat string `mapstructure:"time_format"`
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
}

// AuthConfig 认证配置
// 只负责校验调用方 token，不负责签发
type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`        // HS256 密钥
	JWTPublicKey    string        `mapstructure:"jwt_public_key"`    // RS256 公钥 (PEM)，配置后优先使用
	AllowQueryToken bool          `mapstructure:"allow_query_token"` // EventSource 无法设置 header，允许 ?token=
	TokenExpiry     time.Duration `mapstructure:"token_expiry"`      // 开发 token 有效期
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// TracingConfig OpenTelemetry 配置
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"` // OTLP/HTTP 地址，为空时输出到 stdout
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// QueueConfig 后台任务队列配置
type QueueConfig struct {
	Workers     int           `mapstructure:"workers"`
	Buffer      int           `mapstructure:"buffer"`
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
}

// StorageConfig 学习资料存储配置（ingest 命令读取）
type StorageConfig struct {
	Type  string       `mapstructure:"type"` // local, oss
	Local *LocalConfig `mapstructure:"local,omitempty"`
	OSS   *OSSConfig   `mapstructure:"oss,omitempty"`
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// OSSConfig 阿里云OSS配置
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`          // OSS端点
	Bucket          string `mapstructure:"bucket"`            // 存储桶名称
	AccessKeyID     string `mapstructure:"access_key_id"`     // 访问密钥ID
	AccessKeySecret string `mapstructure:"access_key_secret"` // 访问密钥Secret
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return errors.New("invalid server mode, must be debug/release/test")
	}

	validProviders := map[string]bool{"": true, "openai": true, "azure": true, "ark": true}
	if !validProviders[c.AI.Provider] {
		return errors.New("invalid ai provider, must be openai/azure/ark")
	}

	if strings.TrimSpace(c.Auth.JWTSecret) == "" && strings.TrimSpace(c.Auth.JWTPublicKey) == "" {
		return errors.New("auth.jwt_secret or auth.jwt_public_key is required")
	}

	if c.Vector.APIKey != "" && c.Vector.IndexName == "" && c.Vector.IndexHost == "" {
		return errors.New("vector.index_name or vector.index_host is required when vector.api_key is set")
	}

	if c.Chat.TopK < 0 || c.Chat.HistoryLimit < 0 || c.Chat.RecentTurns < 0 {
		return errors.New("chat limits must not be negative")
	}

	return nil
}
