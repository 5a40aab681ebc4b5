package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// TaskIntentClassification 意图分类任务
	TaskIntentClassification = "intent_classification"
	// TaskChatCompletion 对话补全任务
	TaskChatCompletion = "chat_completion"

	defaultAPIURL = "https://api.openai.com/v1/chat/completions"
	// 分类依赖 json_schema 结构化输出，只有 gpt-4o-2024-08-06、gpt-4o-mini 及之后的模型支持
	defaultClassificationModel = "gpt-4o-mini"
	defaultMaxRetries          = 2
)

// Config 应用程序配置
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	Chat    ChatConfig    `yaml:"chat"`
	Resume  ResumeConfig  `yaml:"resume"`
	Redis   RedisConfig   `yaml:"redis"`
	MinIO   MinIOConfig   `yaml:"minio"`
	Tracing TracingConfig `yaml:"tracing"`
	Logger  LoggerConfig  `yaml:"logger"`
}

// ServerConfig 定义服务器配置
type ServerConfig struct {
	Address string   `yaml:"address"`  // 例如 ":8080"
	APIKeys []string `yaml:"api_keys"` // 非空时聊天接口要求 Bearer 鉴权
}

// LLMConfig 托管模型服务配置 (OpenAI 兼容接口)
type LLMConfig struct {
	APIKey           string            `yaml:"api_key"`
	APIURL           string            `yaml:"api_url"`
	Model            string            `yaml:"model"`
	TaskModels       map[string]string `yaml:"task_models"` // 任务专用模型
	Temperature      float64           `yaml:"temperature"`
	QPM              int               `yaml:"qpm"`                // 每分钟请求数限制
	MaxRetries       *int              `yaml:"max_retries"`        // 最大重试次数，显式写 0 表示不重试
	RetryWaitSeconds int               `yaml:"retry_wait_seconds"` // 首次重试等待时间(秒)
}

// Retries 返回模型调用的重试次数，未配置时使用默认值
func (c LLMConfig) Retries() int {
	if c.MaxRetries == nil {
		return defaultMaxRetries
	}
	if *c.MaxRetries < 0 {
		return 0
	}
	return *c.MaxRetries
}

// ChatConfig 对话工作流配置
type ChatConfig struct {
	ClassifyTimeout   string `yaml:"classify_timeout"`   // 例如 "15s"
	CompletionTimeout string `yaml:"completion_timeout"` // 例如 "30s"
	IntentCacheTTL    string `yaml:"intent_cache_ttl"`   // 为空则不缓存
}

// ResumeConfig 简历上下文来源
type ResumeConfig struct {
	Source string `yaml:"source"` // file | minio
	Path   string `yaml:"path"`   // source=file 时的相对路径
	Bucket string `yaml:"bucket"` // source=minio
	Object string `yaml:"object"` // source=minio
}

// RedisConfig holds configuration for Redis
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	// 超时设置
	DialTimeoutSeconds  int `yaml:"dial_timeout_seconds"`
	ReadTimeoutSeconds  int `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds"`
	MaxRetries          int `yaml:"max_retries"`
}

// MinIOConfig MinIO配置结构
type MinIOConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	UseSSL          bool   `yaml:"useSSL"`
}

// TracingConfig OpenTelemetry 配置，Endpoint 为空时不导出
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"` // OTLP gRPC 地址，例如 "localhost:4317"
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level        string `yaml:"level"`         // debug, info, warn, error
	Format       string `yaml:"format"`        // json, pretty
	TimeFormat   string `yaml:"time_format"`   // 时间格式
	ReportCaller bool   `yaml:"report_caller"` // 是否报告调用位置
}

// LoadConfig 从文件加载配置，并用环境变量覆盖模型凭据
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = findConfigFile()
	}

	// 没有配置文件时使用默认配置，凭据只能来自环境变量
	if configPath == "" {
		cfg := createDefaultConfig()
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	cfg, err := LoadConfigFromFileOnly(configPath)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadConfigFromFileOnly 从文件加载配置，不尝试从环境变量覆盖
func LoadConfigFromFileOnly(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("必须提供配置文件路径")
	}
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("配置文件不存在: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

func findConfigFile() string {
	searchPaths := []string{
		"config.yaml",
		"configs/config.yaml",
		filepath.Join(os.Getenv("HOME"), ".portfolio-chat", "config.yaml"),
	}
	if execPath, err := os.Executable(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(filepath.Dir(execPath), "config.yaml"))
	}
	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func applyEnvOverrides(cfg *Config) {
	if envKey := os.Getenv("OPENAI_API_KEY"); envKey != "" {
		cfg.LLM.APIKey = envKey
	}
	if envURL := os.Getenv("OPENAI_API_URL"); envURL != "" {
		cfg.LLM.APIURL = envURL
	}
	if envModel := os.Getenv("CHAT_MODEL"); envModel != "" {
		cfg.LLM.Model = envModel
	}
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.Server.Address = addr
	}
}

// applyDefaults 为未填写的字段设置默认值
func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.LLM.APIURL == "" {
		cfg.LLM.APIURL = defaultAPIURL
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.TaskModels == nil {
		cfg.LLM.TaskModels = map[string]string{}
	}
	if _, ok := cfg.LLM.TaskModels[TaskIntentClassification]; !ok {
		cfg.LLM.TaskModels[TaskIntentClassification] = defaultClassificationModel
	}
	if cfg.LLM.QPM <= 0 {
		cfg.LLM.QPM = 60
	}
	if cfg.LLM.MaxRetries == nil {
		retries := defaultMaxRetries
		cfg.LLM.MaxRetries = &retries
	}
	if cfg.LLM.RetryWaitSeconds <= 0 {
		cfg.LLM.RetryWaitSeconds = 1
	}
	if cfg.Chat.ClassifyTimeout == "" {
		cfg.Chat.ClassifyTimeout = "15s"
	}
	if cfg.Chat.CompletionTimeout == "" {
		cfg.Chat.CompletionTimeout = "30s"
	}
	if cfg.Resume.Source == "" {
		cfg.Resume.Source = "file"
	}
	if cfg.Resume.Path == "" {
		cfg.Resume.Path = filepath.Join("settings", "resume.json")
	}
	if cfg.Resume.Object == "" {
		cfg.Resume.Object = "resume.json"
	}
	if cfg.Tracing.SampleRatio <= 0 {
		cfg.Tracing.SampleRatio = 1
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "json"
	}
}

// 创建一个默认配置
func createDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Logger.Format = "pretty"
	cfg.Logger.TimeFormat = "2006-01-02 15:04:05"
	cfg.Logger.ReportCaller = true
	applyDefaults(cfg)
	return cfg
}

// CreateSampleConfig 创建一个示例配置文件
func CreateSampleConfig(filePath string) error {
	if _, err := os.Stat(filePath); err == nil {
		return fmt.Errorf("文件 '%s' 已存在，不会覆盖", filePath)
	}

	data, err := yaml.Marshal(createDefaultConfig())
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("写入示例配置文件 '%s' 失败: %w", filePath, err)
	}
	return nil
}

// GetModelForTask 根据任务名称获取合适的模型
// 如果任务专用模型存在则返回专用模型，否则返回默认模型
func (c *Config) GetModelForTask(taskName string) string {
	if c.LLM.TaskModels != nil {
		if model, ok := c.LLM.TaskModels[taskName]; ok && model != "" {
			return model
		}
	}
	return c.LLM.Model
}

// GetDuration utility to parse duration strings from config
func GetDuration(durationStr string, defaultDuration time.Duration) time.Duration {
	if durationStr == "" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return defaultDuration
	}
	return d
}
