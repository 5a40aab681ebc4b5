package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644), "无法写入临时配置文件")
	return configPath
}

// TestLoadConfigWithTaskModels 验证任务模型映射能被正确加载并覆盖默认值
func TestLoadConfigWithTaskModels(t *testing.T) {
	configPath := writeTempConfig(t, `
llm:
  api_key: "file-key"
  model: "gpt-4o-mini"
  task_models:
    intent_classification: "gpt-4o"
chat:
  completion_timeout: "45s"
`)

	cfg, err := LoadConfigFromFileOnly(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "gpt-4o", cfg.GetModelForTask(TaskIntentClassification))
	assert.Equal(t, "gpt-4o-mini", cfg.GetModelForTask(TaskChatCompletion), "未配置的任务应回退到默认模型")
	assert.Equal(t, 45*time.Second, GetDuration(cfg.Chat.CompletionTimeout, time.Second))
	assert.Equal(t, "15s", cfg.Chat.ClassifyTimeout, "未配置的超时应使用默认值")
}

// TestLoadConfigDefaults 验证空配置文件也能得到完整的默认值
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfigFromFileOnly(writeTempConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, defaultAPIURL, cfg.LLM.APIURL)
	assert.Equal(t, "gpt-4o-mini", cfg.GetModelForTask(TaskIntentClassification), "分类默认模型必须支持 json_schema 结构化输出")
	assert.Equal(t, 2, cfg.LLM.Retries())
	assert.Equal(t, "file", cfg.Resume.Source)
	assert.Equal(t, filepath.Join("settings", "resume.json"), cfg.Resume.Path)
	assert.Empty(t, cfg.Chat.IntentCacheTTL, "缓存默认关闭")
	assert.Empty(t, cfg.Server.APIKeys)
}

// TestLoadConfigEnvOverrides 验证环境变量覆盖文件中的凭据
func TestLoadConfigEnvOverrides(t *testing.T) {
	configPath := writeTempConfig(t, `
llm:
  api_key: "file-key"
  api_url: "http://file.example/v1/chat/completions"
`)
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("OPENAI_API_URL", "")
	t.Setenv("CHAT_MODEL", "env-model")

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, "http://file.example/v1/chat/completions", cfg.LLM.APIURL, "空环境变量不应覆盖")
	assert.Equal(t, "env-model", cfg.LLM.Model)

	fileOnly, err := LoadConfigFromFileOnly(configPath)
	require.NoError(t, err)
	assert.Equal(t, "file-key", fileOnly.LLM.APIKey)
}

// TestLoadConfigZeroRetries 验证显式配置 0 次重试不会被默认值覆盖
func TestLoadConfigZeroRetries(t *testing.T) {
	cfg, err := LoadConfigFromFileOnly(writeTempConfig(t, "llm:\n  max_retries: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.LLM.MaxRetries)
	assert.Equal(t, 0, *cfg.LLM.MaxRetries)
	assert.Equal(t, 0, cfg.LLM.Retries())

	assert.Equal(t, 2, LLMConfig{}.Retries(), "未经 LoadConfig 的配置也使用默认值")
	negative := -1
	assert.Equal(t, 0, LLMConfig{MaxRetries: &negative}.Retries())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfigFromFileOnly(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = LoadConfigFromFileOnly("")
	assert.Error(t, err)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	_, err := LoadConfigFromFileOnly(writeTempConfig(t, "server: [unclosed\n"))
	assert.Error(t, err)
}

func TestCreateSampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yaml")
	require.NoError(t, CreateSampleConfig(path))

	cfg, err := LoadConfigFromFileOnly(path)
	require.NoError(t, err)
	assert.Equal(t, "pretty", cfg.Logger.Format)

	assert.Error(t, CreateSampleConfig(path), "已存在的文件不应被覆盖")
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 3*time.Second, GetDuration("", 3*time.Second))
	assert.Equal(t, 3*time.Second, GetDuration("bogus", 3*time.Second))
	assert.Equal(t, 250*time.Millisecond, GetDuration("250ms", 3*time.Second))
}
