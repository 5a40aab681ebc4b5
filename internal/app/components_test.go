package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"portfolio-chat/internal/config"
	"portfolio-chat/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LLM.APIKey = "test-key"
	cfg.LLM.APIURL = "http://127.0.0.1:0/v1/chat/completions"
	cfg.Chat.ClassifyTimeout = "5s"
	cfg.Chat.CompletionTimeout = "10s"
	cfg.Resume.Source = "file"
	cfg.Resume.Path = "resume.json"
	return cfg
}

func TestBuild(t *testing.T) {
	components, err := Build(context.Background(), baseConfig())
	require.NoError(t, err)
	defer components.Close()

	assert.NotNil(t, components.Classifier)
	assert.NotNil(t, components.Loader)
	assert.NotNil(t, components.Router)
	assert.Nil(t, components.Storage.Redis, "未配置缓存时不连接 Redis")
	assert.Nil(t, components.Storage.MinIO)
}

func TestBuildRequiresAPIKey(t *testing.T) {
	cfg := baseConfig()
	cfg.LLM.APIKey = ""

	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}

func TestBuildRejectsUnknownResumeSource(t *testing.T) {
	cfg := baseConfig()
	cfg.Resume.Source = "ftp"

	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}

// TestBuildDefaultClassifierUsesStructuredOutputModel 只配置凭据时，分类请求必须落到支持 json_schema 的模型上
func TestBuildDefaultClassifierUsesStructuredOutputModel(t *testing.T) {
	type sentRequest struct {
		Model          string `json:"model"`
		ResponseFormat struct {
			Type       string `json:"type"`
			JSONSchema struct {
				Strict bool `json:"strict"`
			} `json:"json_schema"`
		} `json:"response_format"`
	}
	var sent sentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"1","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"{\"type\":\"resume\",\"reasoning\":\"asks about skills\"}"}}]}`)
	}))
	defer srv.Close()

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	raw := "llm:\n  api_key: \"test-key\"\n  api_url: \"" + srv.URL + "/v1/chat/completions\"\n"
	require.NoError(t, os.WriteFile(configPath, []byte(raw), 0644))
	cfg, err := config.LoadConfigFromFileOnly(configPath)
	require.NoError(t, err)

	components, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer components.Close()

	category, err := components.Classifier.Classify(context.Background(), "What languages do you know?")
	require.NoError(t, err)
	assert.Equal(t, types.CategoryResume, category)

	assert.Equal(t, "gpt-4o-mini", sent.Model)
	assert.Equal(t, "json_schema", sent.ResponseFormat.Type)
	assert.True(t, sent.ResponseFormat.JSONSchema.Strict)
}
