package app

import (
	"context"
	"fmt"
	"time"

	"portfolio-chat/internal/classifier"
	"portfolio-chat/internal/config"
	"portfolio-chat/internal/llm"
	"portfolio-chat/internal/logger"
	"portfolio-chat/internal/resume"
	"portfolio-chat/internal/storage"
	"portfolio-chat/internal/workflow"
	"portfolio-chat/pkg/ratelimit"

	"github.com/cloudwego/eino/components/model"
)

// Components 服务运行需要的全部组件
type Components struct {
	Storage    *storage.Storage
	Classifier *classifier.Classifier
	Loader     *resume.Loader
	Router     *workflow.Router
}

// Close 释放外部连接
func (c *Components) Close() {
	if c == nil {
		return
	}
	c.Storage.Close()
}

// newTaskModel 按任务选择模型，并包上限流与重试
func newTaskModel(cfg *config.Config, task string) (model.BaseChatModel, error) {
	modelName := cfg.GetModelForTask(task)
	m, err := llm.NewOpenAIChatModel(cfg.LLM.APIKey, modelName, cfg.LLM.APIURL)
	if err != nil {
		return nil, fmt.Errorf("初始化模型 %s (%s) 失败: %w", task, modelName, err)
	}
	retryWait := time.Duration(cfg.LLM.RetryWaitSeconds) * time.Second
	return ratelimit.NewLLMWithRateLimit(m, cfg.LLM.QPM, cfg.LLM.Retries(), retryWait), nil
}

// Build 根据配置组装存储、分类器、简历加载器和路由
func Build(ctx context.Context, cfg *config.Config) (*Components, error) {
	store, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化存储失败: %w", err)
	}

	classifyModel, err := newTaskModel(cfg, config.TaskIntentClassification)
	if err != nil {
		store.Close()
		return nil, err
	}
	chatModel, err := newTaskModel(cfg, config.TaskChatCompletion)
	if err != nil {
		store.Close()
		return nil, err
	}

	classifierOpts := []classifier.Option{
		classifier.WithTimeout(config.GetDuration(cfg.Chat.ClassifyTimeout, 15*time.Second)),
	}
	if store.Redis != nil {
		ttl := config.GetDuration(cfg.Chat.IntentCacheTTL, 0)
		classifierOpts = append(classifierOpts, classifier.WithCache(store.Redis, ttl))
		logger.Info().Dur("ttl", ttl).Msg("意图缓存已接入分类器")
	}
	cls := classifier.New(classifyModel, classifierOpts...)

	var objects storage.ObjectReader
	if store.MinIO != nil {
		objects = store.MinIO
	}
	loader, err := resume.NewLoaderFromConfig(&cfg.Resume, objects)
	if err != nil {
		store.Close()
		return nil, err
	}

	routerOpts := []workflow.Option{
		workflow.WithCompletionTimeout(config.GetDuration(cfg.Chat.CompletionTimeout, 30*time.Second)),
	}
	if cfg.LLM.Temperature > 0 {
		routerOpts = append(routerOpts, workflow.WithModelOptions(model.WithTemperature(float32(cfg.LLM.Temperature))))
	}
	router := workflow.NewRouter(cls, loader, chatModel, routerOpts...)

	return &Components{
		Storage:    store,
		Classifier: cls,
		Loader:     loader,
		Router:     router,
	}, nil
}
