package storage

import (
	"context"
	"fmt"
	"time"

	"portfolio-chat/internal/config"
	"portfolio-chat/internal/logger"
)

// Storage 存储管理器，聚合所有可选的外部存储
type Storage struct {
	// 意图缓存，未启用时为 nil
	Redis *Redis

	// 简历对象存储，resume.source=minio 时才初始化
	MinIO *MinIO
}

// openIntentCache 建立意图缓存连接，测试中可替换
var openIntentCache = NewRedisAdapter

// NewStorage 创建存储管理器。
// Redis 只是缓存，初始化失败时记录警告并继续；简历来源配置为 MinIO 时初始化失败直接返回错误。
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	s := &Storage{}
	var err error

	if cfg.Chat.IntentCacheTTL != "" && cfg.Redis.Address != "" {
		s.Redis, err = openIntentCache(&cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化Redis失败，意图缓存已禁用")
			s.Redis = nil
		} else {
			logger.Info().Str("address", cfg.Redis.Address).Msg("Redis意图缓存已启用")
		}
	}

	if cfg.Resume.Source == "minio" {
		s.MinIO, err = NewMinIO(&cfg.MinIO)
		if err != nil {
			s.Close()
			return nil, err
		}
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		ok, err := s.MinIO.BucketExists(checkCtx, cfg.Resume.Bucket)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("检查简历存储桶失败: %w", err)
		}
		if !ok {
			s.Close()
			return nil, fmt.Errorf("简历存储桶 %s 不存在", cfg.Resume.Bucket)
		}
		logger.Info().Str("bucket", cfg.Resume.Bucket).Msg("MinIO简历来源已就绪")
	}

	return s, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s == nil {
		return
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭Redis失败")
		}
	}
}
