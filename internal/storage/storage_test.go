package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"portfolio-chat/internal/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorageWithNothingEnabled(t *testing.T) {
	cfg := &config.Config{}
	cfg.Resume.Source = "file"
	cfg.Redis.Address = "localhost:6379" // 未配置 TTL 时不应连接

	s, err := NewStorage(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, s.Redis)
	assert.Nil(t, s.MinIO)
	s.Close()
}

// Redis 只是缓存，连不上时服务照常启动
func TestNewStorageDisablesUnreachableCache(t *testing.T) {
	cfg := &config.Config{}
	cfg.Chat.IntentCacheTTL = "10m"
	cfg.Redis.Address = "127.0.0.1:1"
	cfg.Redis.DialTimeoutSeconds = 1
	cfg.Redis.MaxRetries = -1

	s, err := NewStorage(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, s.Redis)
}

// MinIO 初始化失败时已经打开的 Redis 连接要一并关闭
func TestNewStorageClosesCacheWhenResumeStoreFails(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	orig := openIntentCache
	openIntentCache = func(cfg *config.RedisConfig) (*Redis, error) {
		return NewRedisFromClient(client, cfg), nil
	}
	defer func() { openIntentCache = orig }()

	cfg := &config.Config{}
	cfg.Chat.IntentCacheTTL = "10m"
	cfg.Redis.Address = "127.0.0.1:1"
	cfg.Resume.Source = "minio" // MinIO 未配置 endpoint，初始化必然失败

	_, err := NewStorage(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, client.Close(), redis.ErrClosed, "Redis 客户端应已被关闭")
}

func TestNewStorageRejectsNilConfig(t *testing.T) {
	_, err := NewStorage(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewMinIOValidatesConfig(t *testing.T) {
	_, err := NewMinIO(nil)
	assert.Error(t, err)
	_, err = NewMinIO(&config.MinIOConfig{})
	assert.Error(t, err)

	m, err := NewMinIO(&config.MinIOConfig{Endpoint: "localhost:9000", AccessKeyID: "a", SecretAccessKey: "b"})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestNewRedisAdapterValidatesConfig(t *testing.T) {
	_, err := NewRedisAdapter(nil)
	assert.Error(t, err)
	_, err = NewRedisAdapter(&config.RedisConfig{})
	assert.Error(t, err)
}

// TestRedisIntentRoundTrip 需要真实的 Redis，设置 TEST_REDIS_ADDR 后运行
func TestRedisIntentRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("未设置 TEST_REDIS_ADDR，跳过Redis集成测试")
	}

	r, err := NewRedisAdapter(&config.RedisConfig{Address: addr, DialTimeoutSeconds: 2})
	require.NoError(t, err)
	defer r.Close()

	ctx := context.Background()
	hash := uuid.NewString()

	_, err = r.GetIntent(ctx, hash)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, r.SetIntent(ctx, hash, "resume", time.Minute))
	label, err := r.GetIntent(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, "resume", label)
}
