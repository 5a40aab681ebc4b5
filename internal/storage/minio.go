package storage

import (
	"context"
	"fmt"
	"io"

	"portfolio-chat/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectReader 只读对象存储接口
type ObjectReader interface {
	// GetObject 读取整个对象
	GetObject(ctx context.Context, bucket, objectName string) ([]byte, error)
}

var _ ObjectReader = (*MinIO)(nil)

// MinIO 提供对象存储读取功能
type MinIO struct {
	client *minio.Client
	cfg    *config.MinIOConfig
}

// NewMinIO 创建MinIO客户端
func NewMinIO(cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("MinIO endpoint 不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}
	return &MinIO{client: client, cfg: cfg}, nil
}

// GetObject 读取整个对象
func (m *MinIO) GetObject(ctx context.Context, bucket, objectName string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", bucket, objectName, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s/%s 失败: %w", bucket, objectName, err)
	}
	return data, nil
}

// BucketExists 检查存储桶是否存在，启动时用于快速失败
func (m *MinIO) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return m.client.BucketExists(ctx, bucket)
}
