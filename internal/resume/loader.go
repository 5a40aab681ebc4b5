package resume

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"portfolio-chat/internal/config"
	"portfolio-chat/internal/logger"
	"portfolio-chat/internal/storage"
	"portfolio-chat/internal/types"
)

// DefaultPath 简历文件的默认相对路径
var DefaultPath = filepath.Join("settings", "resume.json")

// ErrContextUnavailable 简历上下文无法读取或解析
var ErrContextUnavailable = errors.New("简历上下文不可用")

// Source 简历原始数据来源
type Source interface {
	Read(ctx context.Context) ([]byte, error)
	// Describe 用于日志
	Describe() string
}

// FileSource 从本地文件读取，相对路径基于进程工作目录
type FileSource struct {
	Path string
}

func (s FileSource) Read(ctx context.Context) ([]byte, error) {
	path := s.Path
	if path == "" {
		path = DefaultPath
	}
	return os.ReadFile(path)
}

func (s FileSource) Describe() string {
	if s.Path == "" {
		return "file:" + DefaultPath
	}
	return "file:" + s.Path
}

// ObjectSource 从对象存储读取
type ObjectSource struct {
	Reader storage.ObjectReader
	Bucket string
	Object string
}

func (s ObjectSource) Read(ctx context.Context) ([]byte, error) {
	if s.Reader == nil {
		return nil, fmt.Errorf("对象存储未初始化")
	}
	return s.Reader.GetObject(ctx, s.Bucket, s.Object)
}

func (s ObjectSource) Describe() string {
	return fmt.Sprintf("object:%s/%s", s.Bucket, s.Object)
}

// Loader 每次请求重新读取简历，不做缓存，修改文件后无需重启
type Loader struct {
	source Source
}

// NewLoader 创建加载器
func NewLoader(source Source) *Loader {
	if source == nil {
		source = FileSource{}
	}
	return &Loader{source: source}
}

// NewLoaderFromConfig 根据 resume.source 选择来源
func NewLoaderFromConfig(cfg *config.ResumeConfig, objects storage.ObjectReader) (*Loader, error) {
	switch cfg.Source {
	case "", "file":
		return NewLoader(FileSource{Path: cfg.Path}), nil
	case "minio":
		if objects == nil {
			return nil, fmt.Errorf("resume.source=minio 但未配置对象存储")
		}
		if cfg.Bucket == "" || cfg.Object == "" {
			return nil, fmt.Errorf("resume.source=minio 需要 bucket 和 object")
		}
		return NewLoader(ObjectSource{Reader: objects, Bucket: cfg.Bucket, Object: cfg.Object}), nil
	default:
		return nil, fmt.Errorf("未知的简历来源: %q", cfg.Source)
	}
}

// Load 读取并解析简历，失败时返回包装了 ErrContextUnavailable 的错误
func (l *Loader) Load(ctx context.Context) (*types.ResumeDocument, error) {
	raw, err := l.source.Read(ctx)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("source", l.source.Describe()).Msg("读取简历失败")
		return nil, fmt.Errorf("%w: 读取 %s 失败: %v", ErrContextUnavailable, l.source.Describe(), err)
	}

	doc, err := types.ParseResumeDocument(raw)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("source", l.source.Describe()).Msg("解析简历失败")
		return nil, fmt.Errorf("%w: %v", ErrContextUnavailable, err)
	}
	return doc, nil
}
