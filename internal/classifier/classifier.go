package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"portfolio-chat/internal/llm"
	"portfolio-chat/internal/logger"
	"portfolio-chat/internal/storage"
	"portfolio-chat/internal/tracing"
	"portfolio-chat/internal/types"
	"portfolio-chat/pkg/utils"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrEmptyQuery 调用方传入了空白的查询
	ErrEmptyQuery = errors.New("查询内容为空")
	// ErrClassificationFailed 模型调用失败或输出无法解析
	ErrClassificationFailed = errors.New("意图分类失败")
)

const defaultTimeout = 15 * time.Second

const promptTemplate = `Analyze the following user query and determine what kind of task it is:

"%s"

Classify the query as one of the following types:
- 'resume': this query is related resume and professional experience
- 'non-resume': this query is NOT related to resume and professional experience

Explain why you chose that classification.`

// IntentCache 按查询哈希缓存分类标签，实现见 storage.Redis。未命中时返回 storage.ErrNotFound
type IntentCache interface {
	GetIntent(ctx context.Context, queryHash string) (string, error)
	SetIntent(ctx context.Context, queryHash, label string, ttl time.Duration) error
}

// Classifier 判断最新一条用户消息是否与简历相关
type Classifier struct {
	llmModel       model.BaseChatModel
	promptTemplate string
	timeout        time.Duration
	cache          IntentCache
	cacheTTL       time.Duration
}

// Option 分类器配置选项
type Option func(*Classifier)

// WithTimeout 设置单次分类的超时
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCache 启用意图缓存，ttl<=0 时不启用
func WithCache(cache IntentCache, ttl time.Duration) Option {
	return func(c *Classifier) {
		if cache != nil && ttl > 0 {
			c.cache = cache
			c.cacheTTL = ttl
		}
	}
}

// WithPromptTemplate 替换提示词，模板中必须有一个 %s 占位符
func WithPromptTemplate(tpl string) Option {
	return func(c *Classifier) {
		if strings.Contains(tpl, "%s") {
			c.promptTemplate = tpl
		}
	}
}

// New 创建分类器
func New(llmModel model.BaseChatModel, opts ...Option) *Classifier {
	c := &Classifier{
		llmModel:       llmModel,
		promptTemplate: promptTemplate,
		timeout:        defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify 返回查询的分类。分类失败时返回包装了 ErrClassificationFailed 的错误，不做降级
func (c *Classifier) Classify(ctx context.Context, query string) (types.Category, error) {
	if strings.TrimSpace(query) == "" {
		return 0, ErrEmptyQuery
	}
	if c.llmModel == nil {
		return 0, fmt.Errorf("%w: 模型未初始化", ErrClassificationFailed)
	}

	ctx, span := otel.Tracer("portfolio-chat/classifier").Start(ctx, "classifier.Classify")
	defer span.End()
	span.SetAttributes(attribute.String("query", tracing.SafeQuery(query)))

	log := logger.Ctx(ctx)
	hash := utils.QueryFingerprint(query)

	if category, ok := c.lookup(ctx, hash); ok {
		span.SetAttributes(attribute.String("category", category.String()), attribute.Bool("cache_hit", true))
		log.Debug().Str("category", category.String()).Msg("意图缓存命中")
		return category, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	messages := []*einoschema.Message{
		einoschema.UserMessage(fmt.Sprintf(c.promptTemplate, query)),
	}
	response, err := c.llmModel.Generate(callCtx, messages,
		model.WithTemperature(0),
		llm.WithResponseFormat(classificationResponseFormat()),
	)
	if err != nil {
		errType := tracing.ErrorTypeClassification
		if errors.Is(err, context.DeadlineExceeded) {
			errType = tracing.ErrorTypeTimeout
		}
		tracing.RecordError(span, err, errType)
		log.Error().Err(err).Dur("latency", time.Since(start)).Msg("意图分类模型调用失败")
		return 0, fmt.Errorf("%w: %w", ErrClassificationFailed, err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		err := fmt.Errorf("%w: 模型返回空响应", ErrClassificationFailed)
		tracing.RecordError(span, err, tracing.ErrorTypeClassification)
		return 0, err
	}

	result, category, err := parseClassification(response.Content)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeClassification)
		log.Error().Err(err).Str("content", tracing.TruncateString(response.Content, 200)).Msg("意图分类结果无法解析")
		return 0, err
	}

	span.SetAttributes(attribute.String("category", category.String()), attribute.Bool("cache_hit", false))
	log.Debug().
		Str("category", category.String()).
		Str("reasoning", result.Reasoning).
		Dur("latency", time.Since(start)).
		Msg("意图分类完成")

	c.store(ctx, hash, category)
	return category, nil
}

func (c *Classifier) lookup(ctx context.Context, hash string) (types.Category, bool) {
	if c.cache == nil {
		return 0, false
	}
	label, err := c.cache.GetIntent(ctx, hash)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false
	}
	if err != nil {
		// 缓存故障按未命中处理
		tracing.RecordError(trace.SpanFromContext(ctx), err, tracing.ErrorTypeRedis)
		logger.Ctx(ctx).Warn().Err(err).Msg("读取意图缓存失败")
		return 0, false
	}
	category, err := types.ParseCategory(label)
	if err != nil {
		logger.Ctx(ctx).Warn().Str("label", label).Msg("缓存中的意图标签无效，忽略")
		return 0, false
	}
	return category, true
}

func (c *Classifier) store(ctx context.Context, hash string, category types.Category) {
	if c.cache == nil {
		return
	}
	if err := c.cache.SetIntent(ctx, hash, category.String(), c.cacheTTL); err != nil {
		tracing.RecordError(trace.SpanFromContext(ctx), err, tracing.ErrorTypeRedis)
		logger.Ctx(ctx).Warn().Err(err).Msg("写入意图缓存失败")
	}
}

// parseClassification 解析模型输出，容忍 ```json 代码块
func parseClassification(content string) (*types.ClassificationResult, types.Category, error) {
	jsonStr := extractJSON(strings.TrimPrefix(content, "\uFEFF"))
	if jsonStr == "" {
		return nil, 0, fmt.Errorf("%w: 响应中没有 JSON 对象", ErrClassificationFailed)
	}

	var result types.ClassificationResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}

	category, err := types.ParseCategory(result.Type)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}
	return &result, category, nil
}

func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	if !strings.HasPrefix(text, "{") || !strings.HasSuffix(text, "}") {
		return ""
	}
	return text
}
