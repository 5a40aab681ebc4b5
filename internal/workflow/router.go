package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"portfolio-chat/internal/logger"
	"portfolio-chat/internal/resume"
	"portfolio-chat/internal/tracing"
	"portfolio-chat/internal/types"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrCompletionFailed 补全模型调用失败
	ErrCompletionFailed = errors.New("生成回答失败")
	// ErrUnknownCategory 分类结果不在已知集合内
	ErrUnknownCategory = errors.New("未知的意图分类")
)

const defaultCompletionTimeout = 30 * time.Second

// State 一次请求的处理阶段
type State string

const (
	StateIdle        State = "idle"
	StateClassifying State = "classifying"
	StateAugmenting  State = "augmenting"
	StatePassThrough State = "pass_through"
	StateStreaming   State = "streaming"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// IntentClassifier 见 classifier.Classifier
type IntentClassifier interface {
	Classify(ctx context.Context, query string) (types.Category, error)
}

// ContextLoader 见 resume.Loader
type ContextLoader interface {
	Load(ctx context.Context) (*types.ResumeDocument, error)
}

// Router 按意图决定是否注入简历，然后把对话交给补全模型
type Router struct {
	classifier IntentClassifier
	loader     ContextLoader
	chatModel  model.BaseChatModel
	modelOpts  []model.Option
	timeout    time.Duration
}

// Option 路由配置选项
type Option func(*Router)

// WithCompletionTimeout 设置补全调用（含流式读取）的总超时
func WithCompletionTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithModelOptions 每次补全调用附带的模型选项，例如温度
func WithModelOptions(opts ...model.Option) Option {
	return func(r *Router) {
		r.modelOpts = append(r.modelOpts, opts...)
	}
}

// NewRouter 创建路由
func NewRouter(classifier IntentClassifier, loader ContextLoader, chatModel model.BaseChatModel, opts ...Option) *Router {
	r := &Router{
		classifier: classifier,
		loader:     loader,
		chatModel:  chatModel,
		timeout:    defaultCompletionTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reply 一次请求的结果。Empty 为 true 时没有任何模型调用，Stream 为 nil
type Reply struct {
	Empty    bool
	Category types.Category
	// Path 最终经过的分支：augmenting 或 pass_through
	Path   State
	Stream *schema.StreamReader[*schema.Message]

	once   sync.Once
	cancel context.CancelFunc
}

// Close 关闭流并释放补全超时，可以重复调用
func (r *Reply) Close() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		if r.Stream != nil {
			r.Stream.Close()
		}
		if r.cancel != nil {
			r.cancel()
		}
	})
}

type run struct {
	state State
	ctx   context.Context
}

func (r *run) transition(next State) {
	logger.Ctx(r.ctx).Debug().Str("from", string(r.state)).Str("to", string(next)).Msg("工作流状态变更")
	r.state = next
}

// Handle 处理一次对话请求，调用方必须在读完或放弃 Reply.Stream 后调用 Reply.Close。
// 传入的 transcript 不会被修改。
func (rt *Router) Handle(ctx context.Context, transcript types.Transcript) (*Reply, error) {
	latest, ok := transcript.Latest()
	if !ok || strings.TrimSpace(latest.Content) == "" {
		logger.Ctx(ctx).Debug().Int("turns", len(transcript)).Msg("没有可处理的消息，直接返回")
		return &Reply{Empty: true, Category: types.CategoryUnclassified, Path: StateIdle}, nil
	}

	ctx, span := otel.Tracer("portfolio-chat/workflow").Start(ctx, "workflow.Handle")
	defer span.End()
	span.SetAttributes(attribute.Int("turns", len(transcript)))

	st := &run{state: StateIdle, ctx: ctx}
	fail := func(err error, errType tracing.ErrorType) (*Reply, error) {
		st.transition(StateFailed)
		tracing.RecordError(span, err, errType)
		return nil, err
	}

	st.transition(StateClassifying)
	category, err := rt.classifier.Classify(ctx, latest.Content)
	if err != nil {
		return fail(err, tracing.ErrorTypeClassification)
	}
	span.SetAttributes(attribute.String("category", category.String()))

	var final types.Transcript
	switch category {
	case types.CategoryResume:
		st.transition(StateAugmenting)
		doc, err := rt.loader.Load(ctx)
		if err != nil {
			return fail(err, tracing.ErrorTypeContext)
		}
		system, err := resume.BuildSystemInstruction(doc)
		if err != nil {
			return fail(err, tracing.ErrorTypeContext)
		}
		final = transcript.Prepend(system)
	case types.CategoryNonResume:
		st.transition(StatePassThrough)
		final = transcript.Clone()
	default:
		return fail(fmt.Errorf("%w: %s", ErrUnknownCategory, category), tracing.ErrorTypeInternal)
	}
	path := st.state

	st.transition(StateStreaming)
	completionCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rt.timeout)
	// 客户端断开时取消上游请求
	stop := context.AfterFunc(ctx, cancel)

	stream, err := rt.chatModel.Stream(completionCtx, final.ToMessages(), rt.modelOpts...)
	if err != nil {
		stop()
		cancel()
		errType := tracing.ErrorTypeCompletion
		if errors.Is(err, context.DeadlineExceeded) {
			errType = tracing.ErrorTypeTimeout
		}
		return fail(fmt.Errorf("%w: %w", ErrCompletionFailed, err), errType)
	}

	logger.Ctx(ctx).Info().
		Str("category", category.String()).
		Str("path", string(path)).
		Int("turns", len(final)).
		Msg("开始流式输出回答")

	return &Reply{
		Category: category,
		Path:     path,
		Stream:   stream,
		cancel: func() {
			stop()
			cancel()
		},
	}, nil
}

// Complete 与 Handle 相同，但把流式结果拼接成完整文本
func (rt *Router) Complete(ctx context.Context, transcript types.Transcript) (string, types.Category, error) {
	reply, err := rt.Handle(ctx, transcript)
	if err != nil {
		return "", types.CategoryUnclassified, err
	}
	defer reply.Close()
	if reply.Empty {
		return "", types.CategoryUnclassified, nil
	}

	var chunks []*schema.Message
	for {
		chunk, err := reply.Stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", reply.Category, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
		}
		chunks = append(chunks, chunk)
	}
	if len(chunks) == 0 {
		return "", reply.Category, nil
	}

	msg, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", reply.Category, fmt.Errorf("%w: 拼接回答失败: %v", ErrCompletionFailed, err)
	}
	return msg.Content, reply.Category, nil
}
