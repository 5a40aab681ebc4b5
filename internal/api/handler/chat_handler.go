package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"portfolio-chat/internal/classifier"
	"portfolio-chat/internal/logger"
	"portfolio-chat/internal/resume"
	"portfolio-chat/internal/tracing"
	"portfolio-chat/internal/types"
	"portfolio-chat/internal/workflow"

	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrMalformedRequest 请求体无法解析或字段不合法
var ErrMalformedRequest = errors.New("请求格式错误")

// ChatWorkflow 见 workflow.Router
type ChatWorkflow interface {
	Handle(ctx context.Context, transcript types.Transcript) (*workflow.Reply, error)
	Complete(ctx context.Context, transcript types.Transcript) (string, types.Category, error)
}

// WorkflowRequest POST /api/workflow 的请求体
type WorkflowRequest struct {
	Messages types.Transcript `json:"messages"`
}

// ChatRequest POST /api/chat 的请求体
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse POST /api/chat 的响应体
type ChatResponse struct {
	Response string `json:"response"`
	Category string `json:"category,omitempty"`
}

// ChatHandler 处理对话请求
type ChatHandler struct {
	workflow ChatWorkflow
}

// NewChatHandler 创建 ChatHandler
func NewChatHandler(wf ChatWorkflow) *ChatHandler {
	return &ChatHandler{workflow: wf}
}

// HandleWorkflow 流式返回回答
// POST /api/workflow?protocol=data|text
func (h *ChatHandler) HandleWorkflow(ctx context.Context, c *app.RequestContext) {
	log := logger.Ctx(ctx)
	span := trace.SpanFromContext(ctx)

	enc, err := encoderFor(c.Query("protocol"))
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}

	var req WorkflowRequest
	if err := decodeBody(c.Request.Body(), &req); err != nil {
		h.writeError(ctx, c, err)
		return
	}
	if err := req.Messages.Validate(); err != nil {
		h.writeError(ctx, c, fmt.Errorf("%w: %v", ErrMalformedRequest, err))
		return
	}
	if latest, ok := req.Messages.Latest(); ok {
		span.SetAttributes(attribute.String("query", tracing.SafeQuery(latest.Content)))
	}

	reply, err := h.workflow.Handle(ctx, req.Messages)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	if reply.Empty {
		// 没有可回答的内容，返回空响应体
		c.SetStatusCode(consts.StatusOK)
		return
	}

	// 先同步读到第一个分片，这样上游在输出前失败时仍能返回错误状态码
	first, err := reply.Stream.Recv()
	if err != nil && !errors.Is(err, io.EOF) {
		reply.Close()
		h.writeError(ctx, c, fmt.Errorf("%w: %w", workflow.ErrCompletionFailed, err))
		return
	}
	if errors.Is(err, io.EOF) {
		first = nil
	}

	c.SetStatusCode(consts.StatusOK)
	c.SetContentType(enc.ContentType())
	c.Response.Header.Set("Cache-Control", "no-cache")
	for k, v := range enc.Headers() {
		c.Response.Header.Set(k, v)
	}

	pr, pw := io.Pipe()
	go relay(ctx, reply, first, enc, pw)
	c.SetBodyStream(pr, -1)

	log.Debug().
		Str("category", reply.Category.String()).
		Str("path", string(reply.Path)).
		Msg("回答开始流式返回")
}

// relay 把模型输出写入管道，hertz 以 chunked 方式发送管道内容。
// 客户端断开后写入失败，此时关闭 reply 以取消上游请求。
// 处理函数返回时请求 span 已结束，输出阶段单独记一个子 span。
func relay(ctx context.Context, reply *workflow.Reply, first *schema.Message, enc streamEncoder, pw *io.PipeWriter) {
	defer reply.Close()
	ctx, span := otel.Tracer("portfolio-chat/handler").Start(ctx, "workflow.relay")
	defer span.End()
	log := logger.Ctx(ctx)

	chunks := 0
	defer func() { span.SetAttributes(attribute.Int("chunks", chunks)) }()

	if err := enc.Start(pw, "msg-"+uuid.NewString()); err != nil {
		pw.CloseWithError(err)
		return
	}

	if first != nil {
		if err := enc.Text(pw, first.Content); err != nil {
			log.Info().Err(err).Msg("客户端已断开，停止输出")
			pw.CloseWithError(err)
			return
		}
		chunks++

		for {
			msg, err := reply.Stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				log.Error().Err(err).Int("chunks", chunks).Msg("流式输出中断")
				tracing.RecordError(span, err, tracing.ErrorTypeCompletion)
				if inBand, werr := enc.Error(pw, "生成回答时出错，请稍后重试"); inBand && werr == nil {
					pw.Close()
				} else {
					pw.CloseWithError(fmt.Errorf("%w: %v", workflow.ErrCompletionFailed, err))
				}
				return
			}
			if msg == nil || msg.Content == "" {
				continue
			}
			if err := enc.Text(pw, msg.Content); err != nil {
				log.Info().Err(err).Int("chunks", chunks).Msg("客户端已断开，停止输出")
				pw.CloseWithError(err)
				return
			}
			chunks++
		}
	}

	if err := enc.Finish(pw); err != nil {
		pw.CloseWithError(err)
		return
	}
	log.Info().Int("chunks", chunks).Msg("回答输出完成")
	pw.Close()
}

// HandleChat 单轮对话，等待完整回答后返回 JSON
// POST /api/chat
func (h *ChatHandler) HandleChat(ctx context.Context, c *app.RequestContext) {
	var req ChatRequest
	if err := decodeBody(c.Request.Body(), &req); err != nil {
		h.writeError(ctx, c, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		h.writeError(ctx, c, fmt.Errorf("%w: message 不能为空", ErrMalformedRequest))
		return
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("query", tracing.SafeQuery(req.Message)))

	transcript := types.Transcript{{Role: types.RoleUser, Content: req.Message}}
	answer, category, err := h.workflow.Complete(ctx, transcript)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}

	resp := ChatResponse{Response: answer}
	if category != types.CategoryUnclassified {
		resp.Category = category.String()
	}
	c.JSON(consts.StatusOK, resp)
}

// HandleHealth 健康检查
// GET /api/health
func (h *ChatHandler) HandleHealth(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"status": "ok"})
}

func decodeBody(body []byte, dest any) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		return fmt.Errorf("%w: 请求体为空", ErrMalformedRequest)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	return nil
}

// statusFor 把错误映射为 HTTP 状态码和返回给客户端的信息。
// 上游和内部错误不向客户端暴露细节。
func statusFor(err error) (int, string, tracing.ErrorType) {
	switch {
	case errors.Is(err, ErrMalformedRequest):
		return consts.StatusBadRequest, err.Error(), tracing.ErrorTypeValidation
	case errors.Is(err, resume.ErrContextUnavailable):
		return consts.StatusInternalServerError, "服务暂时不可用", tracing.ErrorTypeContext
	case errors.Is(err, context.DeadlineExceeded):
		return consts.StatusGatewayTimeout, "模型服务响应超时", tracing.ErrorTypeTimeout
	case errors.Is(err, classifier.ErrClassificationFailed):
		return consts.StatusBadGateway, "无法识别问题类型，请稍后重试", tracing.ErrorTypeClassification
	case errors.Is(err, workflow.ErrCompletionFailed):
		return consts.StatusBadGateway, "生成回答失败，请稍后重试", tracing.ErrorTypeCompletion
	default:
		return consts.StatusInternalServerError, "内部错误", tracing.ErrorTypeInternal
	}
}

func (h *ChatHandler) writeError(ctx context.Context, c *app.RequestContext, err error) {
	status, msg, errType := statusFor(err)
	tracing.RecordError(trace.SpanFromContext(ctx), err, errType, attribute.Int("http.status_code", status))

	ev := logger.Ctx(ctx).Warn()
	if status >= consts.StatusInternalServerError {
		ev = logger.Ctx(ctx).Error()
	}
	ev.Err(err).Int("status", status).Str("error_type", string(errType)).Msg("请求处理失败")

	c.JSON(status, utils.H{"error": msg})
}
