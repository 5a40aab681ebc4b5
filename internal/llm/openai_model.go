package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"portfolio-chat/internal/logger"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	defaultAPIURL    = "https://api.openai.com/v1/chat/completions"
	defaultModelName = "gpt-4o-mini"

	sseDataPrefix = "data:"
	sseDone       = "[DONE]"
)

// --- OpenAI Compatible Structures ---

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	Stop           []string        `json:"stop,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type chatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	Delta        chatMessage `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type apiErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type chatCompletionResponse struct {
	ID      string                 `json:"id"`
	Model   string                 `json:"model"`
	Choices []chatCompletionChoice `json:"choices"`
	Error   *apiErrorBody          `json:"error,omitempty"`
}

// OpenAIChatModel 实现了 eino 的 model.BaseChatModel，
// 对接任何 OpenAI 兼容的 /chat/completions 接口。
type OpenAIChatModel struct {
	apiKey     string
	modelName  string
	apiURL     string
	httpClient *http.Client
}

// ModelOption 构造选项
type ModelOption func(*OpenAIChatModel)

// WithHTTPClient 替换默认的 HTTP 客户端
func WithHTTPClient(c *http.Client) ModelOption {
	return func(m *OpenAIChatModel) {
		if c != nil {
			m.httpClient = c
		}
	}
}

// NewOpenAIChatModel 创建一个新的 OpenAIChatModel 实例。
func NewOpenAIChatModel(apiKey, modelName, apiURL string, opts ...ModelOption) (*OpenAIChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}

	mn := modelName
	if strings.TrimSpace(mn) == "" {
		mn = defaultModelName
	}
	url := apiURL
	if strings.TrimSpace(url) == "" {
		url = defaultAPIURL
	}

	m := &OpenAIChatModel{
		apiKey:    apiKey,
		modelName: mn,
		apiURL:    url,
		// 超时由调用方的 context 控制，流式响应不能设置整体超时
		httpClient: &http.Client{Transport: http.DefaultTransport},
	}
	for _, opt := range opts {
		opt(m)
	}

	logger.Info().Str("api_url", url).Str("model", mn).Msg("托管模型客户端已创建")
	return m, nil
}

// ModelName 返回默认模型名
func (m *OpenAIChatModel) ModelName() string {
	return m.modelName
}

func (m *OpenAIChatModel) buildRequest(messages []*schema.Message, stream bool, opts ...model.Option) chatCompletionRequest {
	common := model.GetCommonOptions(&model.Options{Model: &m.modelName}, opts...)
	specific := model.GetImplSpecificOptions(&options{}, opts...)

	req := chatCompletionRequest{
		Model:          m.modelName,
		Messages:       make([]chatMessage, 0, len(messages)),
		Temperature:    common.Temperature,
		MaxTokens:      common.MaxTokens,
		Stop:           common.Stop,
		Stream:         stream,
		ResponseFormat: specific.ResponseFormat,
	}
	if common.Model != nil && *common.Model != "" {
		req.Model = *common.Model
	}
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		req.Messages = append(req.Messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	return req
}

func (m *OpenAIChatModel) do(ctx context.Context, payload chatCompletionRequest) (*http.Response, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if payload.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	logger.Ctx(ctx).Debug().
		Str("model", payload.Model).
		Bool("stream", payload.Stream).
		Int("messages", len(payload.Messages)).
		Msg("发送模型请求")

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		bodyBytes, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return nil, fmt.Errorf("API 请求失败，状态 %s: %s", httpResp.Status, strings.TrimSpace(string(bodyBytes)))
	}
	return httpResp, nil
}

// Generate 实现 model.BaseChatModel 接口
func (m *OpenAIChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	start := time.Now()
	httpResp, err := m.do(ctx, m.buildRequest(messages, false, opts...))
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("API 返回错误: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("从 API 收到空选项")
	}

	logger.Ctx(ctx).Debug().Dur("latency", time.Since(start)).Str("model", resp.Model).Msg("模型请求完成")

	choice := resp.Choices[0].Message
	role := schema.RoleType(choice.Role)
	if role == "" {
		role = schema.Assistant
	}
	return &schema.Message{Role: role, Content: choice.Content}, nil
}

// Stream 实现 model.BaseChatModel 接口。
// 返回时 HTTP 状态已确认为 200；之后的错误通过 StreamReader.Recv 传递。
func (m *OpenAIChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	httpResp, err := m.do(ctx, m.buildRequest(messages, true, opts...))
	if err != nil {
		return nil, err
	}

	sr, sw := schema.Pipe[*schema.Message](1)
	go func() {
		defer sw.Close()
		defer httpResp.Body.Close()
		relaySSE(httpResp.Body, sw)
	}()
	return sr, nil
}

// relaySSE 逐行解析 SSE，把每个增量写入 sw；读取方关闭后立即返回
func relaySSE(body io.Reader, sw *schema.StreamWriter[*schema.Message]) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, sseDataPrefix) {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, sseDataPrefix))
		if data == sseDone {
			return
		}

		var chunk chatCompletionResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			sw.Send(nil, fmt.Errorf("解析流式分片失败: %w", err))
			return
		}
		if chunk.Error != nil {
			sw.Send(nil, fmt.Errorf("API 流式返回错误: %s", chunk.Error.Message))
			return
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		if closed := sw.Send(&schema.Message{Role: schema.Assistant, Content: chunk.Choices[0].Delta.Content}, nil); closed {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		sw.Send(nil, fmt.Errorf("读取流式响应失败: %w", err))
		return
	}
	// 没有收到 [DONE] 就断开，属于不完整的响应
	sw.Send(nil, io.ErrUnexpectedEOF)
}

var _ model.BaseChatModel = (*OpenAIChatModel)(nil)
