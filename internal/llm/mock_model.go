package llm

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockResponse 定义了 MockChatModel 的单次预期响应
type MockResponse struct {
	Content string
	Error   error
}

// MockStream 定义了一次流式调用的预期输出
type MockStream struct {
	Chunks []string
	// Error 非空时 Stream 直接返回该错误
	Error error
	// MidStreamError 非空时在发送完 Chunks 后通过 Recv 返回该错误
	MidStreamError error
}

// MockCall 记录一次调用
type MockCall struct {
	Method   string
	Messages []*schema.Message
	Options  []model.Option
}

// MockChatModel 是一个用于测试的 model.BaseChatModel 模拟实现
type MockChatModel struct {
	mu sync.Mutex

	// Generate 的响应，按顺序消费；用完后重复最后一个
	Responses []MockResponse
	// Stream 的响应，按顺序消费；用完后重复最后一个
	Streams []MockStream

	generateIndex int
	streamIndex   int
	calls         []MockCall
}

// NewMockChatModel 创建一个 Generate 返回固定内容、Stream 返回固定分片的 mock
func NewMockChatModel(generateContent string, streamChunks ...string) *MockChatModel {
	return &MockChatModel{
		Responses: []MockResponse{{Content: generateContent}},
		Streams:   []MockStream{{Chunks: streamChunks}},
	}
}

func (m *MockChatModel) record(method string, input []*schema.Message, opts []model.Option) {
	cpy := make([]*schema.Message, len(input))
	copy(cpy, input)
	m.calls = append(m.calls, MockCall{Method: method, Messages: cpy, Options: opts})
}

// Generate 模拟 LLM 的 Generate 方法
func (m *MockChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Generate", input, opts)

	if len(m.Responses) == 0 {
		return nil, errors.New("mock model has no generate responses configured")
	}
	idx := m.generateIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	m.generateIndex++

	resp := m.Responses[idx]
	if resp.Error != nil {
		return nil, resp.Error
	}
	return schema.AssistantMessage(resp.Content, nil), nil
}

// Stream 模拟 LLM 的 Stream 方法
func (m *MockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Stream", input, opts)

	if len(m.Streams) == 0 {
		return nil, errors.New("mock model has no stream responses configured")
	}
	idx := m.streamIndex
	if idx >= len(m.Streams) {
		idx = len(m.Streams) - 1
	}
	m.streamIndex++

	plan := m.Streams[idx]
	if plan.Error != nil {
		return nil, plan.Error
	}

	sr, sw := schema.Pipe[*schema.Message](len(plan.Chunks) + 1)
	go func() {
		defer sw.Close()
		for _, chunk := range plan.Chunks {
			if closed := sw.Send(schema.AssistantMessage(chunk, nil), nil); closed {
				return
			}
		}
		if plan.MidStreamError != nil {
			sw.Send(nil, plan.MidStreamError)
		}
	}()
	return sr, nil
}

// Calls 返回全部调用记录的副本
func (m *MockChatModel) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsOf 返回指定方法的调用记录
func (m *MockChatModel) CallsOf(method string) []MockCall {
	var out []MockCall
	for _, c := range m.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

var _ model.BaseChatModel = (*MockChatModel)(nil)
