package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"portfolio-chat/internal/constants"
)

// 流式协议。data 为前端 useChat 使用的数据流协议，text 为纯文本
const (
	ProtocolData = "data"
	ProtocolText = "text"
)

// streamEncoder 把回答的各部分写成线上的格式
type streamEncoder interface {
	ContentType() string
	Headers() map[string]string
	Start(w io.Writer, messageID string) error
	Text(w io.Writer, delta string) error
	// Error 写入错误部分；返回 false 表示该协议无法在流内表达错误，需要中断响应
	Error(w io.Writer, msg string) (bool, error)
	Finish(w io.Writer) error
}

func encoderFor(protocol string) (streamEncoder, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", ProtocolData:
		return dataStreamEncoder{}, nil
	case ProtocolText:
		return textStreamEncoder{}, nil
	default:
		return nil, fmt.Errorf("%w: 不支持的协议 %q", ErrMalformedRequest, protocol)
	}
}

// dataStreamEncoder 每行一个部分，格式为 "<type>:<json>\n"
type dataStreamEncoder struct{}

type finishPart struct {
	FinishReason string     `json:"finishReason"`
	Usage        usageStats `json:"usage"`
}

type usageStats struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

func writePart(w io.Writer, typ string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s:%s\n", typ, b)
	return err
}

func (dataStreamEncoder) ContentType() string { return "text/plain; charset=utf-8" }

func (dataStreamEncoder) Headers() map[string]string {
	return map[string]string{constants.DataStreamHeader: "v1"}
}

func (dataStreamEncoder) Start(w io.Writer, messageID string) error {
	return writePart(w, "f", map[string]string{"messageId": messageID})
}

func (dataStreamEncoder) Text(w io.Writer, delta string) error {
	return writePart(w, "0", delta)
}

func (dataStreamEncoder) Error(w io.Writer, msg string) (bool, error) {
	return true, writePart(w, "3", msg)
}

func (dataStreamEncoder) Finish(w io.Writer) error {
	part := finishPart{FinishReason: "stop"}
	if err := writePart(w, "e", map[string]any{"finishReason": part.FinishReason, "usage": part.Usage, "isContinued": false}); err != nil {
		return err
	}
	return writePart(w, "d", part)
}

type textStreamEncoder struct{}

func (textStreamEncoder) ContentType() string          { return "text/plain; charset=utf-8" }
func (textStreamEncoder) Headers() map[string]string   { return nil }
func (textStreamEncoder) Start(io.Writer, string) error { return nil }
func (textStreamEncoder) Finish(io.Writer) error       { return nil }

func (textStreamEncoder) Text(w io.Writer, delta string) error {
	_, err := io.WriteString(w, delta)
	return err
}

func (textStreamEncoder) Error(io.Writer, string) (bool, error) {
	return false, nil
}
