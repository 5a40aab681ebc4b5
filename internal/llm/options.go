package llm

import (
	"github.com/cloudwego/eino/components/model"
)

// ResponseFormat OpenAI 的 response_format 字段
type ResponseFormat struct {
	Type       string            `json:"type"` // "json_object" 或 "json_schema"
	JSONSchema *JSONSchemaFormat `json:"json_schema,omitempty"`
}

// JSONSchemaFormat 约束结构化输出的 JSON Schema
type JSONSchemaFormat struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Schema      any    `json:"schema"`
	Strict      bool   `json:"strict"`
}

type options struct {
	ResponseFormat *ResponseFormat
}

// WithResponseFormat 要求模型按指定格式输出，其他实现会忽略该选项
func WithResponseFormat(rf *ResponseFormat) model.Option {
	return model.WrapImplSpecificOptFn(func(o *options) {
		o.ResponseFormat = rf
	})
}

// ResponseFormatFrom 从调用选项中取出 response_format，供测试替身检查
func ResponseFormatFrom(opts ...model.Option) *ResponseFormat {
	return model.GetImplSpecificOptions(&options{}, opts...).ResponseFormat
}
