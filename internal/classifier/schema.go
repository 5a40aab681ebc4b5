package classifier

import (
	"sync"

	"portfolio-chat/internal/llm"
	"portfolio-chat/internal/types"

	"github.com/invopop/jsonschema"
)

const schemaName = "query_classification"

var (
	responseFormatOnce sync.Once
	responseFormat     *llm.ResponseFormat
)

// classificationSchema 由 ClassificationResult 反射生成，type 字段的枚举取自分类表
func classificationSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(&types.ClassificationResult{})
	s.Version = ""
	s.ID = ""
	s.Title = ""

	if prop, ok := s.Properties.Get("type"); ok {
		labels := types.CategoryLabels()
		prop.Enum = make([]any, 0, len(labels))
		for _, l := range labels {
			prop.Enum = append(prop.Enum, l)
		}
	}
	return s
}

// classificationResponseFormat 返回结构化输出约束，结果在进程内复用
func classificationResponseFormat() *llm.ResponseFormat {
	responseFormatOnce.Do(func() {
		responseFormat = &llm.ResponseFormat{
			Type: "json_schema",
			JSONSchema: &llm.JSONSchemaFormat{
				Name:        schemaName,
				Description: "Intent classification of a portfolio chat query",
				Schema:      classificationSchema(),
				Strict:      true,
			},
		}
	})
	return responseFormat
}
