package types

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Role 对话轮次的角色
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid 判断角色是否属于允许的集合
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Turn 对话中的一轮消息
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript 按时间顺序排列的对话轮次
type Transcript []Turn

// Latest 返回最后一轮；空对话返回 false
func (t Transcript) Latest() (Turn, bool) {
	if len(t) == 0 {
		return Turn{}, false
	}
	return t[len(t)-1], true
}

// Clone 返回一个独立的副本，调用方持有的切片不会被修改
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	cpy := make(Transcript, len(t))
	copy(cpy, t)
	return cpy
}

// Prepend 生成 [turn, ...t] 的新切片
func (t Transcript) Prepend(turn Turn) Transcript {
	out := make(Transcript, 0, len(t)+1)
	out = append(out, turn)
	return append(out, t...)
}

// Validate 校验每一轮的角色
func (t Transcript) Validate() error {
	for i, turn := range t {
		if !turn.Role.Valid() {
			return fmt.Errorf("第 %d 条消息的角色无效: %q", i, turn.Role)
		}
	}
	return nil
}

// ToMessages 转换为 eino 消息，供模型调用使用
func (t Transcript) ToMessages() []*schema.Message {
	msgs := make([]*schema.Message, 0, len(t))
	for _, turn := range t {
		msgs = append(msgs, &schema.Message{
			Role:    schema.RoleType(turn.Role),
			Content: turn.Content,
		})
	}
	return msgs
}

// TranscriptFromMessages 把 eino 消息还原成对话
func TranscriptFromMessages(msgs []*schema.Message) Transcript {
	out := make(Transcript, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		out = append(out, Turn{Role: Role(m.Role), Content: m.Content})
	}
	return out
}

// Category 最新一轮用户消息的意图分类。
// 零值 CategoryUnclassified 表示尚未分类，不会出现在模型可选标签中。
type Category int

const (
	CategoryUnclassified Category = iota
	CategoryResume
	CategoryNonResume

	numCategories
)

var categoryLabels = [...]string{
	CategoryUnclassified: "unclassified",
	CategoryResume:       "resume",
	CategoryNonResume:    "non-resume",
}

// 标签表和枚举必须一一对应，新增分类时两边不一致会直接编译失败
var (
	_ [len(categoryLabels) - int(numCategories)]struct{}
	_ [int(numCategories) - len(categoryLabels)]struct{}
)

// String 返回分类标签
func (c Category) String() string {
	if c < 0 || c >= numCategories {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryLabels[c]
}

// ParseCategory 把模型返回的标签解析为分类
func ParseCategory(label string) (Category, error) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	for c := CategoryResume; c < numCategories; c++ {
		if categoryLabels[c] == normalized {
			return c, nil
		}
	}
	return CategoryUnclassified, fmt.Errorf("未知的意图分类: %q", label)
}

// CategoryLabels 返回模型可选的分类标签，顺序与枚举一致，不含 unclassified
func CategoryLabels() []string {
	out := make([]string, 0, len(categoryLabels)-1)
	return append(out, categoryLabels[CategoryResume:]...)
}

// ClassificationResult 意图分类模型的结构化输出
type ClassificationResult struct {
	Type      string `json:"type" jsonschema:"title=type,description=Classification label for the query"`
	Reasoning string `json:"reasoning" jsonschema:"description=Why this classification was chosen"`
}
