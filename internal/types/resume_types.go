package types

import (
	"encoding/json"
	"fmt"
)

// ResumeDocument 静态简历数据。只读，每次加载都是新实例
type ResumeDocument struct {
	data map[string]any
}

// ParseResumeDocument 解析 JSON 简历，顶层必须是对象
func ParseResumeDocument(raw []byte) (*ResumeDocument, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("解析简历JSON失败: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("简历JSON顶层必须是对象")
	}
	return &ResumeDocument{data: data}, nil
}

// OwnerName 返回 personalInfo.name，不存在时为空串
func (d *ResumeDocument) OwnerName() string {
	if d == nil {
		return ""
	}
	info, ok := d.data["personalInfo"].(map[string]any)
	if !ok {
		return ""
	}
	name, _ := info["name"].(string)
	return name
}

// FirstName 返回名字的第一个词，用于提示词
func (d *ResumeDocument) FirstName() string {
	name := d.OwnerName()
	for i, r := range name {
		if r == ' ' {
			return name[:i]
		}
	}
	return name
}

// Section 返回顶层字段
func (d *ResumeDocument) Section(key string) (any, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d.data[key]
	return v, ok
}

// MarshalIndent 以两个空格缩进序列化
func (d *ResumeDocument) MarshalIndent() ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("简历为空")
	}
	return json.MarshalIndent(d.data, "", "  ")
}
