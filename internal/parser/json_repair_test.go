package parser

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExtractJSONObject 测试花括号配平的JSON提取
func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"纯JSON", `{"a": 1}`, `{"a": 1}`},
		{"前后有杂文本", "结果如下：{\"a\": {\"b\": 2}} 完毕", `{"a": {"b": 2}}`},
		{"Markdown代码块", "```json\n{\"x\": true}\n```", `{"x": true}`},
		{"无JSON", "没有任何对象", ""},
		{"括号不配平", `{"a": {"b": 1}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractJSONObject(tt.input))
		})
	}
}

// TestSanitizeJSON 测试字符串内未转义引号的修复
func TestSanitizeJSON(t *testing.T) {
	broken := `{"reason": "他说"没问题"就离开了"}`
	fixed := sanitizeJSON(broken)

	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(fixed), &out))
	assert.Equal(t, `他说"没问题"就离开了`, out["reason"])
}

// TestSanitizeJSONKeepsValidInput 合法JSON经过修复器后语义不变
func TestSanitizeJSONKeepsValidInput(t *testing.T) {
	valid := `{"a": "x \" y", "b": [1, 2], "c": {"d": "e"}}`
	fixed := sanitizeJSON(valid)

	var before, after map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(valid), &before))
	require.NoError(t, json.Unmarshal([]byte(fixed), &after))
	assert.Equal(t, before, after)
}
