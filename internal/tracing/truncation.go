package tracing

import (
	"strings"
)

// span属性的长度上限。简历全文和SQL语句可能非常长，
// 原样挂到span上会撑爆导出器，只保留首尾片段。
const (
	// DefaultMaxLength 一般属性的最大长度
	DefaultMaxLength = 200

	// MaxSQLLength SQL语句最大长度
	MaxSQLLength = 500

	// MaxRedisLength Redis键最大长度
	MaxRedisLength = 100

	// MaxResumeLength 简历内容预览最大长度
	MaxResumeLength = 150
)

// piiKeywords 属性名中出现这些关键字时，属性值按联系方式掩码处理
var piiKeywords = []string{
	"phone",
	"email",
	"name",
	"姓名",
	"id_card",
	"身份证",
	"address",
	"地址",
	"password",
	"secret",
	"token",
}

// SafeAttributeValue 按属性名决定脱敏方式：
// 命中PII关键字的值做掩码，其余只做截断。
func SafeAttributeValue(name string, value string, maxLength int) string {
	lowerName := strings.ToLower(name)
	for _, keyword := range piiKeywords {
		if strings.Contains(lowerName, keyword) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII 掩码联系方式等个人信息，保留首尾便于人工比对。
// 两字中文名保留姓，手机号/邮箱保留前后各两位。
func MaskPII(value string) string {
	runes := []rune(value)
	length := len(runes)

	switch {
	case length == 0:
		return ""
	case length == 1:
		return "*"
	case length == 2:
		return string(runes[:1]) + "*"
	case length <= 4:
		return string(runes[:1]) + strings.Repeat("*", length-2) + string(runes[length-1:])
	default:
		return string(runes[:2]) + strings.Repeat("*", length-4) + string(runes[length-2:])
	}
}

// TruncateString 截断超长字符串，保留首尾、中间用...连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}

	if maxLength <= 3 {
		return string(runes[:maxLength])
	}

	half := (maxLength - 3) / 2
	if half < 1 {
		half = 1
	}
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

// SafeSQL 截断SQL语句
func SafeSQL(sql string) string {
	return TruncateString(sql, MaxSQLLength)
}

// SafeRedisKey 截断Redis键
func SafeRedisKey(key string) string {
	return TruncateString(key, MaxRedisLength)
}

// SafeResumeContent 截断简历内容预览
func SafeResumeContent(content string) string {
	return TruncateString(content, MaxResumeLength)
}
