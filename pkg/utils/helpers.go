package utils

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"path/filepath"

	"gorm.io/datatypes"
)

// CalculateMD5 计算字节切片的MD5（十六进制小写）
func CalculateMD5(data []byte) string {
	hasher := md5.New()
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}

// FilePathKey 生成文件路径的去重键：md5(clean(file_path))。
// 先规范化路径，"a/b.pdf" 和 "a//b.pdf" 必须得到同一个键。
func FilePathKey(filePath string) string {
	return CalculateMD5([]byte(filepath.Clean(filePath)))
}

// ConvertArrayToJSON 将字符串数组转换为JSON，失败时返回空数组
func ConvertArrayToJSON(arr []string) datatypes.JSON {
	if len(arr) == 0 {
		return datatypes.JSON("[]")
	}

	jsonBytes, err := json.Marshal(arr)
	if err != nil {
		return datatypes.JSON("[]")
	}

	return datatypes.JSON(jsonBytes)
}
