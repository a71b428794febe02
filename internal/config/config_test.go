package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfigFromFile 验证 YAML 配置能否被成功加载并填充默认值
func TestLoadConfigFromFile(t *testing.T) {
	yamlContent := `
server:
  address: ":9090"
  api_keys:
    - "key-one"
    - "key-two"
screening:
  encrypt_secret: "s3cret"
  result_ttl_hours: 24
aliyun:
  model: "qwen-turbo"
  task_models:
    candidate_extraction: "qwen-plus"
`
	tmpDir, err := os.MkdirTemp("", "config-test")
	require.NoError(t, err, "无法创建临时目录")
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	err = os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err, "无法写入临时配置文件")

	config, err := LoadConfig(configPath)
	require.NoError(t, err, "加载具有正确语法的配置不应返回错误")
	require.NotNil(t, config, "配置对象不应为 nil")

	assert.Equal(t, ":9090", config.Server.Address)
	assert.Equal(t, []string{"key-one", "key-two"}, config.Server.APIKeys)
	assert.Equal(t, 24, config.Screening.ResultTTLHours)
	assert.Equal(t, 24*time.Hour, config.ResultTTL())

	// 未显式配置的字段应被默认值填充
	assert.Equal(t, 5, config.Screening.MaxReasonItems)
	assert.Equal(t, "5s", config.RabbitMQ.RetryInterval)
	assert.Equal(t, "resume-screen", config.Tracing.ServiceName)
}

// TestGetModelForTask 验证任务专用模型的回退逻辑
func TestGetModelForTask(t *testing.T) {
	config := createDefaultConfig()
	config.Aliyun.Model = "qwen-turbo"
	config.Aliyun.TaskModels = map[string]string{
		"candidate_extraction": "qwen-plus",
	}

	assert.Equal(t, "qwen-plus", config.GetModelForTask("candidate_extraction"))
	// 未配置专用模型的任务回退到默认模型
	assert.Equal(t, "qwen-turbo", config.GetModelForTask("unknown_task"))
}

// TestDefaultConfigForTests 验证测试环境下缺失配置文件时返回默认配置
func TestDefaultConfigForTests(t *testing.T) {
	config := createDefaultConfig()
	require.NotNil(t, config)

	assert.Equal(t, 72, config.Screening.ResultTTLHours)
	assert.NotEmpty(t, config.Screening.EncryptSecret)
	assert.Equal(t, "talents", config.Qdrant.Collection)
}

// TestGetDuration 验证时间间隔解析的降级行为
func TestGetDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, GetDuration("5s", time.Second))
	assert.Equal(t, time.Second, GetDuration("", time.Second))
	assert.Equal(t, time.Second, GetDuration("not-a-duration", time.Second))
}
